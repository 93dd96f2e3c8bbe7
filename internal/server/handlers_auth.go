package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tripplanner/internal/auth"
)

type credentials struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (h *handlers) register(c *gin.Context) {
	var body credentials
	if !h.bind(c, &body) {
		return
	}

	user, err := h.Auth.Register(c.Request.Context(), body.Email, body.Password, body.FirstName, body.LastName)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Auth.Sessions().Issue(c, user.ID); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Registration successful",
		"user":    userView(user),
	})
}

func (h *handlers) login(c *gin.Context) {
	var body credentials
	if !h.bind(c, &body) {
		return
	}

	user, err := h.Auth.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Auth.Sessions().Issue(c, user.ID); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user":    userView(user),
	})
}

func (h *handlers) logout(c *gin.Context) {
	h.Auth.Sessions().Clear(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) checkAuth(c *gin.Context) {
	user, err := auth.CurrentUser(c, h.Auth)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          userView(user),
	})
}

func (h *handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.Store.Ping(ctx); err != nil {
		h.Logger.Errorw("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"database":  "unreachable",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"database":  "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
