package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tripplanner/internal/models"
)

func (h *handlers) listPayments(c *gin.Context) {
	status := models.PaymentStatus(c.Query("status"))
	payments, err := h.Payments.List(c.Request.Context(), currentUser(c), status)
	if err != nil {
		h.fail(c, err)
		return
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payments": payments})
}

func (h *handlers) approvePayment(c *gin.Context) {
	p, err := h.Payments.Approve(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": p})
}

func (h *handlers) rejectPayment(c *gin.Context) {
	var body struct {
		Reason string `json:"reason" binding:"max=500"`
	}
	if c.Request.ContentLength != 0 && !h.bind(c, &body) {
		return
	}

	p, err := h.Payments.Reject(c.Request.Context(), currentUser(c), c.Param("id"), body.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": p})
}

func (h *handlers) setUserPlan(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var body struct {
		Plan models.Plan `json:"plan" binding:"required"`
	}
	if !h.bind(c, &body) {
		return
	}

	user, err := h.Payments.SetPlan(c.Request.Context(), currentUser(c), id, body.Plan)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": userView(user)})
}
