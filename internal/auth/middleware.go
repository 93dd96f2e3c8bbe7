package auth

import (
	"github.com/gin-gonic/gin"

	"tripplanner/internal/apperr"
	"tripplanner/internal/models"
)

// Middleware loads the session user into the request context. Requests
// without a valid session are rejected with 401.
func Middleware(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := CurrentUser(c, svc)
		if err != nil {
			abort(c, err)
			return
		}
		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), user))
		c.Next()
	}
}

// RequireAdmin must run after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := UserFromContext(c.Request.Context())
		if !ok {
			abort(c, apperr.ErrUnauthenticated)
			return
		}
		if !user.IsAdmin() {
			abort(c, apperr.ErrForbidden)
			return
		}
		c.Next()
	}
}

// CurrentUser resolves the session cookie without aborting the request.
func CurrentUser(c *gin.Context, svc *Service) (*models.User, error) {
	token, err := c.Cookie(svc.Sessions().CookieName())
	if err != nil {
		return nil, apperr.ErrUnauthenticated
	}
	return svc.Authenticate(c.Request.Context(), token)
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.Status(err), gin.H{
		"success": false,
		"error":   apperr.Message(err),
	})
}
