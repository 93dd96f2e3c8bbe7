package server

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"tripplanner/internal/apperr"
	"tripplanner/internal/auth"
	"tripplanner/internal/models"
)

// fail writes the uniform error body. Unclassified errors are logged with
// their cause and surfaced as a generic 500.
func (h *handlers) fail(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= 500 {
		h.Logger.Errorw("Request failed",
			"path", c.FullPath(),
			"error", err,
		)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   apperr.Message(err),
	})
}

func (h *handlers) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, bindError(err))
		return false
	}
	return true
}

var registerTagNames sync.Once

// useJSONFieldNames makes binding errors report the JSON key of a field.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindError maps the first failed binding tag to a ValidationError.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Invalid("body", "invalid JSON body")
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return apperr.Missing(fe.Field())
	case "max":
		return apperr.Invalid(fe.Field(), "%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return apperr.Invalid(fe.Field(), "invalid %s", fe.Field())
	}
}

// currentUser returns the user loaded by auth.Middleware.
func currentUser(c *gin.Context) *models.User {
	user, _ := auth.UserFromContext(c.Request.Context())
	return user
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("id", "invalid id %q", c.Param("id"))
	}
	return id, nil
}

func userView(u *models.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"plan":       u.Plan,
		"role":       u.Role,
	}
}
