package auth

import (
	"context"

	"tripplanner/internal/models"
)

type ctxKey int

const userKey ctxKey = iota

// WithUser stores the authenticated user in a context.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user stored by the middleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}
