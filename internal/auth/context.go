package auth

import (
	"context"

	"example.com/chizen/internal/domain"
)

type contextKey string

const userKey contextKey = "chizen-auth-user"

// WithUser stores the authenticated user on the context.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFrom retrieves the user stored by WithUser.
func UserFrom(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userKey).(*domain.User)
	return user, ok && user != nil
}
