package auth

import (
	"context"

	"github.com/platinummonkey/rackbook/pkg/contextkeys"
)

// Accessor resolves the caller of the current request.
type Accessor interface {
	CurrentUser(ctx context.Context) (*User, bool)
}

// ContextAccessor reads the user the session middleware stored on the context.
type ContextAccessor struct{}

// CurrentUser returns the session user, or false when the request is anonymous.
func (ContextAccessor) CurrentUser(ctx context.Context) (*User, bool) {
	return UserFromContext(ctx)
}

// WithUser returns a context carrying the session user.
func WithUser(ctx context.Context, user *User) context.Context {
	ctx = context.WithValue(ctx, contextkeys.UserKey, user)
	return contextkeys.WithUserID(ctx, user.ID)
}

// UserFromContext returns the session user stored by WithUser.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(contextkeys.UserKey).(*User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}
