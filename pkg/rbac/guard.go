package rbac

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/errs"
	"github.com/platinummonkey/rackbook/pkg/observability"
)

// Guard decides whether the caller of a request may perform an operation.
// Every decision fails closed: no session, an unknown stored role, or an
// operation missing from Policy all deny.
type Guard struct {
	accessor auth.Accessor
	metrics  *observability.Metrics
}

// NewGuard creates a guard that resolves callers through accessor
func NewGuard(accessor auth.Accessor) *Guard {
	return &Guard{accessor: accessor}
}

// WithMetrics records every Authorize decision.
func (g *Guard) WithMetrics(m *observability.Metrics) *Guard {
	g.metrics = m
	return g
}

// CurrentUser returns the caller, if any. It never fails.
func (g *Guard) CurrentUser(ctx context.Context) (*auth.User, bool) {
	return g.accessor.CurrentUser(ctx)
}

// RequireAuthenticated returns the caller or ErrAuthenticationRequired.
func (g *Guard) RequireAuthenticated(ctx context.Context) (*auth.User, error) {
	user, ok := g.accessor.CurrentUser(ctx)
	if !ok {
		return nil, errs.ErrAuthenticationRequired
	}
	return user, nil
}

// RequireRole returns the caller when their role ranks at least min.
func (g *Guard) RequireRole(ctx context.Context, min auth.Role) (*auth.User, error) {
	user, err := g.RequireAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	if !auth.AtLeast(user.Role, min) {
		return nil, errors.Wrapf(errs.ErrInsufficientPermission, "requires %s", min)
	}
	return user, nil
}

// Authorize applies Policy to p and returns the acting user.
func (g *Guard) Authorize(ctx context.Context, p Permission) (*auth.User, error) {
	min, ok := RequiredRole(p)
	if !ok {
		g.record(p, "unlisted")
		return nil, errors.Wrapf(errs.ErrInsufficientPermission, "%s is not a permitted operation", p)
	}

	user, err := g.RequireRole(ctx, min)
	switch {
	case err == nil:
		g.record(p, "allowed")
	case errors.Is(err, errs.ErrAuthenticationRequired):
		g.record(p, "unauthenticated")
	default:
		g.record(p, "denied")
		caller, _ := g.accessor.CurrentUser(ctx)
		observability.FromContext(ctx).WithFields(map[string]interface{}{
			"operation": p.String(),
			"required":  min.String(),
			"role":      caller.Role.String(),
		}).Info("authorization denied")
	}
	if err != nil {
		return nil, errors.Wrap(err, p.String())
	}
	return user, nil
}

// HasRole reports whether the caller ranks at least min. It is meant for
// visibility decisions; mutations always go through Authorize.
func (g *Guard) HasRole(ctx context.Context, min auth.Role) bool {
	user, ok := g.accessor.CurrentUser(ctx)
	return ok && auth.AtLeast(user.Role, min)
}

// CanEdit reports whether the caller is at least an editor.
func (g *Guard) CanEdit(ctx context.Context) bool {
	return g.HasRole(ctx, auth.RoleEditor)
}

// IsAdmin reports whether the caller is an admin.
func (g *Guard) IsAdmin(ctx context.Context) bool {
	return g.HasRole(ctx, auth.RoleAdmin)
}

func (g *Guard) record(p Permission, outcome string) {
	if g.metrics != nil {
		g.metrics.AuthorizationDecisions.WithLabelValues(p.String(), outcome).Inc()
	}
}
