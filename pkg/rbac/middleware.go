package rbac

import (
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/platinummonkey/rackbook/pkg/errs"
	"github.com/platinummonkey/rackbook/pkg/httputil"
)

// RequirePermission creates middleware that applies Policy to p before the
// handler reads the request body. Services still call Authorize, so the
// early check is not counted in the decision metrics.
func (g *Guard) RequirePermission(p Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			min, ok := RequiredRole(p)
			if !ok {
				httputil.WriteServiceError(w, r, errors.Wrapf(errs.ErrInsufficientPermission, "%s is not a permitted operation", p))
				return
			}
			if _, err := g.RequireRole(r.Context(), min); err != nil {
				httputil.WriteServiceError(w, r, errors.Wrap(err, p.String()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
