package middleware

import (
	"net/http"

	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/contextkeys"
	"github.com/platinummonkey/rackbook/pkg/observability"
	"github.com/platinummonkey/rackbook/pkg/sso"
)

// SessionMiddleware places the session user on the request context. Requests
// without a valid session continue anonymously; authorization decides later
// whether that is enough.
type SessionMiddleware struct {
	sessions *sso.SessionManager
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(sessions *sso.SessionManager) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// Handler wraps an HTTP handler with session resolution
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sso.SessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, session, err := m.sessions.Lookup(r.Context(), cookie.Value)
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Debug("Ignoring invalid session")
			next.ServeHTTP(w, r)
			return
		}

		ctx := auth.WithUser(r.Context(), user)
		ctx = contextkeys.WithSessionID(ctx, session.TokenHash)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
