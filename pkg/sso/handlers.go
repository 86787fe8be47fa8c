package sso

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/httputil"
	"github.com/platinummonkey/rackbook/pkg/observability"
	"github.com/platinummonkey/rackbook/pkg/rbac"
)

const (
	// SessionCookieName carries the session token.
	SessionCookieName = "rackbook_session"
	stateCookieName   = "rackbook_oauth_state"
	returnCookieName  = "rackbook_return_url"
)

// Me is the payload of GET /auth/me.
type Me struct {
	User    *auth.User `json:"user"`
	CanEdit bool       `json:"canEdit"`
	IsAdmin bool       `json:"isAdmin"`
}

// Handlers handles the sign-in flow.
type Handlers struct {
	authenticator Authenticator
	resolver      *IdentityResolver
	sessions      *SessionManager
	guard         *rbac.Guard
	secureCookies bool
}

// NewHandlers creates SSO handlers
func NewHandlers(authenticator Authenticator, resolver *IdentityResolver, sessions *SessionManager, guard *rbac.Guard) *Handlers {
	return &Handlers{
		authenticator: authenticator,
		resolver:      resolver,
		sessions:      sessions,
		guard:         guard,
	}
}

// WithSecureCookies marks every cookie Secure.
func (h *Handlers) WithSecureCookies(secure bool) *Handlers {
	h.secureCookies = secure
	return h
}

// RegisterRoutes registers SSO routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.login).Methods("GET")
	router.HandleFunc("/auth/callback", h.callback).Methods("GET")
	router.HandleFunc("/auth/logout", h.logout).Methods("POST")
	router.HandleFunc("/auth/me", h.me).Methods("GET")
}

// login handles GET /auth/login
func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	h.setCookie(w, stateCookieName, state, 600)
	if ret := r.URL.Query().Get("return_url"); safeReturnURL(ret) {
		h.setCookie(w, returnCookieName, ret, 600)
	}

	http.Redirect(w, r, h.authenticator.AuthCodeURL(state), http.StatusFound)
}

// callback handles GET /auth/callback
func (h *Handlers) callback(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())

	if idpErr := r.URL.Query().Get("error"); idpErr != "" {
		logger.WithField("error", idpErr).Warn("Identity provider rejected sign-in")
		httputil.WriteUnauthorized(w, "sign-in was rejected by the identity provider")
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		httputil.WriteBadRequest(w, "invalid state parameter")
		return
	}
	h.clearCookie(w, stateCookieName)

	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.WriteBadRequest(w, "missing authorization code")
		return
	}

	profile, err := h.authenticator.Exchange(r.Context(), code)
	if err != nil {
		logger.WithError(err).Warn("Failed to exchange authorization code")
		httputil.WriteUnauthorized(w, "authentication failed")
		return
	}

	user, err := h.resolver.Resolve(r.Context(), profile)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	token, _, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	h.setCookie(w, SessionCookieName, token, int(h.sessions.TTL().Seconds()))

	target := "/"
	if c, err := r.Cookie(returnCookieName); err == nil && safeReturnURL(c.Value) {
		target = c.Value
	}
	h.clearCookie(w, returnCookieName)

	http.Redirect(w, r, target, http.StatusFound)
}

// logout handles POST /auth/logout
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		if err := h.sessions.Delete(r.Context(), c.Value); err != nil {
			httputil.WriteServiceError(w, r, err)
			return
		}
	}
	h.clearCookie(w, SessionCookieName)
	httputil.WriteNoContent(w)
}

// me handles GET /auth/me
func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.guard.RequireAuthenticated(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, Me{
		User:    user,
		CanEdit: h.guard.CanEdit(r.Context()),
		IsAdmin: h.guard.IsAdmin(r.Context()),
	})
}

func (h *Handlers) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearCookie(w http.ResponseWriter, name string) {
	h.setCookie(w, name, "", -1)
}

// safeReturnURL accepts only same-origin relative paths.
func safeReturnURL(u string) bool {
	if u == "" || !strings.HasPrefix(u, "/") {
		return false
	}
	if strings.HasPrefix(u, "//") || strings.HasPrefix(u, "/\\") {
		return false
	}
	return !strings.ContainsAny(u, "\r\n")
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
