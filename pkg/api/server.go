package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/rackbook/pkg/audit"
	"github.com/platinummonkey/rackbook/pkg/httputil"
	"github.com/platinummonkey/rackbook/pkg/inventory"
	"github.com/platinummonkey/rackbook/pkg/middleware"
	"github.com/platinummonkey/rackbook/pkg/observability"
	"github.com/platinummonkey/rackbook/pkg/sso"
	"github.com/platinummonkey/rackbook/pkg/users"
)

// Dependencies are the components the API server routes to.
type Dependencies struct {
	Logger  *observability.Logger
	Metrics *observability.Metrics

	Sessions    *sso.SessionManager
	AuthLimiter *middleware.RateLimiter

	Inventory *inventory.Handlers
	Audit     *audit.Handlers
	Users     *users.Handlers
	SSO       *sso.Handlers
}

// Server is the rackbook HTTP API
type Server struct {
	router  *mux.Router
	handler http.Handler
}

// NewServer creates the API server and registers every route
func NewServer(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NewNopLogger()
	}

	s := &Server{router: mux.NewRouter()}
	s.setupRoutes(deps)

	if deps.Metrics != nil {
		// Router-level so the route template is known for labels.
		s.router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	}

	var handler http.Handler = httputil.LoggingMiddleware(s.router)
	if deps.Sessions != nil {
		handler = middleware.NewSessionMiddleware(deps.Sessions).Handler(handler)
	}
	handler = httputil.RequestIDMiddleware(deps.Logger)(handler)
	handler = observability.RecoveryMiddleware(handler)
	s.handler = otelhttp.NewHandler(handler, "rackbook-api")

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(deps Dependencies) {
	if deps.SSO != nil {
		authRouter := s.router.MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
			return strings.HasPrefix(r.URL.Path, "/auth/")
		}).Subrouter()
		authRouter.Use(middleware.NewRateLimitMiddleware(deps.AuthLimiter).Handler)
		deps.SSO.RegisterRoutes(authRouter)
	}
	if deps.Inventory != nil {
		deps.Inventory.RegisterRoutes(s.router)
	}
	if deps.Audit != nil {
		deps.Audit.RegisterRoutes(s.router)
	}
	if deps.Users != nil {
		deps.Users.RegisterRoutes(s.router)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "not found")
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
