package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rackbook/pkg/audit"
	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/database"
	"github.com/platinummonkey/rackbook/pkg/httputil"
	"github.com/platinummonkey/rackbook/pkg/inventory"
	"github.com/platinummonkey/rackbook/pkg/middleware"
	"github.com/platinummonkey/rackbook/pkg/mutation"
	"github.com/platinummonkey/rackbook/pkg/observability"
	"github.com/platinummonkey/rackbook/pkg/rbac"
	"github.com/platinummonkey/rackbook/pkg/sso"
	"github.com/platinummonkey/rackbook/pkg/users"
)

type stubAuthenticator struct{}

func (stubAuthenticator) AuthCodeURL(state string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (stubAuthenticator) Exchange(ctx context.Context, code string) (*sso.Profile, error) {
	return &sso.Profile{Subject: "sub-new"}, nil
}

type testServer struct {
	server  *Server
	metrics *observability.Metrics
	tokens  map[auth.Role]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := database.NewTestDB(t)
	ctx := context.Background()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	guard := rbac.NewGuard(auth.ContextAccessor{}).WithMetrics(metrics)
	pipeline := mutation.NewPipeline(db, guard, audit.NewDBRecorder(), nil).WithMetrics(metrics)
	userStore := users.NewStore()
	sessions := sso.NewSessionManager(db, time.Hour)

	tokens := make(map[auth.Role]string)
	for _, role := range []auth.Role{auth.RoleViewer, auth.RoleEditor, auth.RoleAdmin} {
		u := &auth.User{AuthschID: "sub-" + role.String(), Role: role}
		require.NoError(t, userStore.Insert(ctx, db, u))
		token, _, err := sessions.Create(ctx, u.ID)
		require.NoError(t, err)
		tokens[role] = token
	}

	resolver := sso.NewIdentityResolver(db, userStore, 42)
	server := NewServer(Dependencies{
		Metrics:     metrics,
		Sessions:    sessions,
		AuthLimiter: middleware.NewRateLimiter(&middleware.RateLimitConfig{RequestsPerWindow: 60, WindowDuration: time.Minute, BurstSize: 2}),
		Inventory:   inventory.NewHandlers(inventory.NewService(inventory.NewStore(), pipeline)),
		Audit:       audit.NewHandlers(audit.NewService(audit.NewDBStore(db), guard)),
		Users:       users.NewHandlers(users.NewService(userStore, pipeline)),
		SSO:         sso.NewHandlers(stubAuthenticator{}, resolver, sessions, guard),
	})
	return &testServer{server: server, metrics: metrics, tokens: tokens}
}

func (ts *testServer) do(role auth.Role, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := ts.tokens[role]; ok {
		req.AddCookie(&http.Cookie{Name: sso.SessionCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func TestServer_SessionDrivesAuthorization(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, ts.do("", "POST", "/racks", `{"name":"Shelf A-1"}`).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(auth.RoleViewer, "POST", "/racks", `{"name":"Shelf A-1"}`).Code)
	assert.Equal(t, http.StatusCreated, ts.do(auth.RoleEditor, "POST", "/racks", `{"name":"Shelf A-1"}`).Code)

	assert.Equal(t, http.StatusForbidden, ts.do(auth.RoleEditor, "GET", "/admin/logs", "").Code)
	rec := ts.do(auth.RoleAdmin, "GET", "/admin/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CREATE_RACK")

	rec = ts.do(auth.RoleAdmin, "GET", "/auth/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"isAdmin":true`)
}

func TestServer_RequestIDAndNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("", "GET", "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(httputil.RequestIDHeader))
}

func TestServer_AuthRoutesRateLimited(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusFound, ts.do("", "GET", "/auth/login", "").Code)
	assert.Equal(t, http.StatusFound, ts.do("", "GET", "/auth/login", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.do("", "GET", "/auth/login", "").Code)

	// Non-auth routes are not limited.
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, ts.do("", "GET", "/racks", "").Code)
	}
}

func TestServer_HTTPMetrics(t *testing.T) {
	ts := newTestServer(t)

	ts.do(auth.RoleViewer, "GET", "/racks", "")
	assert.Equal(t, float64(1), testutil.ToFloat64(ts.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/racks", "200")))
}
