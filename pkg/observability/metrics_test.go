package observability

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.AuthorizationDecisions.WithLabelValues("DeleteRack", "denied").Inc()
	m.AuditRecordsTotal.WithLabelValues("CREATE_RACK").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuthorizationDecisions.WithLabelValues("DeleteRack", "denied")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuditRecordsTotal.WithLabelValues("CREATE_RACK")))

	assert.Panics(t, func() { NewMetrics(registry) }, "registering twice must fail")
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/api/racks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/racks/abc", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/racks/{id}", "404")))
}

func TestObserveDBStats(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveDBStats(sql.DBStats{OpenConnections: 4, InUse: 2, WaitCount: 7})

	assert.Equal(t, float64(4), testutil.ToFloat64(m.DBConnectionsOpen))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DBConnectionsInUse))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.DBWaitCount))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.SignInsTotal.WithLabelValues("registered").Inc()

	serveMux := http.NewServeMux()
	RegisterMetricsEndpoint(serveMux, registry)

	rec := httptest.NewRecorder()
	serveMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `rackbook_sign_ins_total{outcome="registered"} 1`))
}
