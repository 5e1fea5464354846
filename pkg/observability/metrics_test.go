package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordCacheOp("get", "hit")
	m.RecordCacheOp("get", "hit")
	m.RecordRateLimit("login", "denied")
	m.RecordAudit("LOGIN", "written")
	m.RecordSession("cleaned", 3)
	m.RecordSession("cleaned", 0)
	m.RecordTransition("OPEN", "CLOSED")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheOperationsTotal.WithLabelValues("get", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitDecisionsTotal.WithLabelValues("login", "denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditRecordsTotal.WithLabelValues("LOGIN", "written")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionEventsTotal.WithLabelValues("cleaned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusTransitionsTotal.WithLabelValues("OPEN", "CLOSED")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCacheOp("get", "miss")
		m.RecordRateLimit("api_read", "allowed")
		m.RecordAudit("LOGOUT", "dropped")
		m.RecordSession("expired", 1)
		m.RecordTransition("OPEN", "RESOLVED")
	})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/api/incidents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/incidents/abc", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("GET", "/api/incidents/{id}", "404"),
	))

	rec = httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "warden_http_requests_total")
}
