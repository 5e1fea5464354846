package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Cache metrics
	CacheOperationsTotal *prometheus.CounterVec

	// Rate limiting
	RateLimitDecisionsTotal *prometheus.CounterVec

	// Audit trail
	AuditRecordsTotal *prometheus.CounterVec

	// Sessions
	SessionEventsTotal *prometheus.CounterVec

	// Workflow
	StatusTransitionsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		CacheOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_cache_operations_total",
				Help: "Cache operations by outcome",
			},
			[]string{"operation", "result"},
		),
		RateLimitDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_rate_limit_decisions_total",
				Help: "Rate limit decisions by limiter",
			},
			[]string{"limiter", "decision"},
		),
		AuditRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_audit_records_total",
				Help: "Audit records by action and outcome",
			},
			[]string{"action", "result"},
		),
		SessionEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_session_events_total",
				Help: "Session lifecycle events",
			},
			[]string{"event"},
		),
		StatusTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_incident_status_transitions_total",
				Help: "Incident status transitions",
			},
			[]string{"from", "to"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CacheOperationsTotal,
		m.RateLimitDecisionsTotal,
		m.AuditRecordsTotal,
		m.SessionEventsTotal,
		m.StatusTransitionsTotal,
	)

	return m
}

// RecordCacheOp counts a cache operation. operation is get, set or invalidate.
func (m *Metrics) RecordCacheOp(operation, result string) {
	if m == nil {
		return
	}
	m.CacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordRateLimit counts a limiter decision: allowed, denied or fail_open
func (m *Metrics) RecordRateLimit(limiter, decision string) {
	if m == nil {
		return
	}
	m.RateLimitDecisionsTotal.WithLabelValues(limiter, decision).Inc()
}

// RecordAudit counts an audit record outcome: written, failed or dropped
func (m *Metrics) RecordAudit(action, result string) {
	if m == nil {
		return
	}
	m.AuditRecordsTotal.WithLabelValues(action, result).Inc()
}

// RecordSession counts n session events
func (m *Metrics) RecordSession(event string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionEventsTotal.WithLabelValues(event).Add(float64(n))
}

// RecordTransition counts a status change
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitionsTotal.WithLabelValues(from, to).Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments requests. Requests are labelled by mux route
// template so ids do not explode label cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in Prometheus text format
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
