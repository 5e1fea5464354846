package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/ratelimit"
	"github.com/platinummonkey/warden/pkg/swagger"
	"github.com/platinummonkey/warden/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Deps are the services and infrastructure the server routes to
type Deps struct {
	Incidents *workflow.IncidentService
	Comments  *workflow.CommentService
	Auth      *workflow.AuthService

	// Limiter is optional; without it nothing is rate limited
	Limiter  *ratelimit.Limiter
	Policies ratelimit.Policies

	Health   *observability.HealthChecker
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer

	Cookie         middleware.CookieConfig
	AllowedOrigins []string
	// TrustedProxies may report the client address in forwarding headers
	TrustedProxies httputil.TrustedProxies
	Log            logrus.FieldLogger
}

// Server is the warden HTTP API
type Server struct {
	Deps
	router   *mux.Router
	handler  http.Handler
	sessions *middleware.SessionAuth
	log      logrus.FieldLogger
}

// NewServer builds the router
func NewServer(deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = observability.NewNopLogger()
	}
	s := &Server{
		Deps:   deps,
		router: mux.NewRouter(),
		log:    deps.Log.WithField("component", "api"),
	}
	s.sessions = middleware.NewSessionAuth(deps.Auth, deps.Cookie, deps.Log)
	s.setupRoutes()
	s.handler = otelhttp.NewHandler(s.router, "warden")
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(
		httputil.RecoveryMiddleware(s.log),
		httputil.RequestIDMiddleware,
		httputil.ClientIPMiddleware(s.TrustedProxies),
		httputil.LoggingMiddleware(s.log),
		observability.HTTPMetricsMiddleware(s.Metrics),
		httputil.OriginCheckMiddleware(s.AllowedOrigins),
	)

	if s.Health != nil {
		s.router.HandleFunc("/api/internal/healthz", s.Health.LivenessHandler).Methods("GET")
		s.router.HandleFunc("/api/internal/readyz", s.Health.ReadinessHandler).Methods("GET")
	}
	if s.Gatherer != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.Gatherer)).Methods("GET")
	}

	if docs, err := swagger.NewHandlers("/api/docs"); err != nil {
		s.log.WithError(err).Error("API documentation unavailable")
	} else {
		docs.RegisterRoutes(s.router)
	}

	s.router.Handle("/api/auth/login",
		s.limit(s.Policies.Login, ratelimit.ByClientIP)(http.HandlerFunc(s.login))).Methods("POST")
	s.router.HandleFunc("/api/auth/logout", s.logout).Methods("POST")

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.sessions.Handler, ratelimit.MethodSplit(
		s.limit(s.Policies.APIRead, middleware.ByUser),
		s.limit(s.Policies.APIWrite, middleware.ByUser),
	))

	api.HandleFunc("/auth/me", s.me).Methods("GET")

	api.HandleFunc("/incidents", s.listIncidents).Methods("GET")
	api.HandleFunc("/incidents", s.createIncident).Methods("POST")
	api.HandleFunc("/incidents/stats", s.incidentStats).Methods("GET")
	api.HandleFunc("/incidents/{id}", s.getIncident).Methods("GET")
	api.HandleFunc("/incidents/{id}", s.updateIncident).Methods("PATCH")
	api.HandleFunc("/incidents/{id}", s.deleteIncident).Methods("DELETE")

	api.HandleFunc("/incidents/{id}/comments", s.listComments).Methods("GET")
	api.HandleFunc("/incidents/{id}/comments", s.createComment).Methods("POST")
	api.HandleFunc("/comments/{id}", s.deleteComment).Methods("DELETE")
}

// limit applies policy when a limiter is configured
func (s *Server) limit(policy ratelimit.Policy, keyFn ratelimit.KeyFunc) func(http.Handler) http.Handler {
	if s.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.Limiter.Middleware(policy, keyFn)
}

// Handler returns the instrumented root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, observability.FromContext(r.Context(), s.log), err)
}

func requestMeta(r *http.Request) audit.RequestMeta {
	return audit.RequestMeta{
		IPAddress: httputil.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
