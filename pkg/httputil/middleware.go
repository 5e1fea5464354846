package httputil

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/sirupsen/logrus"
)

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestIDMiddleware propagates X-Request-ID, generating a UUID when absent
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs one line per request
func LoggingMiddleware(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			observability.FromContext(r.Context(), log).WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
				"client_ip":   ClientIP(r),
			}).Info("request completed")
		})
	}
}

// RecoveryMiddleware turns handler panics into 500 responses
func RecoveryMiddleware(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					observability.FromContext(r.Context(), log).WithField("panic", rec).Error("PANIC in handler")
					WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrorBody{
						Code:    apperr.CodeInternal,
						Message: "An unexpected error occurred",
					}})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// OriginCheckMiddleware rejects state-changing requests whose Origin header names a
// host outside allowedOrigins. Requests without an Origin header pass through.
func OriginCheckMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] || allowed[origin] || sameHost(origin, r.Host) {
				next.ServeHTTP(w, r)
				return
			}
			WriteError(w, nil, apperr.Authorization("Invalid origin"))
		})
	}
}

func sameHost(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == host
}

// Chain chains multiple middleware together, outermost first
func Chain(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
