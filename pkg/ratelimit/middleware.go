package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/httputil"
)

// KeyFunc extracts the identifier to limit on. ok=false skips limiting.
type KeyFunc func(r *http.Request) (identifier string, ok bool)

// ByClientIP limits on the client address resolved by httputil.ClientIPMiddleware,
// falling back to the connection address
func ByClientIP(r *http.Request) (string, bool) {
	return httputil.ClientIP(r), true
}

// Middleware applies policy to every request, setting X-RateLimit-* headers and
// answering 429 with Retry-After when the limit is exceeded.
func (l *Limiter) Middleware(policy Policy, keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := keyFn(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			res := l.CheckLimit(r.Context(), id, policy)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))

			if !res.Allowed {
				httputil.WriteError(w, nil, apperr.RateLimit(res.ResetTime.Sub(l.now())))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MethodSplit applies read to safe methods and write to everything else
func MethodSplit(read, write func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		readH, writeH := read(next), write(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				readH.ServeHTTP(w, r)
			default:
				writeH.ServeHTTP(w, r)
			}
		})
	}
}
