// Package middleware provides the session authentication middleware and the
// request keys used for per-user rate limiting.
//
// # Session Authentication
//
// SessionAuth reads the session token from the session cookie (or, for API
// clients, an "Authorization: Bearer" header), resolves it to a user and stores
// the user in the request context:
//
//	sessions := middleware.NewSessionAuth(authService, middleware.DefaultCookieConfig(), log)
//	api.Use(sessions.Handler)
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		user := middleware.CurrentUser(r)
//	}
//
// Requests without a valid session get 401 AUTHENTICATION_ERROR.
//
// # Rate Limiting
//
// ByUser keys ratelimit policies on the authenticated user id, so it must run
// after SessionAuth:
//
//	api.Use(sessions.Handler, ratelimit.MethodSplit(
//		limiter.Middleware(policies.APIRead, middleware.ByUser),
//		limiter.Middleware(policies.APIWrite, middleware.ByUser),
//	))
package middleware
