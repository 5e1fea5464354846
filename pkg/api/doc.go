// Package api serves the warden HTTP API.
//
// # Routes
//
//	POST   /api/auth/login               login, rate limited per client address
//	POST   /api/auth/logout              logout, always succeeds
//	GET    /api/auth/me                  current user
//	GET    /api/incidents                list and search (status, severity, q, cursor, limit)
//	POST   /api/incidents                create
//	GET    /api/incidents/stats          counts by status
//	GET    /api/incidents/{id}           read
//	PATCH  /api/incidents/{id}           update, including status transitions
//	DELETE /api/incidents/{id}           delete (analysts)
//	GET    /api/incidents/{id}/comments  list comments
//	POST   /api/incidents/{id}/comments  add a comment
//	DELETE /api/comments/{id}            delete a comment
//	GET    /api/internal/healthz         liveness
//	GET    /api/internal/readyz          readiness
//	GET    /api/docs                     Swagger UI (openapi.yaml, openapi.json below it)
//	GET    /metrics                      Prometheus metrics
//
// Every /api route except login, logout, the docs and the health probes requires a session.
// Authenticated reads and writes are rate limited per user with separate budgets.
//
// Errors use one envelope:
//
//	{"error": {"code": "AUTHORIZATION_ERROR", "message": "...", "details": {...}}}
package api
