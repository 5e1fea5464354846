// Package cli implements warden-admin, the operator command line.
//
// # Commands
//
// create-user: Register an account. The password comes from -password or
// $WARDEN_ADMIN_PASSWORD.
//
//	warden-admin create-user \
//		-email oncall@example.com \
//		-name "On-call Analyst" \
//		-role ANALYST
//
// cleanup-sessions: Delete expired sessions once, outside the server's schedule.
//
//	warden-admin cleanup-sessions
//
// migrate: Create missing tables in the configured Postgres database.
//
//	warden-admin migrate
//
// flush-cache: Delete cached incidents, lists and tag sets from Redis. Rate
// limit counters are left alone.
//
//	warden-admin flush-cache -pattern 'incidents:list:*'
//
// Storage, Redis and session settings are read with pkg/config, so the same
// WARDEN_* variables used by the server apply.
package cli
