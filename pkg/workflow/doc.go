// Package workflow orchestrates the incident lifecycle. Every operation runs the
// same pipeline: authorize, validate, persist, invalidate cached reads, audit.
//
// Services never trust the caller to scope queries. List and Stats derive the
// visibility scope from the authenticated user before any cache or store access,
// so a cached page is only ever served to callers with the same scope.
//
// Status changes go through the transition table in package incident:
//
//	OPEN ──► IN_PROGRESS ──► RESOLVED ──► CLOSED
//	  ▲            │
//	  └────────────┘
//
// Analysts may take any edge. A client admin may move between OPEN, IN_PROGRESS
// and RESOLVED but never close. The owning client user may start work on an open
// incident and may resolve from any state.
package workflow
