// Package rbac decides what an authenticated user may do with incidents and comments.
//
// # Rules
//
//	CanCreateIncident   any authenticated role
//	CanView             ANALYST, or the incident owner
//	CanUpdate           CLIENT_ADMIN and above, or the incident owner
//	CanDelete           ANALYST only
//	CanCreateComment    same as CanView
//	CanViewComments     same as CanView
//	CanDeleteComment    ANALYST, or the comment author
//
// Status transitions depend on the actor:
//
//	ANALYST        any transition
//	CLIENT_ADMIN   OPEN->IN_PROGRESS, OPEN->RESOLVED, IN_PROGRESS->OPEN, IN_PROGRESS->RESOLVED
//	owner          ->RESOLVED from any state, OPEN->IN_PROGRESS
//
// ListFilter derives the row-visibility scope from the user alone. Callers must apply
// it before any other filter so a client query can never widen it.
//
// # Usage
//
//	engine := rbac.NewEngine(log)
//	if err := engine.RequireIncidentAccess(user, inc, rbac.ActionUpdate); err != nil {
//		return err // *apperr.Error with kind authorization
//	}
package rbac
