package rbac

import (
	"fmt"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/incident"
	"github.com/sirupsen/logrus"
)

// RequireRole fails with an authorization error unless user holds required or higher
func (e *Engine) RequireRole(user *auth.User, required auth.Role) error {
	if auth.HasRole(user, required) {
		return nil
	}
	return e.deny(user, "role", "", fmt.Sprintf("Requires %s role", required))
}

// RequireIncidentCreate fails unless user may create incidents
func (e *Engine) RequireIncidentCreate(user *auth.User) error {
	if e.CanCreateIncident(user) {
		return nil
	}
	return e.deny(user, "create_incident", "", "You do not have permission to create incidents")
}

// RequireIncidentAccess fails unless user may perform action on inc
func (e *Engine) RequireIncidentAccess(user *auth.User, inc *incident.Incident, action Action) error {
	var allowed bool
	switch action {
	case ActionView:
		allowed = e.CanView(user, inc)
	case ActionUpdate:
		allowed = e.CanUpdate(user, inc)
	case ActionDelete:
		allowed = e.CanDelete(user, inc)
	}
	if allowed {
		return nil
	}
	return e.deny(user, string(action)+"_incident", incidentID(inc),
		fmt.Sprintf("You do not have permission to %s this incident", action))
}

// RequireStatusTransition fails with a validation error when the transition is not allowed
func (e *Engine) RequireStatusTransition(user *auth.User, inc *incident.Incident, from, to incident.Status) error {
	if e.CanTransitionStatus(user, inc, from, to) {
		return nil
	}
	e.entry(user).WithFields(logrus.Fields{
		"incident_id": incidentID(inc),
		"from":        from,
		"to":          to,
	}).Debug("status transition rejected")
	return incident.TransitionError(from, to)
}

// RequireCommentCreate fails unless user may comment on inc
func (e *Engine) RequireCommentCreate(user *auth.User, inc *incident.Incident) error {
	if e.CanCreateComment(user, inc) {
		return nil
	}
	return e.deny(user, "create_comment", incidentID(inc), "You do not have permission to comment on this incident")
}

// RequireCommentView fails unless user may read comments on inc
func (e *Engine) RequireCommentView(user *auth.User, inc *incident.Incident) error {
	if e.CanViewComments(user, inc) {
		return nil
	}
	return e.deny(user, "view_comments", incidentID(inc), "You do not have permission to view comments on this incident")
}

// RequireCommentDelete fails unless user may delete c
func (e *Engine) RequireCommentDelete(user *auth.User, c *incident.Comment) error {
	if e.CanDeleteComment(user, c) {
		return nil
	}
	id := ""
	if c != nil {
		id = c.ID
	}
	return e.deny(user, "delete_comment", id, "You do not have permission to delete this comment")
}

func (e *Engine) deny(user *auth.User, check, resourceID, message string) error {
	e.entry(user).WithFields(logrus.Fields{
		"check":       check,
		"resource_id": resourceID,
	}).Debug("access denied")
	return apperr.Authorization(message)
}

func (e *Engine) entry(user *auth.User) *logrus.Entry {
	fields := logrus.Fields{}
	if user != nil {
		fields["user_id"] = user.ID
		fields["role"] = user.Role
	}
	return e.log.WithFields(fields)
}

func incidentID(inc *incident.Incident) string {
	if inc == nil {
		return ""
	}
	return inc.ID
}
