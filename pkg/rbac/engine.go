package rbac

import (
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/incident"
	"github.com/sirupsen/logrus"
)

// Action is an operation on an incident
type Action string

const (
	ActionView   Action = "view"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Engine evaluates access rules. It holds no state besides its logger and is safe
// for concurrent use.
type Engine struct {
	log logrus.FieldLogger
}

// NewEngine creates an engine. A nil logger discards denial logs.
func NewEngine(log logrus.FieldLogger) *Engine {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Engine{log: log.WithField("component", "rbac")}
}

// CanCreateIncident reports whether user may report incidents
func (e *Engine) CanCreateIncident(user *auth.User) bool {
	return auth.HasRole(user, auth.RoleClientUser)
}

// CanView reports whether user may read inc
func (e *Engine) CanView(user *auth.User, inc *incident.Incident) bool {
	if user == nil || inc == nil {
		return false
	}
	return auth.HasRole(user, auth.RoleAnalyst) || inc.IsOwner(user.ID)
}

// CanUpdate reports whether user may modify inc
func (e *Engine) CanUpdate(user *auth.User, inc *incident.Incident) bool {
	if user == nil || inc == nil {
		return false
	}
	return auth.HasRole(user, auth.RoleClientAdmin) || inc.IsOwner(user.ID)
}

// CanDelete reports whether user may delete inc
func (e *Engine) CanDelete(user *auth.User, inc *incident.Incident) bool {
	if user == nil || inc == nil {
		return false
	}
	return auth.HasRole(user, auth.RoleAnalyst)
}

// CanCreateComment reports whether user may comment on inc
func (e *Engine) CanCreateComment(user *auth.User, inc *incident.Incident) bool {
	return e.CanView(user, inc)
}

// CanViewComments reports whether user may read comments on inc
func (e *Engine) CanViewComments(user *auth.User, inc *incident.Incident) bool {
	return e.CanView(user, inc)
}

// CanDeleteComment reports whether user may delete c
func (e *Engine) CanDeleteComment(user *auth.User, c *incident.Comment) bool {
	if user == nil || c == nil {
		return false
	}
	return auth.HasRole(user, auth.RoleAnalyst) || (user.ID != "" && c.AuthorID == user.ID)
}

// CanTransitionStatus reports whether user may move inc from one status to another
func (e *Engine) CanTransitionStatus(user *auth.User, inc *incident.Incident, from, to incident.Status) bool {
	if user == nil || inc == nil || !from.Valid() || !to.Valid() {
		return false
	}

	switch {
	case auth.HasRole(user, auth.RoleAnalyst):
		return true
	case auth.HasRole(user, auth.RoleClientAdmin):
		return incident.AdminCanTransition(from, to)
	case auth.HasRole(user, auth.RoleClientUser) && inc.IsOwner(user.ID):
		return incident.OwnerCanTransition(from, to)
	}
	return false
}

// ListFilter returns the visibility scope for user. Users below ANALYST only see
// their own incidents.
func (e *Engine) ListFilter(user *auth.User) incident.Scope {
	if auth.HasRole(user, auth.RoleAnalyst) {
		return incident.Scope{}
	}
	if user == nil {
		// Unreachable for authenticated callers; match nothing
		return incident.Scope{OwnerID: "\x00"}
	}
	return incident.Scope{OwnerID: user.ID}
}
