package incident

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/warden/pkg/apperr"
)

// Status is an incident lifecycle state
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
)

// InitialStatus is assigned to every new incident
const InitialStatus = StatusOpen

// Statuses returns every status in lifecycle order
func Statuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// ParseStatus parses a status name, case-insensitively
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

// Transition is a directed edge in the status graph
type Transition struct {
	From Status
	To   Status
}

func (t Transition) String() string {
	return fmt.Sprintf("%s->%s", t.From, t.To)
}

// Edge sets per actor class. Analysts are unrestricted and need no table.
var (
	// CLIENT_ADMIN never reaches CLOSED.
	adminTransitions = map[Transition]bool{
		{StatusOpen, StatusInProgress}:     true,
		{StatusOpen, StatusResolved}:       true,
		{StatusInProgress, StatusOpen}:     true,
		{StatusInProgress, StatusResolved}: true,
	}

	ownerTransitions = map[Transition]bool{
		{StatusOpen, StatusInProgress}: true,
	}
)

// AdminCanTransition reports whether a CLIENT_ADMIN may move from -> to
func AdminCanTransition(from, to Status) bool {
	return adminTransitions[Transition{from, to}]
}

// OwnerCanTransition reports whether the owning CLIENT_USER may move from -> to.
// Owners may resolve from any state and may start work on an open incident.
func OwnerCanTransition(from, to Status) bool {
	if to == StatusResolved {
		return true
	}
	return ownerTransitions[Transition{from, to}]
}

// TransitionError is the validation error for a rejected transition
func TransitionError(from, to Status) *apperr.Error {
	return apperr.Validationf("Cannot transition from %s to %s", from, to).
		WithDetails(map[string]interface{}{"from": string(from), "to": string(to)})
}
