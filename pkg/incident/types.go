// Package incident defines the incident and comment domain model, the status
// transition graph, input validation, and the persistence contracts.
package incident

import (
	"context"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/auth"
)

// Severity of an incident
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is a known severity
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ParseSeverity parses a severity name, case-insensitively
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	return sev, sev.Valid()
}

// Incident is a reported security event
type Incident struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Severity    Severity   `json:"severity"`
	Status      Status     `json:"status"`
	Source      *string    `json:"source"`
	CreatedByID string     `json:"createdById"`
	CreatedBy   *auth.User `json:"createdBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsOwner reports whether userID created the incident
func (i *Incident) IsOwner(userID string) bool {
	return i != nil && userID != "" && i.CreatedByID == userID
}

// Comment is a note attached to an incident
type Comment struct {
	ID         string     `json:"id"`
	IncidentID string     `json:"incidentId"`
	AuthorID   string     `json:"authorId"`
	Author     *auth.User `json:"author,omitempty"`
	Body       string     `json:"body"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Scope restricts which incidents a query may see. The zero value is unrestricted.
type Scope struct {
	OwnerID string `json:"createdById,omitempty"`
}

// Unrestricted reports whether the scope admits every incident
func (s Scope) Unrestricted() bool {
	return s.OwnerID == ""
}

// Admits reports whether inc falls inside the scope
func (s Scope) Admits(inc *Incident) bool {
	return s.Unrestricted() || inc.CreatedByID == s.OwnerID
}

// Query holds list filters and pagination
type Query struct {
	Status   Status   `json:"status,omitempty"`
	Severity Severity `json:"severity,omitempty"`
	Q        string   `json:"q,omitempty"`
	Cursor   string   `json:"cursor,omitempty"`
	Limit    int      `json:"limit"`
}

// Pagination describes how to fetch the next page
type Pagination struct {
	NextCursor *string `json:"nextCursor"`
	HasMore    bool    `json:"hasMore"`
}

// Page is a single page of results in descending creation order
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// NewPage builds a page from up to limit+1 fetched rows. The extra row only
// signals that more results exist and is not returned.
func NewPage[T any](rows []T, limit int, idOf func(T) string) Page[T] {
	page := Page[T]{Data: rows}
	if page.Data == nil {
		page.Data = []T{}
	}
	if limit > 0 && len(rows) > limit {
		page.Data = rows[:limit]
		page.Pagination.HasMore = true
		next := idOf(page.Data[len(page.Data)-1])
		page.Pagination.NextCursor = &next
	}
	return page
}

// Stats counts incidents by status
type Stats struct {
	Total      int64 `json:"total"`
	Open       int64 `json:"open"`
	InProgress int64 `json:"in_progress"`
	Resolved   int64 `json:"resolved"`
	Closed     int64 `json:"closed"`
}

// StatsFromCounts folds per-status counts into Stats
func StatsFromCounts(counts map[Status]int64) Stats {
	s := Stats{
		Open:       counts[StatusOpen],
		InProgress: counts[StatusInProgress],
		Resolved:   counts[StatusResolved],
		Closed:     counts[StatusClosed],
	}
	s.Total = s.Open + s.InProgress + s.Resolved + s.Closed
	return s
}

// Store persists incidents.
// Get returns nil, nil when the incident does not exist.
type Store interface {
	Create(ctx context.Context, inc *Incident) error
	Get(ctx context.Context, id string) (*Incident, error)
	Update(ctx context.Context, inc *Incident) error
	Delete(ctx context.Context, id string) error
	// List returns up to q.Limit+1 incidents inside scope, newest first,
	// strictly older than q.Cursor when set.
	List(ctx context.Context, scope Scope, q Query) ([]*Incident, error)
	CountByStatus(ctx context.Context, scope Scope) (map[Status]int64, error)
}

// CommentStore persists comments.
// Get returns nil, nil when the comment does not exist.
type CommentStore interface {
	Create(ctx context.Context, c *Comment) error
	Get(ctx context.Context, id string) (*Comment, error)
	Delete(ctx context.Context, id string) error
	// ListByIncident returns up to limit+1 comments, newest first,
	// strictly older than cursor when set.
	ListByIncident(ctx context.Context, incidentID, cursor string, limit int) ([]*Comment, error)
}
