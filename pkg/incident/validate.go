package incident

import (
	"strings"
	"unicode/utf8"

	"github.com/platinummonkey/warden/pkg/apperr"
)

// Input limits
const (
	MaxTitleLength = 255
	DefaultLimit   = 20
	MaxLimit       = 100
)

// NewIncident is the input for creating an incident
type NewIncident struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Source      *string  `json:"source,omitempty"`
}

// Validate checks the input and returns a validation error with per-field details
func (n NewIncident) Validate() error {
	fields := map[string]interface{}{}
	validateTitle(n.Title, fields)
	if strings.TrimSpace(n.Description) == "" {
		fields["description"] = "Description is required"
	}
	if !n.Severity.Valid() {
		fields["severity"] = "Invalid severity"
	}
	return fieldErrors(fields)
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Severity    *Severity `json:"severity,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Source      *string   `json:"source,omitempty"`
}

// Validate checks every field that is set
func (p Patch) Validate() error {
	fields := map[string]interface{}{}
	if p.Title != nil {
		validateTitle(*p.Title, fields)
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		fields["description"] = "Description is required"
	}
	if p.Severity != nil && !p.Severity.Valid() {
		fields["severity"] = "Invalid severity"
	}
	if p.Status != nil && !p.Status.Valid() {
		fields["status"] = "Invalid status"
	}
	return fieldErrors(fields)
}

// Empty reports whether the patch sets nothing
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Severity == nil && p.Status == nil && p.Source == nil
}

// StatusChange returns the requested status when it differs from the current one
func (p Patch) StatusChange(current Status) (Status, bool) {
	if p.Status == nil || *p.Status == current {
		return "", false
	}
	return *p.Status, true
}

// Change is the before and after value of one field
type Change struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

// Changes returns the fields the patch would actually modify on before
func (p Patch) Changes(before *Incident) map[string]Change {
	changes := map[string]Change{}
	if p.Title != nil && *p.Title != before.Title {
		changes["title"] = Change{From: before.Title, To: *p.Title}
	}
	if p.Description != nil && *p.Description != before.Description {
		changes["description"] = Change{From: before.Description, To: *p.Description}
	}
	if p.Severity != nil && *p.Severity != before.Severity {
		changes["severity"] = Change{From: before.Severity, To: *p.Severity}
	}
	if p.Status != nil && *p.Status != before.Status {
		changes["status"] = Change{From: before.Status, To: *p.Status}
	}
	if p.Source != nil && (before.Source == nil || *p.Source != *before.Source) {
		var from interface{}
		if before.Source != nil {
			from = *before.Source
		}
		changes["source"] = Change{From: from, To: *p.Source}
	}
	return changes
}

// Apply copies the set fields onto inc
func (p Patch) Apply(inc *Incident) {
	if p.Title != nil {
		inc.Title = *p.Title
	}
	if p.Description != nil {
		inc.Description = *p.Description
	}
	if p.Severity != nil {
		inc.Severity = *p.Severity
	}
	if p.Status != nil {
		inc.Status = *p.Status
	}
	if p.Source != nil {
		src := *p.Source
		inc.Source = &src
	}
}

// Normalize applies the default limit and validates filters
func (q *Query) Normalize() error {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	fields := map[string]interface{}{}
	if q.Limit < 1 || q.Limit > MaxLimit {
		fields["limit"] = "Limit must be between 1 and 100"
	}
	if q.Status != "" && !q.Status.Valid() {
		fields["status"] = "Invalid status"
	}
	if q.Severity != "" && !q.Severity.Valid() {
		fields["severity"] = "Invalid severity"
	}
	q.Q = strings.TrimSpace(q.Q)
	return fieldErrors(fields)
}

// NormalizeLimit applies the default limit and checks bounds for comment pages
func NormalizeLimit(limit int) (int, error) {
	if limit == 0 {
		return DefaultLimit, nil
	}
	if limit < 1 || limit > MaxLimit {
		return 0, apperr.Validation("Limit must be between 1 and 100")
	}
	return limit, nil
}

// ValidateCommentBody rejects empty comments
func ValidateCommentBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return apperr.Validation("Comment body is required")
	}
	return nil
}

func validateTitle(title string, fields map[string]interface{}) {
	switch n := utf8.RuneCountInString(strings.TrimSpace(title)); {
	case n == 0:
		fields["title"] = "Title is required"
	case utf8.RuneCountInString(title) > MaxTitleLength:
		fields["title"] = "Title too long"
	}
}

func fieldErrors(fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return apperr.Validation("Invalid input").WithDetails(fields)
}
