package incident

import (
	"strings"
	"testing"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewIncidentValidate(t *testing.T) {
	valid := NewIncident{Title: "Phishing", Description: "Credential harvest page", Severity: SeverityHigh}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		input NewIncident
		field string
	}{
		{"missing title", NewIncident{Description: "d", Severity: SeverityLow}, "title"},
		{"long title", NewIncident{Title: strings.Repeat("x", 256), Description: "d", Severity: SeverityLow}, "title"},
		{"missing description", NewIncident{Title: "t", Description: "  ", Severity: SeverityLow}, "description"},
		{"bad severity", NewIncident{Title: "t", Description: "d", Severity: "SEVERE"}, "severity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			require.Error(t, err)
			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.KindValidation, e.Kind)
			assert.Contains(t, e.Details, tt.field)
		})
	}
}

func TestPatchChanges(t *testing.T) {
	before := &Incident{
		Title:       "Old",
		Description: "same",
		Severity:    SeverityLow,
		Status:      StatusOpen,
	}
	status := StatusInProgress
	sev := SeverityLow
	patch := Patch{
		Title:       strPtr("New"),
		Description: strPtr("same"),
		Severity:    &sev,
		Status:      &status,
		Source:      strPtr("siem"),
	}

	changes := patch.Changes(before)
	assert.Len(t, changes, 3)
	assert.Equal(t, Change{From: "Old", To: "New"}, changes["title"])
	assert.Equal(t, Change{From: StatusOpen, To: StatusInProgress}, changes["status"])
	assert.Equal(t, Change{From: nil, To: "siem"}, changes["source"])

	patch.Apply(before)
	assert.Equal(t, "New", before.Title)
	assert.Equal(t, StatusInProgress, before.Status)
	require.NotNil(t, before.Source)
	assert.Equal(t, "siem", *before.Source)
}

func TestPatchStatusChange(t *testing.T) {
	same := StatusOpen
	_, changed := Patch{Status: &same}.StatusChange(StatusOpen)
	assert.False(t, changed)

	_, changed = Patch{}.StatusChange(StatusOpen)
	assert.False(t, changed)

	next := StatusResolved
	to, changed := Patch{Status: &next}.StatusChange(StatusOpen)
	assert.True(t, changed)
	assert.Equal(t, StatusResolved, to)
}

func TestQueryNormalize(t *testing.T) {
	q := Query{Q: "  malware "}
	require.NoError(t, q.Normalize())
	assert.Equal(t, DefaultLimit, q.Limit)
	assert.Equal(t, "malware", q.Q)

	q = Query{Limit: 101}
	assert.Error(t, q.Normalize())

	q = Query{Limit: 10, Status: "DONE"}
	assert.Error(t, q.Normalize())
}

func TestNewPage(t *testing.T) {
	rows := []*Incident{{ID: "c"}, {ID: "b"}, {ID: "a"}}
	idOf := func(i *Incident) string { return i.ID }

	page := NewPage(rows, 2, idOf)
	assert.Len(t, page.Data, 2)
	assert.True(t, page.Pagination.HasMore)
	require.NotNil(t, page.Pagination.NextCursor)
	assert.Equal(t, "b", *page.Pagination.NextCursor)

	page = NewPage(rows, 3, idOf)
	assert.Len(t, page.Data, 3)
	assert.False(t, page.Pagination.HasMore)
	assert.Nil(t, page.Pagination.NextCursor)

	empty := NewPage[*Incident](nil, 20, idOf)
	assert.NotNil(t, empty.Data)
	assert.Empty(t, empty.Data)
}

func TestStatsFromCounts(t *testing.T) {
	s := StatsFromCounts(map[Status]int64{StatusOpen: 2, StatusResolved: 1, StatusClosed: 4})
	assert.Equal(t, Stats{Total: 7, Open: 2, Resolved: 1, Closed: 4}, s)
}
