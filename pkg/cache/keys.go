package cache

import (
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/warden/pkg/incident"
)

// TagIncidentLists marks every list, search and stats entry
const TagIncidentLists = "incidents:lists"

// KeyPatterns match every key the cache writes, tag sets included
var KeyPatterns = []string{"incident:*", "incidents:*", tagKeyPrefix + "*"}

// IncidentTag marks entries scoped to one incident
func IncidentTag(id string) string {
	return "incident:" + id
}

// IncidentKey caches a single incident
func IncidentKey(id string) string {
	return "incident:" + id
}

// CommentsKey caches one page of an incident's comments
func CommentsKey(incidentID, cursor string, limit int) string {
	if cursor == "" {
		cursor = "start"
	}
	return fmt.Sprintf("incident:%s:comments:%s:%d", incidentID, cursor, limit)
}

type listParams struct {
	Scope incident.Scope `json:"scope"`
	Query incident.Query `json:"query"`
}

// ListKey caches one page of a list or search. The scope is part of the key so
// callers with different visibility never share an entry.
func ListKey(scope incident.Scope, q incident.Query) string {
	prefix := "incidents:list:"
	if q.Q != "" {
		prefix = "incidents:search:"
	}
	// struct fields marshal in declaration order, which keeps the key canonical
	raw, _ := json.Marshal(listParams{Scope: scope, Query: q})
	return prefix + string(raw)
}

// StatsKey caches the status counts visible under scope
func StatsKey(scope incident.Scope) string {
	if scope.Unrestricted() {
		return "incidents:stats:all"
	}
	return "incidents:stats:owner:" + scope.OwnerID
}

// ListTags returns the tags for list, search and stats entries
func ListTags() []string {
	return []string{TagIncidentLists}
}

// IncidentTags returns the tags for entries scoped to one incident
func IncidentTags(id string) []string {
	return []string{IncidentTag(id)}
}
