package audit

import (
	"context"
	"time"
)

// Action identifies what was done
type Action string

const (
	ActionLogin           Action = "LOGIN"
	ActionLogout          Action = "LOGOUT"
	ActionCreateIncident  Action = "CREATE_INCIDENT"
	ActionUpdateIncident  Action = "UPDATE_INCIDENT"
	ActionDeleteIncident  Action = "DELETE_INCIDENT"
	ActionCreateComment   Action = "CREATE_COMMENT"
	ActionDeleteComment   Action = "DELETE_COMMENT"
	ActionViewIncident    Action = "VIEW_INCIDENT"
	ActionSearchIncidents Action = "SEARCH_INCIDENTS"
)

// Resource kinds referenced by records
const (
	ResourceIncident = "incident"
	ResourceComment  = "comment"
)

// Record is one audit trail entry
type Record struct {
	ID         string                 `json:"id"`
	UserID     *string                `json:"userId,omitempty"`
	Action     Action                 `json:"action"`
	Resource   string                 `json:"resource,omitempty"`
	ResourceID string                 `json:"resourceId,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	IPAddress  string                 `json:"ipAddress,omitempty"`
	UserAgent  string                 `json:"userAgent,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// RequestMeta carries caller metadata copied onto every record
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Writer appends records to durable storage
type Writer interface {
	Append(ctx context.Context, rec *Record) error
}
