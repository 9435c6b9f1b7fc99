package models

import "time"

// AuditEntry is one row of a user's build activity log.
type AuditEntry struct {
	ID         int64          `json:"id"`
	UserID     string         `json:"-"`
	ProjectID  *string        `json:"projectId,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// AuditQueryOpts holds filters for querying the activity log.
type AuditQueryOpts struct {
	ProjectID  string
	EntityType string
	EntityID   string
	Action     string
	Since      *time.Time
	Limit      int
	Offset     int
}
