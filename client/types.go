package client

import (
	"encoding/json"
	"time"
)

// Feature types a build can snapshot.
const (
	FeatureBusinessConfig = "business_config"
	FeatureLocalization   = "localization"
	FeatureAPIMocks       = "api_mocks"
)

// Modes a build can be assigned to.
const (
	ModePreview    = "preview"
	ModeProduction = "production"
)

// Change types reported by diffs.
const (
	ChangeAdded   = "added"
	ChangeDeleted = "deleted"
	ChangeChanged = "changed"
)

// SnapshotItem is one key's frozen value inside a build feature.
type SnapshotItem struct {
	Key   string          `json:"key"`
	Label *string         `json:"label,omitempty"`
	Value json.RawMessage `json:"value"`
}

// BuildFeature is the frozen snapshot of one feature type.
type BuildFeature struct {
	ID          string         `json:"id"`
	BuildID     string         `json:"buildId"`
	FeatureType string         `json:"featureType"`
	ItemCount   int            `json:"itemCount"`
	Items       []SnapshotItem `json:"items,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// ModeAssignment records the active build for a (project, feature, mode).
type ModeAssignment struct {
	ProjectID   string    `json:"projectId"`
	FeatureType string    `json:"featureType"`
	Mode        string    `json:"mode"`
	BuildID     string    `json:"buildId"`
	AssignedAt  time.Time `json:"assignedAt"`
}

// Build is an immutable, versioned configuration snapshot.
type Build struct {
	ID          string           `json:"id"`
	ProjectID   string           `json:"projectId"`
	Version     int              `json:"version"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	CreatedBy   *string          `json:"createdBy"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	Features    []BuildFeature   `json:"features"`
	Modes       []ModeAssignment `json:"modes"`
}

// CreateBuildRequest is the payload for creating a build.
type CreateBuildRequest struct {
	ProjectID   string  `json:"projectId"`
	FeatureType string  `json:"featureType"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// UpdateBuildRequest edits build metadata. An empty string clears the field.
type UpdateBuildRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// SetModeRequest assigns a build to a mode, optionally for one feature only.
type SetModeRequest struct {
	Mode        string `json:"mode"`
	FeatureType string `json:"featureType,omitempty"`
}

// ChangeRecord describes how one item differs between two builds.
type ChangeRecord struct {
	ItemKey    string          `json:"itemKey"`
	ItemLabel  *string         `json:"itemLabel,omitempty"`
	ChangeType string          `json:"changeType"`
	OldValue   json.RawMessage `json:"oldValue,omitempty"`
	NewValue   json.RawMessage `json:"newValue,omitempty"`
}

// BuildDiff maps each feature type to its change records.
type BuildDiff map[string][]ChangeRecord

// ChangeLog is a change record persisted when a build was created.
type ChangeLog struct {
	ID          int64  `json:"id"`
	BuildID     string `json:"buildId"`
	FeatureType string `json:"featureType"`
	ChangeRecord
	ChangedBy *string   `json:"changedBy,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}

// BuildDetail is a build together with its creation change log.
type BuildDetail struct {
	Build   Build       `json:"build"`
	Changes []ChangeLog `json:"changes"`
}

// ActiveBuildInfo is the active build of one feature type.
type ActiveBuildInfo struct {
	BuildID   string         `json:"buildId"`
	Version   int            `json:"version"`
	Name      *string        `json:"name"`
	CreatedAt time.Time      `json:"createdAt"`
	Items     []SnapshotItem `json:"items"`
}

// ActivePayload is what SDK consumers receive for a project mode.
type ActivePayload struct {
	ProjectID string                     `json:"projectId"`
	Mode      string                     `json:"mode"`
	Features  map[string]ActiveBuildInfo `json:"features"`
	FetchedAt time.Time                  `json:"fetchedAt"`
}

// AuditEntry is one row of the build activity log.
type AuditEntry struct {
	ID         int64          `json:"id"`
	ProjectID  *string        `json:"projectId,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// AuditQueryOptions filters activity log queries.
type AuditQueryOptions struct {
	ProjectID  string
	EntityType string
	EntityID   string
	Action     string
	Since      *time.Time
	Limit      int
	Offset     int
}

// HealthResponse is the liveness endpoint payload.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	SchemaVersion int     `json:"schema_version"`
	WSClients     int     `json:"ws_clients"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ReadyResponse is the readiness endpoint payload.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
