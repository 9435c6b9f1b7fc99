package models

import (
	"encoding/json"
	"time"
)

// ChangeType classifies a single item-level difference.
type ChangeType string

// Change types.
const (
	ChangeAdded   ChangeType = "added"
	ChangeDeleted ChangeType = "deleted"
	ChangeChanged ChangeType = "changed"
)

// ChangeRecord describes how one item differs between two builds.
// OldValue is set for deleted/changed, NewValue for added/changed.
type ChangeRecord struct {
	ItemKey    string          `json:"itemKey"`
	ItemLabel  *string         `json:"itemLabel,omitempty"`
	ChangeType ChangeType      `json:"changeType"`
	OldValue   json.RawMessage `json:"oldValue,omitempty"`
	NewValue   json.RawMessage `json:"newValue,omitempty"`
}

// BuildDiff maps each feature type present in either build to its change records.
type BuildDiff map[FeatureType][]ChangeRecord

// BuildChangeLog is a change record persisted at build creation time against the
// previous build of the same feature type.
type BuildChangeLog struct {
	ID          int64       `json:"id"`
	BuildID     string      `json:"buildId"`
	FeatureType FeatureType `json:"featureType"`
	ChangeRecord
	ChangedBy *string   `json:"changedBy,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}
