package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Field length limits.
const (
	MaxNameLength        = 200
	MaxDescriptionLength = 2000
)

// SnapshotItem is one key's frozen value inside a build feature.
type SnapshotItem struct {
	Key   string          `json:"key"`
	Label *string         `json:"label,omitempty"`
	Value json.RawMessage `json:"value"`
}

// BuildFeature is the frozen snapshot of one feature type inside a build.
// Items is omitted from list responses.
type BuildFeature struct {
	ID          string         `json:"id"`
	BuildID     string         `json:"buildId"`
	FeatureType FeatureType    `json:"featureType"`
	ItemCount   int            `json:"itemCount"`
	Items       []SnapshotItem `json:"items,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// ModeAssignment records that BuildID is the active build for (project, feature, mode).
type ModeAssignment struct {
	ProjectID   string      `json:"projectId"`
	FeatureType FeatureType `json:"featureType"`
	Mode        Mode        `json:"mode"`
	BuildID     string      `json:"buildId"`
	AssignedAt  time.Time   `json:"assignedAt"`
}

// Build is an immutable, versioned snapshot of a project's configuration.
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

// IsActive reports whether the build currently holds any mode.
func (b *Build) IsActive() bool {
	return len(b.Modes) > 0
}

// HasFeature reports whether the build carries a snapshot for ft.
func (b *Build) HasFeature(ft FeatureType) bool {
	for _, f := range b.Features {
		if f.FeatureType == ft {
			return true
		}
	}

	return false
}

// Feature returns the build's snapshot for ft, or nil.
func (b *Build) Feature(ft FeatureType) *BuildFeature {
	for i := range b.Features {
		if b.Features[i].FeatureType == ft {
			return &b.Features[i]
		}
	}

	return nil
}

// ActiveIn reports whether the build holds mode m for any feature.
func (b *Build) ActiveIn(m Mode) bool {
	for _, a := range b.Modes {
		if a.Mode == m {
			return true
		}
	}

	return false
}

// CreateBuildRequest is the payload for creating a build.
type CreateBuildRequest struct {
	ProjectID   string  `json:"projectId"`
	FeatureType string  `json:"featureType"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Validate checks required fields and trims optional strings.
func (r *CreateBuildRequest) Validate() error {
	r.ProjectID = strings.TrimSpace(r.ProjectID)
	if r.ProjectID == "" {
		return ErrMissingProjectID
	}

	if _, err := ParseFeatureType(r.FeatureType); err != nil {
		return err
	}

	return validateMetadata(r.Name, r.Description)
}

// Feature returns the validated feature type. Call Validate first.
func (r *CreateBuildRequest) Feature() FeatureType {
	return FeatureType(r.FeatureType)
}

// UpdateBuildRequest edits build metadata. Nil fields are left unchanged.
type UpdateBuildRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Validate checks field lengths.
func (r *UpdateBuildRequest) Validate() error {
	return validateMetadata(r.Name, r.Description)
}

// SetModeRequest assigns a build to a mode, optionally for one feature only.
type SetModeRequest struct {
	Mode        string `json:"mode"`
	FeatureType string `json:"featureType,omitempty"`
}

// Validate checks the mode and the optional feature type.
func (r *SetModeRequest) Validate() error {
	if _, err := ParseMode(r.Mode); err != nil {
		return err
	}

	if r.FeatureType != "" {
		if _, err := ParseFeatureType(r.FeatureType); err != nil {
			return err
		}
	}

	return nil
}

func validateMetadata(name, description *string) error {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		*name = trimmed
		if len(trimmed) > MaxNameLength {
			return ErrFieldTooLong("name", MaxNameLength)
		}
	}

	if description != nil && len(*description) > MaxDescriptionLength {
		return ErrFieldTooLong("description", MaxDescriptionLength)
	}

	return nil
}
