package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation (surfaced as 400).
var (
	ErrMissingProjectID   = errors.New("projectId is required")
	ErrMissingFeatureType = errors.New("featureType is required")
	ErrInvalidFeatureType = errors.New("featureType must be business_config, localization, or api_mocks")
	ErrInvalidMode        = errors.New(`mode must be "preview" or "production"`)
	ErrProjectMismatch    = errors.New("builds must belong to the same project")
)

// Sentinel errors for entity lookups (surfaced as 404).
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrBuildNotFound   = errors.New("build not found")
)

// ErrConflict indicates a version assignment race that survived its retry (409).
var ErrConflict = errors.New("conflict")

// ErrActiveBuild is returned when deleting a build that holds a mode (409).
var ErrActiveBuild = errors.New("cannot delete an active build")

// ErrInvalidState is returned when a mode is set for a feature the build does not carry.
var ErrInvalidState = errors.New("build has no snapshot for the requested feature type")

// ErrQuotaExceeded is returned when the quota collaborator rejects a build (403).
var ErrQuotaExceeded = errors.New("build quota exceeded")

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}
