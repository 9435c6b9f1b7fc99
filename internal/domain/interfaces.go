// Package domain defines the canonical service interfaces shared across the
// REST layer and the services. Consumers should depend on these interfaces
// rather than re-declaring equivalent ones.
package domain

import (
	"context"

	"github.com/nivostack/buildhub/internal/models"
)

// BuildService defines build lifecycle operations for an authenticated user.
type BuildService interface {
	CreateBuild(ctx context.Context, userID string, req models.CreateBuildRequest) (*models.Build, error)
	GetBuild(ctx context.Context, userID, buildID string) (*models.Build, error)
	ListBuilds(ctx context.Context, userID, projectID string, featureType models.FeatureType) ([]models.Build, error)
	UpdateBuild(ctx context.Context, userID, buildID string, req models.UpdateBuildRequest) (*models.Build, error)
	DeleteBuild(ctx context.Context, userID, buildID string) error
}

// ModeService defines preview/production assignment operations.
type ModeService interface {
	SetMode(ctx context.Context, userID, buildID string, req models.SetModeRequest) (*models.Build, error)
	ClearMode(ctx context.Context, userID, buildID string, mode models.Mode) (*models.Build, error)
}

// DiffService compares two builds of the same project.
type DiffService interface {
	DiffBuilds(ctx context.Context, userID, oldID, newID string) (models.BuildDiff, error)
	PatchBuilds(ctx context.Context, userID, oldID, newID string, context int) (string, error)
	ChangeLogs(ctx context.Context, userID, buildID string) ([]models.BuildChangeLog, error)
}

// SDKService resolves the active build payload for a project.
type SDKService interface {
	ActivePayload(ctx context.Context, projectID string, mode models.Mode) (*models.ActiveBuildPayload, error)
}

// AuditService defines audit log query and maintenance operations.
type AuditService interface {
	Auditor
	QueryAudit(ctx context.Context, userID string, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error)
	PurgeOldEntries(ctx context.Context, retentionDays int) (int, error)
}

// Auditor is the minimal interface for recording audit entries.
// Used by services for fire-and-forget audit logging.
type Auditor interface {
	RecordAudit(ctx context.Context, userID, projectID, action, entityType, entityID string, detail map[string]any) error
}
