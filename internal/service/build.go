// Package service provides business logic between API handlers and data stores.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nivostack/buildhub/internal/cache"
	"github.com/nivostack/buildhub/internal/diff"
	"github.com/nivostack/buildhub/internal/domain"
	"github.com/nivostack/buildhub/internal/metrics"
	"github.com/nivostack/buildhub/internal/models"
)

// BuildStore is the data-access interface for builds.
type BuildStore interface {
	CreateBuild(ctx context.Context, userID string, req models.CreateBuildRequest) (*models.Build, error)
	GetBuild(ctx context.Context, userID, buildID string) (*models.Build, error)
	ListBuilds(ctx context.Context, userID, projectID string, featureType models.FeatureType) ([]models.Build, error)
	UpdateBuild(ctx context.Context, userID, buildID string, req models.UpdateBuildRequest) (*models.Build, error)
	DeleteBuild(ctx context.Context, userID, buildID string) (*models.Build, error)
}

// ModeStore is the data-access interface for mode assignments.
type ModeStore interface {
	SetMode(ctx context.Context, userID, buildID string, mode models.Mode, featureType models.FeatureType) (*models.Build, error)
	ClearMode(ctx context.Context, userID, buildID string, mode models.Mode) (*models.Build, error)
	ActiveBuilds(ctx context.Context, projectID string, mode models.Mode) ([]models.Build, error)
}

// ChangeLogStore reads persisted change logs.
type ChangeLogStore interface {
	ChangeLogs(ctx context.Context, userID, buildID string) ([]models.BuildChangeLog, error)
}

// Compile-time checks: *BuildService serves every build-facing domain interface.
var (
	_ domain.BuildService = (*BuildService)(nil)
	_ domain.ModeService  = (*BuildService)(nil)
	_ domain.DiffService  = (*BuildService)(nil)
)

// BuildService orchestrates build creation, mode changes and diffs on top of
// the stores, adding quota checks, audit entries, cache invalidation and metrics.
type BuildService struct {
	builds      BuildStore
	modes       ModeStore
	changes     ChangeLogStore
	quota       QuotaChecker
	payloads    cache.PayloadCache
	auditWorker AuditEnqueuer
	log         *logrus.Logger
}

// NewBuildService creates a BuildService. A nil payload cache disables caching
// and the quota defaults to AllowAll.
func NewBuildService(
	builds BuildStore, modes ModeStore, changes ChangeLogStore,
	payloads cache.PayloadCache, auditWorker AuditEnqueuer, log *logrus.Logger,
) *BuildService {
	if payloads == nil {
		payloads = cache.NopCache{}
	}

	return &BuildService{
		builds:      builds,
		modes:       modes,
		changes:     changes,
		quota:       AllowAll{},
		payloads:    payloads,
		auditWorker: auditWorker,
		log:         log,
	}
}

// SetQuotaChecker replaces the quota collaborator consulted before each create.
func (s *BuildService) SetQuotaChecker(q QuotaChecker) {
	if q != nil {
		s.quota = q
	}
}

// auditAsync enqueues an audit entry via the AuditWorker (best-effort, non-blocking).
// The request ID on ctx, if any, is recorded in the entry's detail.
func (s *BuildService) auditAsync(ctx context.Context, userID, projectID, action, buildID string, detail map[string]any) {
	if s.auditWorker == nil {
		return
	}
	if rid := domain.RequestID(ctx); rid != "" {
		if detail == nil {
			detail = make(map[string]any, 1)
		}
		detail["request_id"] = rid
	}
	s.auditWorker.Enqueue(&AuditJob{
		UserID:     userID,
		ProjectID:  projectID,
		Action:     action,
		EntityType: "build",
		EntityID:   buildID,
		Detail:     detail,
	})
}

func (s *BuildService) invalidate(ctx context.Context, projectID string) {
	if err := s.payloads.Invalidate(ctx, projectID); err != nil {
		s.log.WithError(err).WithField("project_id", projectID).Warn("sdk cache invalidation failed")
	}
}

// CreateBuild checks the quota, then snapshots the requested feature into a new build.
func (s *BuildService) CreateBuild(
	ctx context.Context, userID string, req models.CreateBuildRequest,
) (*models.Build, error) {
	if err := s.quota.CheckBuildQuota(ctx, userID, req.ProjectID); err != nil {
		return nil, err
	}

	b, err := s.builds.CreateBuild(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	ft := req.Feature()
	metrics.BuildsCreated.WithLabelValues(string(ft)).Inc()
	if f := b.Feature(ft); f != nil {
		metrics.SnapshotItems.WithLabelValues(string(ft)).Observe(float64(f.ItemCount))
	}

	s.auditAsync(ctx, userID, b.ProjectID, "build.create", b.ID, map[string]any{
		"version":      b.Version,
		"feature_type": ft,
	})

	return b, nil
}

// GetBuild returns a build with its snapshots (pass-through).
func (s *BuildService) GetBuild(ctx context.Context, userID, buildID string) (*models.Build, error) {
	return s.builds.GetBuild(ctx, userID, buildID)
}

// ListBuilds returns a project's builds newest first (pass-through).
func (s *BuildService) ListBuilds(
	ctx context.Context, userID, projectID string, featureType models.FeatureType,
) ([]models.Build, error) {
	return s.builds.ListBuilds(ctx, userID, projectID, featureType)
}

// UpdateBuild edits build metadata and records an audit entry.
func (s *BuildService) UpdateBuild(
	ctx context.Context, userID, buildID string, req models.UpdateBuildRequest,
) (*models.Build, error) {
	b, err := s.builds.UpdateBuild(ctx, userID, buildID, req)
	if err != nil {
		return nil, err
	}

	s.auditAsync(ctx, userID, b.ProjectID, "build.update", b.ID, nil)

	return b, nil
}

// DeleteBuild removes an inactive build. Active builds yield models.ErrActiveBuild.
func (s *BuildService) DeleteBuild(ctx context.Context, userID, buildID string) error {
	b, err := s.builds.DeleteBuild(ctx, userID, buildID)
	if err != nil {
		return err
	}

	s.invalidate(ctx, b.ProjectID)
	s.auditAsync(ctx, userID, b.ProjectID, "build.delete", b.ID, map[string]any{"version": b.Version})

	return nil
}

// SetMode makes the build active for req.Mode and drops the project's cached SDK payloads.
func (s *BuildService) SetMode(
	ctx context.Context, userID, buildID string, req models.SetModeRequest,
) (*models.Build, error) {
	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}

	b, err := s.modes.SetMode(ctx, userID, buildID, mode, models.FeatureType(req.FeatureType))
	if err != nil {
		return nil, err
	}

	metrics.ModeChanges.WithLabelValues(string(mode), "set").Inc()
	s.invalidate(ctx, b.ProjectID)
	s.auditAsync(ctx, userID, b.ProjectID, "build.mode.set", b.ID, map[string]any{
		"mode":         mode,
		"feature_type": req.FeatureType,
	})

	return b, nil
}

// ClearMode removes the build's assignments for mode.
func (s *BuildService) ClearMode(
	ctx context.Context, userID, buildID string, mode models.Mode,
) (*models.Build, error) {
	b, err := s.modes.ClearMode(ctx, userID, buildID, mode)
	if err != nil {
		return nil, err
	}

	metrics.ModeChanges.WithLabelValues(string(mode), "clear").Inc()
	s.invalidate(ctx, b.ProjectID)
	s.auditAsync(ctx, userID, b.ProjectID, "build.mode.clear", b.ID, map[string]any{"mode": mode})

	return b, nil
}

// loadPair fetches both builds concurrently and rejects pairs from different projects.
func (s *BuildService) loadPair(ctx context.Context, userID, oldID, newID string) (*models.Build, *models.Build, error) {
	var oldBuild, newBuild *models.Build

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := s.builds.GetBuild(gctx, userID, oldID)
		oldBuild = b
		return err
	})
	g.Go(func() error {
		b, err := s.builds.GetBuild(gctx, userID, newID)
		newBuild = b
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if oldBuild.ProjectID != newBuild.ProjectID {
		return nil, nil, models.ErrProjectMismatch
	}

	return oldBuild, newBuild, nil
}

// DiffBuilds computes the per-feature change records turning oldID into newID.
func (s *BuildService) DiffBuilds(ctx context.Context, userID, oldID, newID string) (models.BuildDiff, error) {
	start := time.Now()

	oldBuild, newBuild, err := s.loadPair(ctx, userID, oldID, newID)
	if err != nil {
		return nil, err
	}

	d := diff.Compute(oldBuild.Features, newBuild.Features)
	metrics.DiffDuration.Observe(time.Since(start).Seconds())

	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"old_id":   oldID,
		"new_id":   newID,
		"features": len(d),
	}).Debug("build.diff")

	return d, nil
}

// PatchBuilds renders a unified text patch of every feature either build carries.
func (s *BuildService) PatchBuilds(ctx context.Context, userID, oldID, newID string, contextLines int) (string, error) {
	oldBuild, newBuild, err := s.loadPair(ctx, userID, oldID, newID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, ft := range models.FeatureTypes {
		of, nf := oldBuild.Feature(ft), newBuild.Feature(ft)
		if of == nil && nf == nil {
			continue
		}

		p, err := diff.Patch(patchName(oldBuild, ft), patchName(newBuild, ft), featureItems(of), featureItems(nf), contextLines)
		if err != nil {
			return "", err
		}
		sb.WriteString(p)
	}

	return sb.String(), nil
}

// ChangeLogs returns the change log persisted when the build was created.
func (s *BuildService) ChangeLogs(ctx context.Context, userID, buildID string) ([]models.BuildChangeLog, error) {
	return s.changes.ChangeLogs(ctx, userID, buildID)
}

func patchName(b *models.Build, ft models.FeatureType) string {
	return fmt.Sprintf("v%d/%s", b.Version, ft)
}

func featureItems(f *models.BuildFeature) []models.SnapshotItem {
	if f == nil {
		return nil
	}

	return f.Items
}
