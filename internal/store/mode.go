package store

import (
	"context"
	"fmt"

	"github.com/nivostack/buildhub/internal/models"
)

// ModeStore maintains the preview/production pointers. Each
// (project, feature type, mode) is a primary key in build_modes, so at most
// one build can hold it.
type ModeStore struct {
	Base
}

// NewModeStore creates a new ModeStore.
func NewModeStore(base Base) *ModeStore {
	return &ModeStore{Base: base}
}

// SetMode makes buildID the active build for mode, replacing whichever build
// held it, for every feature the build carries or only featureType when set.
// The other mode is never touched. Returns models.ErrInvalidState when the
// build has no snapshot of the requested feature.
func (s *ModeStore) SetMode(
	ctx context.Context, userID, buildID string, mode models.Mode, featureType models.FeatureType,
) (*models.Build, error) {
	if !validID(userID, buildID) {
		return nil, models.ErrBuildNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("setting build mode: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	projectID, err := lockBuildProject(ctx, tx, userID, buildID)
	if err != nil {
		return nil, err
	}

	b, err := getBuild(ctx, tx, userID, buildID, false)
	if err != nil {
		return nil, err
	}

	targets := make([]models.FeatureType, 0, len(b.Features))

	switch {
	case featureType != "":
		if !b.HasFeature(featureType) {
			return nil, fmt.Errorf("%w: build %s has no %s snapshot", models.ErrInvalidState, buildID, featureType)
		}
		targets = append(targets, featureType)
	default:
		for _, f := range b.Features {
			targets = append(targets, f.FeatureType)
		}
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: build %s has no snapshots", models.ErrInvalidState, buildID)
	}

	for _, ft := range targets {
		_, err := tx.Exec(ctx, `
			INSERT INTO build_modes (project_id, feature_type, mode, build_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (project_id, feature_type, mode)
			DO UPDATE SET build_id = EXCLUDED.build_id, assigned_at = NOW()`,
			projectID, string(ft), string(mode), buildID,
		)
		if err != nil {
			return nil, fmt.Errorf("assigning %s %s: %w", ft, mode, err)
		}
	}

	if b, err = getBuild(ctx, tx, userID, buildID, false); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing set mode: %w", err)
	}

	s.notify("build.mode_set", userID, map[string]any{
		"project_id": projectID,
		"build_id":   buildID,
		"mode":       mode,
	})

	return b, nil
}

// ClearMode releases mode from buildID for every feature it holds it for.
// Clearing a mode the build does not hold is a no-op.
func (s *ModeStore) ClearMode(ctx context.Context, userID, buildID string, mode models.Mode) (*models.Build, error) {
	if !validID(userID, buildID) {
		return nil, models.ErrBuildNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("clearing build mode: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	projectID, err := lockBuildProject(ctx, tx, userID, buildID)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		"DELETE FROM build_modes WHERE build_id = $1 AND mode = $2",
		buildID, string(mode),
	)
	if err != nil {
		return nil, fmt.Errorf("clearing %s: %w", mode, err)
	}

	b, err := getBuild(ctx, tx, userID, buildID, false)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing clear mode: %w", err)
	}

	if tag.RowsAffected() > 0 {
		s.notify("build.mode_cleared", userID, map[string]any{
			"project_id": projectID,
			"build_id":   buildID,
			"mode":       mode,
		})
	}

	return b, nil
}

// ActiveBuilds returns the builds currently assigned to mode in a project,
// with their snapshots. Callers are trusted to have authorized the project,
// typically through its SDK API key.
func (s *ModeStore) ActiveBuilds(ctx context.Context, projectID string, mode models.Mode) ([]models.Build, error) {
	if !validID(projectID) {
		return nil, models.ErrProjectNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active builds: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx, rollback is a no-op.

	rows, err := tx.Query(ctx, `
		SELECT `+buildColumns+`
		FROM builds b
		WHERE b.id IN (SELECT build_id FROM build_modes WHERE project_id = $1 AND mode = $2)
		ORDER BY b.version DESC`,
		projectID, string(mode),
	)
	if err != nil {
		return nil, fmt.Errorf("querying active builds: %w", err)
	}

	builds, err := collectBuilds(rows)
	rows.Close()

	if err != nil {
		return nil, err
	}

	if err := hydrateBuilds(ctx, tx, builds, true); err != nil {
		return nil, err
	}

	out := make([]models.Build, 0, len(builds))
	for _, b := range builds {
		out = append(out, *b)
	}

	return out, nil
}
