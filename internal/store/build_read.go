package store

import (
	"context"
	"fmt"

	"github.com/nivostack/buildhub/internal/models"
	"github.com/nivostack/buildhub/internal/snapshot"
)

// GetBuild returns a build owned by userID with its snapshots and modes.
func (s *BuildStore) GetBuild(ctx context.Context, userID, buildID string) (*models.Build, error) {
	if !validID(userID, buildID) {
		return nil, models.ErrBuildNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting build: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx, rollback is a no-op.

	return getBuild(ctx, tx, userID, buildID, true)
}

// ListBuilds returns a project's builds newest version first, without snapshot
// items. When featureType is set only builds carrying that feature are listed.
func (s *BuildStore) ListBuilds(
	ctx context.Context, userID, projectID string, featureType models.FeatureType,
) ([]models.Build, error) {
	if !validID(userID, projectID) {
		return nil, models.ErrProjectNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx, rollback is a no-op.

	if err := snapshot.CheckOwnership(ctx, tx, userID, projectID); err != nil {
		return nil, err
	}

	query := `SELECT ` + buildColumns + ` FROM builds b WHERE b.project_id = $1`
	args := []any{projectID}

	if featureType != "" {
		query += ` AND EXISTS (
			SELECT 1 FROM build_features bf
			WHERE bf.build_id = b.id AND bf.feature_type = $2)`
		args = append(args, string(featureType))
	}

	query += fmt.Sprintf(" ORDER BY b.version DESC LIMIT %d", maxListLimit)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying builds: %w", err)
	}

	builds, err := collectBuilds(rows)
	rows.Close()

	if err != nil {
		return nil, err
	}

	if err := hydrateBuilds(ctx, tx, builds, false); err != nil {
		return nil, err
	}

	out := make([]models.Build, 0, len(builds))
	for _, b := range builds {
		out = append(out, *b)
	}

	return out, nil
}
