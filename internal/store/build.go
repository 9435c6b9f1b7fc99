package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/nivostack/buildhub/internal/diff"
	"github.com/nivostack/buildhub/internal/models"
	"github.com/nivostack/buildhub/internal/snapshot"
)

// versionConstraint is the unique constraint guarding per-project versions.
const versionConstraint = "builds_project_version_key"

// versionRetries is how many times a create is retried after losing a version race.
const versionRetries = 1

// BuildStore handles build creation, metadata edits and deletion.
type BuildStore struct {
	Base
	serializer *snapshot.Serializer
}

// NewBuildStore creates a new BuildStore.
func NewBuildStore(base Base, serializer *snapshot.Serializer) *BuildStore {
	return &BuildStore{Base: base, serializer: serializer}
}

// CreateBuild snapshots the requested feature of a project and stores it as the
// project's next version, together with the change log against the previous
// build of that feature. The whole build is written in one transaction.
func (s *BuildStore) CreateBuild(ctx context.Context, userID string, req models.CreateBuildRequest) (*models.Build, error) {
	if !validID(userID, req.ProjectID) {
		return nil, models.ErrProjectNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	for attempt := 0; ; attempt++ {
		b, err := s.createBuildOnce(ctx, userID, req)
		if err == nil {
			s.notify("build.created", userID, map[string]any{
				"project_id":   b.ProjectID,
				"build_id":     b.ID,
				"version":      b.Version,
				"feature_type": req.Feature(),
			})

			return b, nil
		}

		if !isUniqueViolation(err, versionConstraint) {
			return nil, err
		}

		if attempt >= versionRetries {
			return nil, fmt.Errorf("%w: version assignment for project %s", models.ErrConflict, req.ProjectID)
		}

		s.Log.WithField("project_id", req.ProjectID).Warn("build version collision, retrying")
	}
}

func (s *BuildStore) createBuildOnce(ctx context.Context, userID string, req models.CreateBuildRequest) (*models.Build, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating build: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	version, err := nextVersion(ctx, tx, userID, req.ProjectID)
	if err != nil {
		return nil, err
	}

	ft := req.Feature()

	items, err := s.serializer.Snapshot(ctx, tx, userID, req.ProjectID, ft)
	if err != nil {
		return nil, err
	}

	name := req.Name
	if name == nil || *name == "" {
		def := fmt.Sprintf("%s v%d", ft.DisplayName(), version)
		name = &def
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO builds AS b (project_id, version, name, description, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+buildColumns,
		req.ProjectID, version, name, req.Description, userID,
	)

	b, err := scanBuild(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("inserting build: %w", err)
	}

	feature, err := insertFeature(ctx, tx, b.ID, ft, items)
	if err != nil {
		return nil, err
	}

	b.Features = append(b.Features, *feature)

	previous, err := previousSnapshot(ctx, tx, req.ProjectID, ft, version)
	if err != nil {
		return nil, err
	}

	if err := insertChangeLogs(ctx, tx, b.ID, ft, userID, diff.Items(previous, items)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing create build: %w", err)
	}

	return b, nil
}

// nextVersion bumps the project's version counter and returns the new value.
// The counter never falls below the highest stored version, so versions are
// never reused after deletions. The UPDATE also locks the project row, which
// serializes concurrent creates and mode changes for the project.
func nextVersion(ctx context.Context, tx pgx.Tx, userID, projectID string) (int, error) {
	var version int

	err := tx.QueryRow(ctx, `
		UPDATE projects p
		SET build_version_counter = GREATEST(
			p.build_version_counter,
			COALESCE((SELECT MAX(version) FROM builds WHERE project_id = p.id), 0)
		) + 1
		WHERE p.id = $1 AND p.user_id = $2
		RETURNING p.build_version_counter`,
		projectID, userID,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, models.ErrProjectNotFound
		}

		return 0, fmt.Errorf("assigning build version: %w", err)
	}

	return version, nil
}

func insertFeature(
	ctx context.Context, tx pgx.Tx, buildID string, ft models.FeatureType, items []models.SnapshotItem,
) (*models.BuildFeature, error) {
	raw, err := encodeItems(items)
	if err != nil {
		return nil, err
	}

	f := models.BuildFeature{BuildID: buildID, FeatureType: ft, ItemCount: len(items), Items: items}

	err = tx.QueryRow(ctx, `
		INSERT INTO build_features (build_id, feature_type, item_count, items_snapshot)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at`,
		buildID, string(ft), len(items), raw,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting build feature: %w", err)
	}

	return &f, nil
}

// lockBuildProject locks the project row owning buildID for the rest of the
// transaction and returns the project ID.
func lockBuildProject(ctx context.Context, tx pgx.Tx, userID, buildID string) (string, error) {
	var projectID string

	err := tx.QueryRow(ctx, `
		SELECT p.id::text
		FROM projects p
		JOIN builds b ON b.project_id = p.id
		WHERE b.id = $1 AND p.user_id = $2
		FOR UPDATE OF p`,
		buildID, userID,
	).Scan(&projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrBuildNotFound
		}

		return "", fmt.Errorf("locking build project: %w", err)
	}

	return projectID, nil
}

// buildUpdateQuery constructs the SET clause and arguments for UpdateBuild.
// An empty name or description clears the field.
func buildUpdateQuery(req models.UpdateBuildRequest) (setClauses []string, args []any, nextArg int) {
	setClauses = make([]string, 0, 3)
	args = make([]any, 0, 4)
	argIdx := 1

	if req.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = NULLIF($%d, '')", argIdx))
		args = append(args, *req.Name)
		argIdx++
	}

	if req.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = NULLIF($%d, '')", argIdx))
		args = append(args, *req.Description)
		argIdx++
	}

	return setClauses, args, argIdx
}

// UpdateBuild edits a build's name and description. Snapshots and version are
// never touched.
func (s *BuildStore) UpdateBuild(
	ctx context.Context, userID, buildID string, req models.UpdateBuildRequest,
) (*models.Build, error) {
	if !validID(userID, buildID) {
		return nil, models.ErrBuildNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("updating build: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	setClauses, args, argIdx := buildUpdateQuery(req)

	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = NOW()")

		query := fmt.Sprintf(`
			UPDATE builds b SET %s
			FROM projects p
			WHERE p.id = b.project_id AND b.id = $%d AND p.user_id = $%d`,
			strings.Join(setClauses, ", "), argIdx, argIdx+1,
		)
		args = append(args, buildID, userID)

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("updating build: %w", err)
		}

		if tag.RowsAffected() == 0 {
			return nil, models.ErrBuildNotFound
		}
	}

	b, err := getBuild(ctx, tx, userID, buildID, false)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing update build: %w", err)
	}

	if len(setClauses) > 0 {
		s.notify("build.updated", userID, map[string]any{"project_id": b.ProjectID, "build_id": b.ID})
	}

	return b, nil
}

// DeleteBuild removes a build with its snapshots and change log. A build that
// holds any mode is refused with models.ErrActiveBuild and left untouched.
// Returns the deleted build's summary.
func (s *BuildStore) DeleteBuild(ctx context.Context, userID, buildID string) (*models.Build, error) {
	if !validID(userID, buildID) {
		return nil, models.ErrBuildNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("deleting build: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	if _, err := lockBuildProject(ctx, tx, userID, buildID); err != nil {
		return nil, err
	}

	b, err := getBuild(ctx, tx, userID, buildID, false)
	if err != nil {
		return nil, err
	}

	if b.IsActive() {
		return nil, models.ErrActiveBuild
	}

	if _, err := tx.Exec(ctx, "DELETE FROM builds WHERE id = $1", buildID); err != nil {
		// build_modes references the build's features; a violation means a
		// mode was assigned concurrently.
		if isForeignKeyViolation(err) {
			return nil, models.ErrActiveBuild
		}

		return nil, fmt.Errorf("deleting build: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing delete build: %w", err)
	}

	s.notify("build.deleted", userID, map[string]any{"project_id": b.ProjectID, "build_id": b.ID})

	return b, nil
}
