package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nivostack/buildhub/internal/models"
)

// buildColumns lists the columns selected for build queries (alias b).
const buildColumns = `b.id::text, b.project_id::text, b.version, b.name, b.description,
	b.created_by::text, b.created_at, b.updated_at`

// maxListLimit caps list queries.
const maxListLimit = 1000

// scanBuild scans a single row into a models.Build.
func scanBuild(scan func(dest ...any) error) (*models.Build, error) {
	var b models.Build

	err := scan(
		&b.ID,
		&b.ProjectID,
		&b.Version,
		&b.Name,
		&b.Description,
		&b.CreatedBy,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Features = []models.BuildFeature{}
	b.Modes = []models.ModeAssignment{}

	return &b, nil
}

// collectBuilds scans all rows into a build slice.
func collectBuilds(rows pgx.Rows) ([]*models.Build, error) {
	builds := make([]*models.Build, 0, 16)

	for rows.Next() {
		b, err := scanBuild(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning build row: %w", err)
		}

		builds = append(builds, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating build rows: %w", err)
	}

	return builds, nil
}

// getBuild loads one build owned by userID, with its features and modes.
// Snapshot items are only loaded when withItems is set.
func getBuild(ctx context.Context, tx pgx.Tx, userID, buildID string, withItems bool) (*models.Build, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+buildColumns+`
		FROM builds b
		JOIN projects p ON p.id = b.project_id
		WHERE b.id = $1 AND p.user_id = $2`,
		buildID, userID,
	)

	b, err := scanBuild(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrBuildNotFound
		}

		return nil, fmt.Errorf("scanning build: %w", err)
	}

	if err := hydrateBuilds(ctx, tx, []*models.Build{b}, withItems); err != nil {
		return nil, err
	}

	return b, nil
}

// hydrateBuilds attaches features and mode assignments to builds.
func hydrateBuilds(ctx context.Context, tx pgx.Tx, builds []*models.Build, withItems bool) error {
	if len(builds) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(builds))
	byID := make(map[string]*models.Build, len(builds))

	for _, b := range builds {
		id, err := uuid.Parse(b.ID)
		if err != nil {
			return fmt.Errorf("parsing build id %q: %w", b.ID, err)
		}

		ids = append(ids, id)
		byID[b.ID] = b
	}

	if err := loadFeatures(ctx, tx, ids, byID, withItems); err != nil {
		return err
	}

	return loadModes(ctx, tx, ids, byID)
}

func loadFeatures(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, byID map[string]*models.Build, withItems bool) error {
	snapshotCol := "NULL::jsonb"
	if withItems {
		snapshotCol = "items_snapshot"
	}

	rows, err := tx.Query(ctx, `
		SELECT id::text, build_id::text, feature_type, item_count, created_at, `+snapshotCol+`
		FROM build_features
		WHERE build_id = ANY($1)
		ORDER BY feature_type`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("querying build features: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			f        models.BuildFeature
			snapshot []byte
		)

		if err := rows.Scan(&f.ID, &f.BuildID, &f.FeatureType, &f.ItemCount, &f.CreatedAt, &snapshot); err != nil {
			return fmt.Errorf("scanning build feature: %w", err)
		}

		if snapshot != nil {
			if f.Items, err = decodeItems(snapshot); err != nil {
				return fmt.Errorf("build %s %s: %w", f.BuildID, f.FeatureType, err)
			}
		}

		if b, ok := byID[f.BuildID]; ok {
			b.Features = append(b.Features, f)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating build features: %w", err)
	}

	return nil
}

func loadModes(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, byID map[string]*models.Build) error {
	rows, err := tx.Query(ctx, `
		SELECT project_id::text, feature_type, mode, build_id::text, assigned_at
		FROM build_modes
		WHERE build_id = ANY($1)
		ORDER BY feature_type, mode`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("querying build modes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.ModeAssignment

		if err := rows.Scan(&m.ProjectID, &m.FeatureType, &m.Mode, &m.BuildID, &m.AssignedAt); err != nil {
			return fmt.Errorf("scanning build mode: %w", err)
		}

		if b, ok := byID[m.BuildID]; ok {
			b.Modes = append(b.Modes, m)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating build modes: %w", err)
	}

	return nil
}

// decodeItems parses a stored snapshot. jsonb re-formats whitespace on the way
// out, so values are compacted back to the form they were written in.
func decodeItems(raw []byte) ([]models.SnapshotItem, error) {
	var items []models.SnapshotItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}

	for i := range items {
		v, err := compactJSON(items[i].Value)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", items[i].Key, err)
		}

		items[i].Value = v
	}

	if items == nil {
		items = []models.SnapshotItem{}
	}

	return items, nil
}

// encodeItems serializes a snapshot for storage.
func encodeItems(items []models.SnapshotItem) ([]byte, error) {
	if items == nil {
		items = []models.SnapshotItem{}
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(items); err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// compactJSON strips the whitespace jsonb adds on output. nil stays nil.
func compactJSON(raw []byte) (json.RawMessage, error) {
	if raw == nil {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("compacting json: %w", err)
	}

	return buf.Bytes(), nil
}
