package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/nivostack/buildhub/internal/models"
)

// maxChangeLogBatch limits the number of rows per INSERT statement to stay
// within the bind parameter limit.
const maxChangeLogBatch = 500

// ChangeLogStore reads the per-build change logs written at creation time.
type ChangeLogStore struct {
	Base
}

// NewChangeLogStore creates a new ChangeLogStore.
func NewChangeLogStore(base Base) *ChangeLogStore {
	return &ChangeLogStore{Base: base}
}

// previousSnapshot returns the items of the newest build below version that
// carries featureType, or nil if there is none.
func previousSnapshot(
	ctx context.Context, tx pgx.Tx, projectID string, ft models.FeatureType, version int,
) ([]models.SnapshotItem, error) {
	var raw []byte

	err := tx.QueryRow(ctx, `
		SELECT bf.items_snapshot
		FROM builds b
		JOIN build_features bf ON bf.build_id = b.id AND bf.feature_type = $2
		WHERE b.project_id = $1 AND b.version < $3
		ORDER BY b.version DESC
		LIMIT 1`,
		projectID, string(ft), version,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("loading previous snapshot: %w", err)
	}

	return decodeItems(raw)
}

// insertChangeLogs writes the change records of a new build in batches.
func insertChangeLogs(
	ctx context.Context, tx pgx.Tx, buildID string, ft models.FeatureType, changedBy string, changes []models.ChangeRecord,
) error {
	const cols = 8

	for i := 0; i < len(changes); i += maxChangeLogBatch {
		end := min(i+maxChangeLogBatch, len(changes))
		batch := changes[i:end]

		valueParts := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*cols)

		for j, c := range batch {
			base := j*cols + 1
			valueParts = append(valueParts, fmt.Sprintf(
				"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
				base, base+1, base+2, base+3, base+4, base+5, base+6, base+7,
			))
			args = append(args, buildID, string(ft), string(c.ChangeType), c.ItemKey, c.ItemLabel,
				nullableJSON(c.OldValue), nullableJSON(c.NewValue), changedBy)
		}

		sql := `INSERT INTO build_change_logs
			(build_id, feature_type, change_type, item_key, item_label, old_value, new_value, changed_by)
			VALUES ` + strings.Join(valueParts, ", ")

		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("inserting change logs: %w", err)
		}
	}

	return nil
}

// nullableJSON maps an absent value to SQL NULL rather than JSON null.
func nullableJSON(v []byte) any {
	if len(v) == 0 {
		return nil
	}

	return string(v)
}

// ChangeLogs returns the change log recorded when buildID was created,
// ordered by feature type and item key.
func (s *ChangeLogStore) ChangeLogs(ctx context.Context, userID, buildID string) ([]models.BuildChangeLog, error) {
	if !validID(userID, buildID) {
		return nil, models.ErrBuildNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing change logs: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx, rollback is a no-op.

	var owned bool

	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM builds b JOIN projects p ON p.id = b.project_id
			WHERE b.id = $1 AND p.user_id = $2)`,
		buildID, userID,
	).Scan(&owned)
	if err != nil {
		return nil, fmt.Errorf("checking build ownership: %w", err)
	}

	if !owned {
		return nil, models.ErrBuildNotFound
	}

	rows, err := tx.Query(ctx, `
		SELECT id, build_id::text, feature_type, change_type, item_key, item_label,
			old_value, new_value, changed_by::text, changed_at
		FROM build_change_logs
		WHERE build_id = $1
		ORDER BY feature_type, item_key`,
		buildID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying change logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.BuildChangeLog, 0, 16)

	for rows.Next() {
		var (
			l        models.BuildChangeLog
			oldValue []byte
			newValue []byte
		)

		if err := rows.Scan(&l.ID, &l.BuildID, &l.FeatureType, &l.ChangeType, &l.ItemKey, &l.ItemLabel,
			&oldValue, &newValue, &l.ChangedBy, &l.ChangedAt); err != nil {
			return nil, fmt.Errorf("scanning change log: %w", err)
		}

		if l.OldValue, err = compactJSON(oldValue); err != nil {
			return nil, err
		}
		if l.NewValue, err = compactJSON(newValue); err != nil {
			return nil, err
		}

		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating change logs: %w", err)
	}

	return logs, nil
}
