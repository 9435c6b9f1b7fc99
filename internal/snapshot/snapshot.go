// Package snapshot serializes the live configuration of a project feature
// into a deterministic, key-ordered item list that builds freeze.
package snapshot

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/nivostack/buildhub/internal/models"
)

// Querier is the read surface the serializer needs. pgx.Tx, *pgx.Conn and
// *pgxpool.Pool all satisfy it, so snapshots can run inside a build transaction.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Compile-time check that transactions can be passed to the serializer.
var _ Querier = (pgx.Tx)(nil)

// reader produces the unordered items of one feature type.
type reader func(ctx context.Context, q Querier, projectID string) ([]models.SnapshotItem, error)

// Serializer reads live feature data and produces snapshot items.
type Serializer struct {
	log     *logrus.Logger
	readers map[models.FeatureType]reader
}

// New creates a Serializer with readers for every supported feature type.
func New(log *logrus.Logger) *Serializer {
	return &Serializer{
		log: log,
		readers: map[models.FeatureType]reader{
			models.FeatureBusinessConfig: readBusinessConfig,
			models.FeatureLocalization:   readLocalization,
			models.FeatureAPIMocks:       readAPIMocks,
		},
	}
}

// Snapshot returns the current items of featureType for a project owned by
// ownerID, sorted by key. An empty feature yields an empty, non-nil list.
// Returns models.ErrProjectNotFound when the project is missing or not owned.
func (s *Serializer) Snapshot(
	ctx context.Context, q Querier, ownerID, projectID string, featureType models.FeatureType,
) ([]models.SnapshotItem, error) {
	read, ok := s.readers[featureType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidFeatureType, featureType)
	}

	if err := CheckOwnership(ctx, q, ownerID, projectID); err != nil {
		return nil, err
	}

	items, err := read(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("snapshotting %s: %w", featureType, err)
	}

	sortItems(items)

	s.log.WithFields(logrus.Fields{
		"project_id":   projectID,
		"feature_type": featureType,
		"items":        len(items),
	}).Debug("feature snapshot taken")

	return items, nil
}

// CheckOwnership returns models.ErrProjectNotFound unless projectID names a
// project owned by ownerID. Malformed IDs are reported as not found.
func CheckOwnership(ctx context.Context, q Querier, ownerID, projectID string) error {
	if _, err := uuid.Parse(projectID); err != nil {
		return models.ErrProjectNotFound
	}
	if _, err := uuid.Parse(ownerID); err != nil {
		return models.ErrProjectNotFound
	}

	var exists bool

	err := q.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1 AND user_id = $2)",
		projectID, ownerID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking project ownership: %w", err)
	}

	if !exists {
		return models.ErrProjectNotFound
	}

	return nil
}

// sortItems orders items by key with a byte-wise comparison, independent of
// the database collation. Items with equal keys keep their relative order.
func sortItems(items []models.SnapshotItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Key < items[j].Key
	})
}
