// Package store provides focused, single-concern data access stores
// for builds, modes, change logs and the activity log.
//
// Each store owns one domain and embeds shared helpers (Pool, logger)
// via the Base struct. Stores never import each other; shared logic
// lives in this file or in dedicated helper files.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/nivostack/buildhub/internal/dbpool"
)

const defaultQueryTimeout = 30 * time.Second

// notifyChannel is the LISTEN/NOTIFY channel realtime clients are fed from.
const notifyChannel = "build_changes"

// Base contains shared dependencies for all stores.
// Embed this in each store struct.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// validID reports whether id is a well-formed UUID. Lookups with malformed IDs
// are answered as not found instead of surfacing a cast error from Postgres.
func validID(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}

	return true
}

// beginTx starts a read-write transaction.
func (b *Base) beginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return tx, nil
}

// beginReadTx starts a read-only transaction.
func (b *Base) beginReadTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := b.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}

	return tx, nil
}

// notify sends a pg_notify on the build_changes channel (best-effort, post-commit).
func (b *Base) notify(eventType, userID string, fields map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	body := map[string]any{
		"type":    eventType,
		"user_id": userID,
	}
	for k, v := range fields {
		body[k] = v
	}

	payload, err := json.Marshal(body)
	if err != nil {
		b.Log.WithError(err).Warn("failed to encode " + eventType + " notification")
		return
	}

	if _, err := b.Pool.Exec(ctx, "SELECT pg_notify('"+notifyChannel+"', $1)", string(payload)); err != nil {
		b.Log.WithError(err).Warn("failed to send " + eventType + " notification")
	}
}

// pgErrorCode returns the SQLSTATE of err, or "" if it is not a Postgres error.
func pgErrorCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}

	return "", ""
}

// isUniqueViolation reports a 23505 on the named constraint (any constraint if empty).
func isUniqueViolation(err error, constraint string) bool {
	code, name := pgErrorCode(err)
	return code == "23505" && (constraint == "" || name == constraint)
}

// isForeignKeyViolation reports a 23503 foreign key violation.
func isForeignKeyViolation(err error) bool {
	code, _ := pgErrorCode(err)
	return code == "23503"
}
