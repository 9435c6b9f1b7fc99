package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nivostack/buildhub/internal/models"
)

// AccountStore resolves callers: users from token subjects and projects from
// SDK API keys.
type AccountStore struct {
	Base
}

// NewAccountStore creates an AccountStore.
func NewAccountStore(base Base) *AccountStore {
	return &AccountStore{Base: base}
}

// HashAPIKey returns the hex SHA-256 digest stored in projects.api_key_hash.
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

// UserExists reports whether userID names an existing user.
func (s *AccountStore) UserExists(ctx context.Context, userID string) (bool, error) {
	if !validID(userID) {
		return false, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var exists bool

	err := s.Pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)", userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("looking up user: %w", err)
	}

	return exists, nil
}

// GetProjectByAPIKey looks up a project and its owner by API key hash.
func (s *AccountStore) GetProjectByAPIKey(ctx context.Context, apiKey string) (projectID, ownerID string, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err = s.Pool.QueryRow(ctx,
		"SELECT id::text, user_id::text FROM projects WHERE api_key_hash = $1",
		HashAPIKey(apiKey),
	).Scan(&projectID, &ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", models.ErrProjectNotFound
		}

		return "", "", fmt.Errorf("looking up project by API key: %w", err)
	}

	return projectID, ownerID, nil
}
