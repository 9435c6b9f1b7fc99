package api

import (
	"context"

	"github.com/nivostack/buildhub/internal/domain"
	"github.com/nivostack/buildhub/internal/models"
)

// BuildRepository defines build lifecycle operations used by BuildHandler.
type BuildRepository = domain.BuildService

// ModeRepository defines mode assignment operations used by BuildHandler.
type ModeRepository = domain.ModeService

// DiffRepository defines diff and change log operations used by BuildHandler.
type DiffRepository = domain.DiffService

// SDKRepository resolves active build payloads for SDKHandler.
type SDKRepository = domain.SDKService

// AuditRepository defines audit log queries used by AuditHandler.
type AuditRepository interface {
	QueryAudit(ctx context.Context, userID string, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error)
}

// Pinger reports whether an optional backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
