package store_test

import (
	"context"
	"testing"

	"github.com/nivostack/buildhub/internal/models"
	"github.com/nivostack/buildhub/internal/store"
)

func TestRecordAndQuery(t *testing.T) {
	f := setupFixture(t)
	as := store.NewAuditStore(f.base)
	ctx := context.Background()

	err := as.RecordAudit(ctx, f.userID, f.projectID, "build.create", "build", "test-build-1",
		map[string]any{"version": 1})
	if err != nil {
		t.Fatalf("RecordAudit: %v", err)
	}

	entries, hasMore, err := as.QueryAudit(ctx, f.userID, models.AuditQueryOpts{
		ProjectID:  f.projectID,
		EntityType: "build",
		EntityID:   "test-build-1",
		Limit:      10,
	})
	if err != nil {
		t.Fatalf("QueryAudit: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("QueryAudit returned %d entries, want 1", len(entries))
	}
	if hasMore {
		t.Error("hasMore = true, want false")
	}

	e := entries[0]
	if e.Action != "build.create" {
		t.Errorf("Action = %q, want %q", e.Action, "build.create")
	}
	if e.ProjectID == nil || *e.ProjectID != f.projectID {
		t.Errorf("ProjectID = %v, want %s", e.ProjectID, f.projectID)
	}
	if e.Detail["version"] != float64(1) {
		t.Errorf("Detail[version] = %v, want 1", e.Detail["version"])
	}

	other := setupFixture(t)

	foreign, _, err := as.QueryAudit(ctx, other.userID, models.AuditQueryOpts{EntityID: "test-build-1"})
	if err != nil {
		t.Fatalf("QueryAudit(other): %v", err)
	}
	if len(foreign) != 0 {
		t.Errorf("other user sees %d entries, want 0", len(foreign))
	}
}

func TestPurgeOldEntries(t *testing.T) {
	f := setupFixture(t)
	as := store.NewAuditStore(f.base)
	ctx := context.Background()

	// Insert an entry then backdate it via raw SQL.
	if err := as.RecordAudit(ctx, f.userID, "", "build.delete", "build", "old-build", nil); err != nil {
		t.Fatalf("RecordAudit: %v", err)
	}

	f.exec(t,
		"UPDATE audit_log SET created_at = NOW() - INTERVAL '400 days' WHERE user_id = $1 AND entity_id = 'old-build'",
		f.userID)

	// Also insert a recent entry that should NOT be purged.
	if err := as.RecordAudit(ctx, f.userID, "", "build.create", "build", "new-build", nil); err != nil {
		t.Fatalf("RecordAudit: %v", err)
	}

	purged, err := as.PurgeOldEntries(ctx, 365)
	if err != nil {
		t.Fatalf("PurgeOldEntries: %v", err)
	}

	if purged < 1 {
		t.Errorf("PurgeOldEntries purged %d, want >= 1", purged)
	}

	entries, _, err := as.QueryAudit(ctx, f.userID, models.AuditQueryOpts{
		EntityID: "new-build",
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("QueryAudit after purge: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("QueryAudit after purge = %d entries, want 1", len(entries))
	}
}
