package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/nivostack/buildhub/internal/domain"
	"github.com/nivostack/buildhub/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func item(key, value string) models.SnapshotItem {
	return models.SnapshotItem{Key: key, Value: json.RawMessage(value)}
}

func configBuild(id, projectID string, version int, items ...models.SnapshotItem) *models.Build {
	return &models.Build{
		ID:        id,
		ProjectID: projectID,
		Version:   version,
		Features: []models.BuildFeature{{
			BuildID:     id,
			FeatureType: models.FeatureBusinessConfig,
			ItemCount:   len(items),
			Items:       items,
		}},
	}
}

func byID(builds ...*models.Build) func(context.Context, string, string) (*models.Build, error) {
	return func(_ context.Context, _, id string) (*models.Build, error) {
		for _, b := range builds {
			if b.ID == id {
				return b, nil
			}
		}
		return nil, models.ErrBuildNotFound
	}
}

func newTestBuildService(builds *mockBuildStore, modes *mockModeStore, c *memCache) (*BuildService, *recordingEnqueuer) {
	enq := &recordingEnqueuer{}
	if modes == nil {
		modes = &mockModeStore{}
	}
	svc := NewBuildService(builds, modes, &mockChangeLogStore{}, c, enq, testLogger())
	return svc, enq
}

func TestBuildService_CreateBuild(t *testing.T) {
	tests := []struct {
		name      string
		quotaErr  error
		storeErr  error
		wantErr   error
		wantStore bool
		wantAudit bool
	}{
		{name: "success", wantStore: true, wantAudit: true},
		{name: "quota exceeded", quotaErr: models.ErrQuotaExceeded, wantErr: models.ErrQuotaExceeded},
		{name: "store error", storeErr: models.ErrProjectNotFound, wantErr: models.ErrProjectNotFound, wantStore: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockBuildStore{
				createBuild: func(_ context.Context, _ string, req models.CreateBuildRequest) (*models.Build, error) {
					if tc.storeErr != nil {
						return nil, tc.storeErr
					}
					return configBuild("b1", req.ProjectID, 1, item("a", "1")), nil
				},
			}
			svc, enq := newTestBuildService(store, nil, newMemCache())
			svc.SetQuotaChecker(quotaFunc(func(context.Context, string, string) error { return tc.quotaErr }))

			req := models.CreateBuildRequest{ProjectID: "p1", FeatureType: "business_config"}
			b, err := svc.CreateBuild(context.Background(), "u1", req)

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
			} else if err != nil || b.Version != 1 {
				t.Fatalf("CreateBuild = %+v, %v", b, err)
			}

			if got := len(store.getCalls()) == 1; got != tc.wantStore {
				t.Errorf("store called = %v, want %v", got, tc.wantStore)
			}

			if got := len(enq.actions()) == 1; got != tc.wantAudit {
				t.Errorf("audited = %v, want %v", got, tc.wantAudit)
			}
		})
	}
}

func TestBuildService_DeleteBuild(t *testing.T) {
	t.Run("success invalidates cache", func(t *testing.T) {
		store := &mockBuildStore{
			deleteBuild: func(context.Context, string, string) (*models.Build, error) {
				return configBuild("b1", "p1", 2), nil
			},
		}
		c := newMemCache()
		svc, enq := newTestBuildService(store, nil, c)

		if err := svc.DeleteBuild(context.Background(), "u1", "b1"); err != nil {
			t.Fatalf("DeleteBuild: %v", err)
		}
		if len(c.invalidated) != 1 || c.invalidated[0] != "p1" {
			t.Errorf("invalidated = %v", c.invalidated)
		}
		if a := enq.actions(); len(a) != 1 || a[0] != "build.delete" {
			t.Errorf("audit actions = %v", a)
		}
	})

	t.Run("active build", func(t *testing.T) {
		store := &mockBuildStore{
			deleteBuild: func(context.Context, string, string) (*models.Build, error) {
				return nil, models.ErrActiveBuild
			},
		}
		c := newMemCache()
		svc, enq := newTestBuildService(store, nil, c)

		err := svc.DeleteBuild(context.Background(), "u1", "b1")
		if !errors.Is(err, models.ErrActiveBuild) {
			t.Fatalf("err = %v, want ErrActiveBuild", err)
		}
		if len(c.invalidated) != 0 || len(enq.actions()) != 0 {
			t.Error("failed delete must not invalidate or audit")
		}
	})
}

func TestBuildService_AuditCarriesRequestID(t *testing.T) {
	store := &mockBuildStore{
		updateBuild: func(_ context.Context, _, id string, _ models.UpdateBuildRequest) (*models.Build, error) {
			return configBuild(id, "p1", 1), nil
		},
	}
	svc, enq := newTestBuildService(store, nil, newMemCache())

	ctx := domain.WithRequestID(context.Background(), "req-1")
	if _, err := svc.UpdateBuild(ctx, "u1", "b1", models.UpdateBuildRequest{}); err != nil {
		t.Fatalf("UpdateBuild: %v", err)
	}
	if _, err := svc.UpdateBuild(context.Background(), "u1", "b1", models.UpdateBuildRequest{}); err != nil {
		t.Fatalf("UpdateBuild: %v", err)
	}

	enq.mu.Lock()
	defer enq.mu.Unlock()
	if len(enq.jobs) != 2 {
		t.Fatalf("expected 2 audit jobs, got %d", len(enq.jobs))
	}
	if got := enq.jobs[0].Detail["request_id"]; got != "req-1" {
		t.Errorf("request_id = %v, want req-1", got)
	}
	if enq.jobs[1].Detail != nil {
		t.Errorf("expected no detail without a request ID, got %v", enq.jobs[1].Detail)
	}
}

func TestBuildService_SetMode(t *testing.T) {
	var gotMode models.Mode
	var gotFeature models.FeatureType

	modes := &mockModeStore{
		setMode: func(_ context.Context, _, id string, mode models.Mode, ft models.FeatureType) (*models.Build, error) {
			gotMode, gotFeature = mode, ft
			b := configBuild(id, "p1", 1)
			b.Modes = []models.ModeAssignment{{ProjectID: "p1", FeatureType: models.FeatureBusinessConfig, Mode: mode, BuildID: id}}
			return b, nil
		},
	}
	c := newMemCache()
	svc, enq := newTestBuildService(&mockBuildStore{}, modes, c)

	b, err := svc.SetMode(context.Background(), "u1", "b1", models.SetModeRequest{Mode: "production", FeatureType: "business_config"})
	if err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if !b.ActiveIn(models.ModeProduction) {
		t.Error("returned build not active in production")
	}
	if gotMode != models.ModeProduction || gotFeature != models.FeatureBusinessConfig {
		t.Errorf("store got mode=%q feature=%q", gotMode, gotFeature)
	}
	if len(c.invalidated) != 1 {
		t.Errorf("invalidated = %v, want one entry", c.invalidated)
	}
	if a := enq.actions(); len(a) != 1 || a[0] != "build.mode.set" {
		t.Errorf("audit actions = %v", a)
	}
}

func TestBuildService_SetMode_InvalidMode(t *testing.T) {
	modes := &mockModeStore{
		setMode: func(context.Context, string, string, models.Mode, models.FeatureType) (*models.Build, error) {
			t.Fatal("store must not be called for an invalid mode")
			return nil, nil
		},
	}
	svc, _ := newTestBuildService(&mockBuildStore{}, modes, newMemCache())

	_, err := svc.SetMode(context.Background(), "u1", "b1", models.SetModeRequest{Mode: "staging"})
	if !errors.Is(err, models.ErrInvalidMode) {
		t.Fatalf("err = %v, want ErrInvalidMode", err)
	}
}

func TestBuildService_ClearMode(t *testing.T) {
	modes := &mockModeStore{
		clearMode: func(_ context.Context, _, id string, _ models.Mode) (*models.Build, error) {
			return configBuild(id, "p9", 1), nil
		},
	}
	c := newMemCache()
	svc, enq := newTestBuildService(&mockBuildStore{}, modes, c)

	if _, err := svc.ClearMode(context.Background(), "u1", "b1", models.ModePreview); err != nil {
		t.Fatalf("ClearMode: %v", err)
	}
	if len(c.invalidated) != 1 || c.invalidated[0] != "p9" {
		t.Errorf("invalidated = %v", c.invalidated)
	}
	if a := enq.actions(); len(a) != 1 || a[0] != "build.mode.clear" {
		t.Errorf("audit actions = %v", a)
	}
}

func TestBuildService_DiffBuilds(t *testing.T) {
	oldBuild := configBuild("b1", "p1", 1, item("a", "1"), item("b", `"x"`))
	newBuild := configBuild("b2", "p1", 2, item("a", "2"), item("b", `"x"`), item("c", "true"))

	store := &mockBuildStore{getBuild: byID(oldBuild, newBuild)}
	svc, _ := newTestBuildService(store, nil, newMemCache())

	d, err := svc.DiffBuilds(context.Background(), "u1", "b1", "b2")
	if err != nil {
		t.Fatalf("DiffBuilds: %v", err)
	}

	changes := d[models.FeatureBusinessConfig]
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2: %+v", len(changes), changes)
	}
	if changes[0].ItemKey != "a" || changes[0].ChangeType != models.ChangeChanged {
		t.Errorf("changes[0] = %+v", changes[0])
	}
	if changes[1].ItemKey != "c" || changes[1].ChangeType != models.ChangeAdded {
		t.Errorf("changes[1] = %+v", changes[1])
	}

	if calls := store.getCalls(); len(calls) != 2 {
		t.Errorf("expected two concurrent loads, got %v", calls)
	}
}

func TestBuildService_DiffBuilds_Errors(t *testing.T) {
	a := configBuild("b1", "p1", 1)
	other := configBuild("b3", "p2", 1)

	tests := []struct {
		name    string
		oldID   string
		newID   string
		wantErr error
	}{
		{name: "project mismatch", oldID: "b1", newID: "b3", wantErr: models.ErrProjectMismatch},
		{name: "missing old", oldID: "nope", newID: "b1", wantErr: models.ErrBuildNotFound},
		{name: "missing new", oldID: "b1", newID: "nope", wantErr: models.ErrBuildNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockBuildStore{getBuild: byID(a, other)}
			svc, _ := newTestBuildService(store, nil, newMemCache())

			_, err := svc.DiffBuilds(context.Background(), "u1", tc.oldID, tc.newID)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestBuildService_PatchBuilds(t *testing.T) {
	oldBuild := configBuild("b1", "p1", 1, item("a", "1"))
	newBuild := configBuild("b2", "p1", 2, item("a", "2"))

	svc, _ := newTestBuildService(&mockBuildStore{getBuild: byID(oldBuild, newBuild)}, nil, newMemCache())

	patch, err := svc.PatchBuilds(context.Background(), "u1", "b1", "b2", 0)
	if err != nil {
		t.Fatalf("PatchBuilds: %v", err)
	}

	for _, want := range []string{"--- v1/business_config", "+++ v2/business_config", "-  1", "+  2"} {
		if !strings.Contains(patch, want) {
			t.Errorf("patch missing %q:\n%s", want, patch)
		}
	}

	same, err := svc.PatchBuilds(context.Background(), "u1", "b1", "b1", 0)
	if err != nil {
		t.Fatalf("PatchBuilds self: %v", err)
	}
	if same != "" {
		t.Errorf("self patch = %q, want empty", same)
	}
}

func TestBuildService_ChangeLogs(t *testing.T) {
	changes := &mockChangeLogStore{logs: []models.BuildChangeLog{{ID: 1, BuildID: "b1"}}}
	svc := NewBuildService(&mockBuildStore{}, &mockModeStore{}, changes, nil, nil, testLogger())

	logs, err := svc.ChangeLogs(context.Background(), "u1", "b1")
	if err != nil || len(logs) != 1 {
		t.Fatalf("ChangeLogs = %v, %v", logs, err)
	}
}
