package api_test

import (
	"context"

	"github.com/nivostack/buildhub/internal/models"
)

// mockBuildRepo implements the build, mode and diff repositories for testing.
type mockBuildRepo struct {
	createFn    func(ctx context.Context, userID string, req models.CreateBuildRequest) (*models.Build, error)
	getFn       func(ctx context.Context, userID, buildID string) (*models.Build, error)
	listFn      func(ctx context.Context, userID, projectID string, ft models.FeatureType) ([]models.Build, error)
	updateFn    func(ctx context.Context, userID, buildID string, req models.UpdateBuildRequest) (*models.Build, error)
	deleteFn    func(ctx context.Context, userID, buildID string) error
	setModeFn   func(ctx context.Context, userID, buildID string, req models.SetModeRequest) (*models.Build, error)
	clearModeFn func(ctx context.Context, userID, buildID string, mode models.Mode) (*models.Build, error)
	diffFn      func(ctx context.Context, userID, oldID, newID string) (models.BuildDiff, error)
	patchFn     func(ctx context.Context, userID, oldID, newID string, contextLines int) (string, error)
	changesFn   func(ctx context.Context, userID, buildID string) ([]models.BuildChangeLog, error)
}

func (m *mockBuildRepo) CreateBuild(ctx context.Context, userID string, req models.CreateBuildRequest) (*models.Build, error) {
	return m.createFn(ctx, userID, req)
}

func (m *mockBuildRepo) GetBuild(ctx context.Context, userID, buildID string) (*models.Build, error) {
	return m.getFn(ctx, userID, buildID)
}

func (m *mockBuildRepo) ListBuilds(ctx context.Context, userID, projectID string, ft models.FeatureType) ([]models.Build, error) {
	return m.listFn(ctx, userID, projectID, ft)
}

func (m *mockBuildRepo) UpdateBuild(ctx context.Context, userID, buildID string, req models.UpdateBuildRequest) (*models.Build, error) {
	return m.updateFn(ctx, userID, buildID, req)
}

func (m *mockBuildRepo) DeleteBuild(ctx context.Context, userID, buildID string) error {
	return m.deleteFn(ctx, userID, buildID)
}

func (m *mockBuildRepo) SetMode(ctx context.Context, userID, buildID string, req models.SetModeRequest) (*models.Build, error) {
	return m.setModeFn(ctx, userID, buildID, req)
}

func (m *mockBuildRepo) ClearMode(ctx context.Context, userID, buildID string, mode models.Mode) (*models.Build, error) {
	return m.clearModeFn(ctx, userID, buildID, mode)
}

func (m *mockBuildRepo) DiffBuilds(ctx context.Context, userID, oldID, newID string) (models.BuildDiff, error) {
	return m.diffFn(ctx, userID, oldID, newID)
}

func (m *mockBuildRepo) PatchBuilds(ctx context.Context, userID, oldID, newID string, contextLines int) (string, error) {
	return m.patchFn(ctx, userID, oldID, newID, contextLines)
}

func (m *mockBuildRepo) ChangeLogs(ctx context.Context, userID, buildID string) ([]models.BuildChangeLog, error) {
	if m.changesFn == nil {
		return nil, nil
	}
	return m.changesFn(ctx, userID, buildID)
}

// mockSDKRepo implements api.SDKRepository for testing.
type mockSDKRepo struct {
	activeFn func(ctx context.Context, projectID string, mode models.Mode) (*models.ActiveBuildPayload, error)
}

func (m *mockSDKRepo) ActivePayload(ctx context.Context, projectID string, mode models.Mode) (*models.ActiveBuildPayload, error) {
	return m.activeFn(ctx, projectID, mode)
}

// mockAuditRepo implements api.AuditRepository for testing.
type mockAuditRepo struct {
	queryFn func(ctx context.Context, userID string, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error)
}

func (m *mockAuditRepo) QueryAudit(ctx context.Context, userID string, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error) {
	return m.queryFn(ctx, userID, opts)
}
