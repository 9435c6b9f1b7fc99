package service

import (
	"context"
	"errors"
	"sync"

	"github.com/nivostack/buildhub/internal/cache"
	"github.com/nivostack/buildhub/internal/models"
)

var errNotConfigured = errors.New("mock: not configured")

// mockBuildStore records calls and returns configured responses.
type mockBuildStore struct {
	mu    sync.Mutex
	calls []string

	createBuild func(ctx context.Context, userID string, req models.CreateBuildRequest) (*models.Build, error)
	getBuild    func(ctx context.Context, userID, buildID string) (*models.Build, error)
	listBuilds  func(ctx context.Context, userID, projectID string, ft models.FeatureType) ([]models.Build, error)
	updateBuild func(ctx context.Context, userID, buildID string, req models.UpdateBuildRequest) (*models.Build, error)
	deleteBuild func(ctx context.Context, userID, buildID string) (*models.Build, error)
}

func (m *mockBuildStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockBuildStore) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockBuildStore) CreateBuild(ctx context.Context, userID string, req models.CreateBuildRequest) (*models.Build, error) {
	m.record("CreateBuild")
	if m.createBuild == nil {
		return nil, errNotConfigured
	}
	return m.createBuild(ctx, userID, req)
}

func (m *mockBuildStore) GetBuild(ctx context.Context, userID, buildID string) (*models.Build, error) {
	m.record("GetBuild")
	if m.getBuild == nil {
		return nil, errNotConfigured
	}
	return m.getBuild(ctx, userID, buildID)
}

func (m *mockBuildStore) ListBuilds(ctx context.Context, userID, projectID string, ft models.FeatureType) ([]models.Build, error) {
	m.record("ListBuilds")
	if m.listBuilds == nil {
		return nil, errNotConfigured
	}
	return m.listBuilds(ctx, userID, projectID, ft)
}

func (m *mockBuildStore) UpdateBuild(ctx context.Context, userID, buildID string, req models.UpdateBuildRequest) (*models.Build, error) {
	m.record("UpdateBuild")
	if m.updateBuild == nil {
		return nil, errNotConfigured
	}
	return m.updateBuild(ctx, userID, buildID, req)
}

func (m *mockBuildStore) DeleteBuild(ctx context.Context, userID, buildID string) (*models.Build, error) {
	m.record("DeleteBuild")
	if m.deleteBuild == nil {
		return nil, errNotConfigured
	}
	return m.deleteBuild(ctx, userID, buildID)
}

// mockModeStore returns configured responses for mode operations.
type mockModeStore struct {
	setMode      func(ctx context.Context, userID, buildID string, mode models.Mode, ft models.FeatureType) (*models.Build, error)
	clearMode    func(ctx context.Context, userID, buildID string, mode models.Mode) (*models.Build, error)
	activeBuilds func(ctx context.Context, projectID string, mode models.Mode) ([]models.Build, error)

	mu          sync.Mutex
	activeCalls int
}

func (m *mockModeStore) SetMode(ctx context.Context, userID, buildID string, mode models.Mode, ft models.FeatureType) (*models.Build, error) {
	return m.setMode(ctx, userID, buildID, mode, ft)
}

func (m *mockModeStore) ClearMode(ctx context.Context, userID, buildID string, mode models.Mode) (*models.Build, error) {
	return m.clearMode(ctx, userID, buildID, mode)
}

func (m *mockModeStore) ActiveBuilds(ctx context.Context, projectID string, mode models.Mode) ([]models.Build, error) {
	m.mu.Lock()
	m.activeCalls++
	m.mu.Unlock()
	return m.activeBuilds(ctx, projectID, mode)
}

// mockChangeLogStore returns a fixed change log.
type mockChangeLogStore struct {
	logs []models.BuildChangeLog
	err  error
}

func (m *mockChangeLogStore) ChangeLogs(_ context.Context, _, _ string) ([]models.BuildChangeLog, error) {
	return m.logs, m.err
}

// mockAuditor records audit calls.
type mockAuditor struct {
	mu    sync.Mutex
	calls []AuditJob

	err error
}

func (m *mockAuditor) RecordAudit(_ context.Context, userID, projectID, action, entityType, entityID string, detail map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, AuditJob{
		UserID:     userID,
		ProjectID:  projectID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
	})
	return m.err
}

func (m *mockAuditor) getCalls() []AuditJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]AuditJob, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// recordingEnqueuer captures audit jobs synchronously.
type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []AuditJob
}

func (r *recordingEnqueuer) Enqueue(job *AuditJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, *job)
}

func (r *recordingEnqueuer) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.Action)
	}
	return out
}

// quotaFunc adapts a function to QuotaChecker.
type quotaFunc func(ctx context.Context, userID, projectID string) error

func (f quotaFunc) CheckBuildQuota(ctx context.Context, userID, projectID string) error {
	return f(ctx, userID, projectID)
}

// memCache is an in-memory PayloadCache with per-project generations.
type memCache struct {
	mu          sync.Mutex
	entries     map[string]*models.ActiveBuildPayload
	gens        map[string]cache.Generation
	invalidated []string
	getErr      error
}

func newMemCache() *memCache {
	return &memCache{
		entries: make(map[string]*models.ActiveBuildPayload),
		gens:    make(map[string]cache.Generation),
	}
}

func (c *memCache) Get(_ context.Context, projectID string, mode models.Mode) (*models.ActiveBuildPayload, cache.Generation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, 0, false, c.getErr
	}
	gen := c.gens[projectID]
	p, ok := c.entries[cache.Key(projectID, gen, mode)]
	return p, gen, ok, nil
}

func (c *memCache) Set(_ context.Context, p *models.ActiveBuildPayload, gen cache.Generation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cache.Key(p.ProjectID, gen, p.Mode)] = p
	return nil
}

func (c *memCache) Invalidate(_ context.Context, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, projectID)
	c.gens[projectID]++
	return nil
}
