package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nivostack/buildhub/internal/api"
	"github.com/nivostack/buildhub/internal/db"
)

func TestLiveness_ReturnsOK(t *testing.T) {
	t.Parallel()

	h := api.NewHealthHandler(nil, nil, nil, testLogger(), "test-v1")

	r := gin.New()
	r.GET("/health", h.Liveness)

	w := doRequest(r, http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", body["status"])
	}

	if body["version"] != "test-v1" {
		t.Errorf("expected version 'test-v1', got %v", body["version"])
	}

	if body["database"] != "not_configured" {
		t.Errorf("expected database 'not_configured', got %v", body["database"])
	}

	if got, want := body["schema_version"], float64(db.SchemaVersion()); got != want {
		t.Errorf("schema_version = %v, want %v", got, want)
	}
}

func TestReadiness_NoDatabase(t *testing.T) {
	t.Parallel()

	cache := api.PingFunc(func(context.Context) error { return errors.New("redis down") })
	h := api.NewHealthHandler(nil, nil, cache, testLogger(), "test-v1")

	r := gin.New()
	r.GET("/ready", h.Readiness)

	w := doRequest(r, http.MethodGet, "/ready", "")

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if body.Status != "not_ready" {
		t.Errorf("status = %q", body.Status)
	}
	if body.Checks["cache"] != "degraded" {
		t.Errorf("cache check = %q, want degraded", body.Checks["cache"])
	}
}
