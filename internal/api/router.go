package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nivostack/buildhub/internal/dbpool"
	"github.com/nivostack/buildhub/internal/middleware"
	"github.com/nivostack/buildhub/internal/ws"
)

// TokenAuthenticator verifies user bearer tokens for HTTP and WebSocket clients.
type TokenAuthenticator interface {
	middleware.UserLookup
	ws.TokenValidator
}

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log         *logrus.Logger
	Pool        *dbpool.Pool
	Hub         *ws.Hub
	Cache       Pinger
	Builds      BuildRepository
	Modes       ModeRepository
	Diffs       DiffRepository
	SDK         SDKRepository
	Audit       AuditRepository
	Tokens      TokenAuthenticator
	Projects    middleware.ProjectLookup
	CORSOrigins []string
	Version     string
}

// Router-level limits. Rates are requests per second; bursts are bucket sizes.
const (
	maxBodySize = 64 << 10

	clientRate  = 100 // per IP, every route
	clientBurst = 200

	sdkRate  = 50 // per project, SDK delivery
	sdkBurst = 100

	userRate  = 20 // per user, build API
	userBurst = 40

	snapshotRate  = 0.5 // per user, build creation reads every live item of a feature
	snapshotBurst = 5
)

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.JSONBody(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", middleware.APIKeyHeader},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, middleware.ScopeClient, clientRate, clientBurst).Handler())
	r.Use(middleware.PrometheusMiddleware())
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Pool, deps.Hub, deps.Cache, log, deps.Version)
	builds := NewBuildHandler(deps.Builds, deps.Modes, deps.Diffs, log)
	sdk := NewSDKHandler(deps.SDK, log)
	audit := NewAuditHandler(deps.Audit, log)

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	bfGuard := middleware.NewBruteForceGuard(ctx, log)
	api.Use(middleware.BruteForceMiddleware(bfGuard))

	// SDK delivery authenticates by project API key.
	sdkGroup := api.Group("/sdk",
		middleware.ProjectKeyMiddleware(middleware.NewCachedProjectLookup(ctx, deps.Projects), log, bfGuard),
		middleware.NewRateLimiter(ctx, middleware.ScopeProject, sdkRate, sdkBurst).Handler(),
		middleware.SDKCacheHeaders(),
	)
	sdkGroup.GET("/builds/:mode", sdk.Active)

	// All other API routes require a user bearer token.
	api.Use(middleware.AuthMiddleware(deps.Tokens, log, bfGuard))
	api.Use(middleware.NewRateLimiter(ctx, middleware.ScopeUser, userRate, userBurst).Handler())

	// Builds.
	api.POST("/builds", middleware.NewRateLimiter(ctx, middleware.ScopeUser, snapshotRate, snapshotBurst).Handler(), builds.Create)
	api.GET("/builds", builds.List)
	api.GET("/builds/:id", builds.Get)
	api.PATCH("/builds/:id", builds.Update)
	api.DELETE("/builds/:id", builds.Delete)
	api.GET("/builds/:id/changes", builds.Changes)

	// Modes.
	api.PATCH("/builds/:id/mode", builds.SetMode)
	api.DELETE("/builds/:id/mode/:mode", builds.ClearMode)

	// Diffs.
	api.GET("/builds/diff/:oldId/:newId", builds.Diff)
	api.GET("/builds/diff/:oldId/:newId/patch", builds.Patch)

	// Audit.
	api.GET("/audit", audit.Query)

	// WebSocket endpoint.
	api.GET("/ws", wsHandler(ctx, log, deps.Hub, deps.CORSOrigins, deps.Tokens))
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
