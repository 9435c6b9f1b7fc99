package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nivostack/buildhub/internal/api"
	"github.com/nivostack/buildhub/internal/cache"
	"github.com/nivostack/buildhub/internal/config"
	"github.com/nivostack/buildhub/internal/db"
	"github.com/nivostack/buildhub/internal/db/migrations"
	"github.com/nivostack/buildhub/internal/dbpool"
	"github.com/nivostack/buildhub/internal/middleware"
	"github.com/nivostack/buildhub/internal/service"
	"github.com/nivostack/buildhub/internal/snapshot"
	"github.com/nivostack/buildhub/internal/store"
	"github.com/nivostack/buildhub/internal/ws"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
	purgeInterval     = 24 * time.Hour
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}

// openDatabase connects and brings the schema up to date.
func openDatabase(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*dbpool.Pool, error) {
	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return pool, nil
}

// openCache returns the SDK payload cache and, when Redis is configured, a
// pinger for readiness checks.
func openCache(ctx context.Context, cfg *config.Config, log *logrus.Logger) (cache.PayloadCache, api.Pinger, func(), error) {
	if !cfg.CacheEnabled() {
		log.Info("REDIS_ADDR not set, SDK payload cache disabled")
		return cache.NopCache{}, nil, func() {}, nil
	}

	rdb, err := cache.Dial(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, nil, err
	}

	pinger := api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			log.WithError(err).Warn("closing redis client")
		}
	}

	return cache.NewRedisCache(rdb, cfg.SDKCacheTTL, log), pinger, closeFn, nil
}

func runServe(parent context.Context) error { //nolint:funlen // linear startup sequence.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	payloads, cachePinger, closeCache, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	base := store.Base{Pool: pool, Log: log}
	accounts := store.NewAccountStore(base)
	buildStore := store.NewBuildStore(base, snapshot.New(log))
	modeStore := store.NewModeStore(base)
	changeStore := store.NewChangeLogStore(base)

	auditSvc := service.NewAuditService(store.NewAuditStore(base), log)
	auditWorker := service.NewAuditWorker(auditSvc, log, cfg.AuditQueueSize)
	workerDone := make(chan struct{})
	go func() {
		auditWorker.Run(ctx)
		close(workerDone)
	}()

	builds := service.NewBuildService(buildStore, modeStore, changeStore, payloads, auditWorker, log)
	sdk := service.NewSDKService(modeStore, payloads, log)

	hub := ws.NewHub(log)
	go hub.Run(ctx)

	if err := db.NewNotifyBridge(log, pool, hub).Start(ctx); err != nil {
		return fmt.Errorf("starting notify bridge: %w", err)
	}

	go purgeAuditLoop(ctx, auditSvc, cfg.AuditRetentionDays, log)

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:         log,
		Pool:        pool,
		Hub:         hub,
		Cache:       cachePinger,
		Builds:      builds,
		Modes:       builds,
		Diffs:       builds,
		SDK:         sdk,
		Audit:       auditSvc,
		Tokens:      middleware.NewTokenVerifier([]byte(cfg.JWTSecret.Value()), accounts),
		Projects:    accounts,
		CORSOrigins: cfg.CORSOrigins,
		Version:     config.Version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr(),
		Handler:           metricsMux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 2)
	go serve(srv, errCh)
	go serve(metricsSrv, errCh)

	log.WithFields(logrus.Fields{
		"addr":          cfg.Addr(),
		"metrics_addr":  cfg.MetricsAddr(),
		"version":       config.Version,
		"cache_enabled": cfg.CacheEnabled(),
	}).Info("buildhub listening")

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.WithError(err).Error("server failed")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("metrics server shutdown")
	}

	hub.Shutdown()

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("audit worker did not drain before shutdown deadline")
	}

	log.Info("buildhub stopped")

	return nil
}

func serve(srv *http.Server, errCh chan<- error) {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("listening on %s: %w", srv.Addr, err)
	}
}

type auditPurger interface {
	PurgeOldEntries(ctx context.Context, retentionDays int) (int, error)
}

// purgeAuditLoop deletes expired activity log entries once at startup and then daily.
// A retention of zero keeps entries forever.
func purgeAuditLoop(ctx context.Context, purger auditPurger, retentionDays int, log *logrus.Logger) {
	if retentionDays <= 0 {
		return
	}

	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		n, err := purger.PurgeOldEntries(ctx, retentionDays)
		switch {
		case err != nil && ctx.Err() == nil:
			log.WithError(err).Warn("purging audit log")
		case n > 0:
			log.WithFields(logrus.Fields{"deleted": n, "retention_days": retentionDays}).Info("audit log purged")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
