// Package main is the entrypoint for the Beacon API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beaconhq/beacon/internal/analytics"
	"github.com/beaconhq/beacon/internal/api"
	"github.com/beaconhq/beacon/internal/api/handler"
	mw "github.com/beaconhq/beacon/internal/api/middleware"
	"github.com/beaconhq/beacon/internal/api/response"
	"github.com/beaconhq/beacon/internal/cache"
	"github.com/beaconhq/beacon/internal/config"
	"github.com/beaconhq/beacon/internal/ingest"
	"github.com/beaconhq/beacon/internal/keys"
	"github.com/beaconhq/beacon/internal/ratelimit"
	"github.com/beaconhq/beacon/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env,
		"ingest_rps", cfg.RateLimit.IngestPerSecond, "read_rps", cfg.RateLimit.ReadPerSecond)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis counter/cache store
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Build services
	pgStore := store.NewPostgresStore(pool)
	keySvc := keys.NewService(pgStore)
	ingestSvc := ingest.NewService(pgStore)
	analyticsSvc := analytics.NewService(pgStore, redisCache,
		cfg.Cache.EventSummaryTTL, cfg.Cache.UserStatsTTL)
	limiter := ratelimit.NewLimiter(redisCache)

	// 6. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(keySvc, cfg.Auth.DevUserEmail),
		RateLimit: mw.NewRateLimit(limiter),

		IngestLimit: cfg.RateLimit.IngestPerSecond,
		ReadLimit:   cfg.RateLimit.ReadPerSecond,

		HealthHandler: healthHandler(pgStore, redisCache),

		RegisterAppHandler:   handler.NewRegisterAppHandler(keySvc),
		ListKeysHandler:      handler.NewListKeysHandler(keySvc),
		RevokeKeyHandler:     handler.NewRevokeKeyHandler(keySvc),
		RegenerateKeyHandler: handler.NewRegenerateKeyHandler(keySvc),

		CollectEventHandler: handler.NewCollectEventHandler(ingestSvc),
		EventSummaryHandler: handler.NewEventSummaryHandler(analyticsSvc),
		UserStatsHandler:    handler.NewUserStatsHandler(analyticsSvc),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
