// Package main is the entry point of the MajorPath progress API.
//
// The server wires the configured record store (PostgreSQL, SQLite or
// MongoDB, optionally fronted by Redis) to the progress engine and serves
// it over HTTP until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/application/command"
	"github.com/majorpath/majorpath-hub/internal/application/eventhandler"
	"github.com/majorpath/majorpath-hub/internal/application/query"
	"github.com/majorpath/majorpath-hub/internal/infrastructure/catalog"
	"github.com/majorpath/majorpath-hub/internal/infrastructure/messaging"
	"github.com/majorpath/majorpath-hub/internal/infrastructure/persistence"
	httpserver "github.com/majorpath/majorpath-hub/internal/interface/http"
	"github.com/majorpath/majorpath-hub/internal/interface/http/handlers"
	"github.com/majorpath/majorpath-hub/pkg/logger"
	"github.com/majorpath/majorpath-hub/pkg/timeutil"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	defer func() { _ = log.Sync() }()
	log.Info("starting MajorPath progress API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
		logger.Backend(string(cfg.Store.Backend)),
	)

	cat, err := catalog.Load(cfg.Progress.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORE
	// ─────────────────────────────────────────────────────────────────────────
	backend, err := persistence.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing store connections...")
		if err := backend.Close(context.Background()); err != nil {
			log.Warn("failed to close store", logger.Err(err))
		}
	}()

	if cfg.Store.AutoMigrate {
		applied, err := backend.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", logger.Count("applied", applied))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	busConfig.AsyncMode = true
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	milestones := eventhandler.NewOnMilestoneHandler(log, eventhandler.DefaultMilestoneConfig())
	if err := milestones.Register(bus); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	clock := &timeutil.SystemClock{Location: cfg.App.Location}
	deps := command.Deps{
		Store:     backend.Store,
		Catalog:   cat,
		Clock:     clock,
		Publisher: bus,
		Features:  cfg.Features,
		Logger:    log,
	}

	getProgress := query.NewGetProgressHandler(backend.Store, query.GetProgressHandlerConfig{
		Catalog:          cat,
		Clock:            clock,
		Features:         cfg.Features,
		RecentActivities: cfg.Progress.RecentActivities,
		Logger:           log,
	})

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("store", backend.Ping)
	if backend.Cache != nil {
		health.AddOptionalCheck("cache", handlers.NewPingCheck(backend.Cache))
	}

	metrics := map[string]func() any{
		"event_bus":  func() any { return bus.Metrics().Snapshot() },
		"milestones": func() any { return milestones.Counts() },
	}
	if backend.Breaker != nil {
		metrics["cache_breaker"] = func() any {
			return map[string]any{"state": backend.Breaker.State().String(), "counts": backend.Breaker.Counts()}
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimit
	httpConfig.JWTSecret = cfg.HTTP.JWTSecret
	httpConfig.AdminKeyHashes = cfg.HTTP.AdminKeyHashes
	httpConfig.Version = cfg.App.Version

	if httpConfig.JWTSecret == "" {
		log.Warn("JWT_SECRET is empty, user endpoints are unauthenticated")
	}

	server := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		RecordActivity:       command.NewRecordActivityHandler(deps),
		ManageGoal:           command.NewManageGoalHandler(deps),
		CompleteChallenge:    command.NewCompleteChallengeHandler(deps),
		EvaluateAchievements: command.NewEvaluateAchievementsHandler(deps),
		GetProgress:          getProgress,
		HealthChecker:        health,
		Metrics:              metrics,
		Logger:               log,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}
	log.Info("MajorPath progress API stopped")
	return nil
}

func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = cfg.Observability.LogFormat
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts).With(logger.String("service", cfg.App.Name))
}
