// Package main is the entry point for the learning analytics API server.
//
// The service records learning interactions and platform usage events for
// the tutoring platform, maintains per-topic mastery and per-student
// progress aggregates, and serves the teacher and admin analytics surfaces.
//
// The layout follows Clean Architecture and DDD:
// - Domain: business rules without external dependencies
// - Application: use case orchestration (Commands/Queries)
// - Infrastructure: persistence, messaging, external providers
// - Interface: HTTP handlers
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brightpath-edu/learning-analytics/config"
	"github.com/brightpath-edu/learning-analytics/internal/application/command"
	"github.com/brightpath-edu/learning-analytics/internal/application/eventhandler"
	"github.com/brightpath-edu/learning-analytics/internal/application/query"
	"github.com/brightpath-edu/learning-analytics/internal/domain/progress"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
	"github.com/brightpath-edu/learning-analytics/internal/domain/usage"
	"github.com/brightpath-edu/learning-analytics/internal/infrastructure/external/brightid"
	"github.com/brightpath-edu/learning-analytics/internal/infrastructure/messaging"
	"github.com/brightpath-edu/learning-analytics/internal/infrastructure/persistence/postgres"
	"github.com/brightpath-edu/learning-analytics/internal/infrastructure/persistence/redis"
	httpserver "github.com/brightpath-edu/learning-analytics/internal/interface/http"
	"github.com/brightpath-edu/learning-analytics/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// Configuration & Logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})
	log.Info("starting learning analytics server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{}))

	// ─────────────────────────────────────────────────────────────────────────
	// PostgreSQL
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	if cfg.Database.MigrateOnStart {
		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database migrations applied")
	}

	interactionRepo := postgres.NewInteractionRepository(conn.Pool())
	masteryRepo := postgres.NewMasteryRepository(conn.Pool())
	usageRepo := postgres.NewUsageRepository(conn.Pool())
	txManager := postgres.NewTxManager(conn)

	var progressRepo progress.Repository = postgres.NewProgressRepository(conn.Pool())

	// ─────────────────────────────────────────────────────────────────────────
	// Redis (usage window, progress cache, pub/sub)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		tracker     usage.WindowTracker
		eventBus    shared.EventBus
		invalidator eventhandler.ProgressInvalidator
	)

	if !cfg.Redis.Disabled {
		cache, err := redis.NewCache(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer cache.Close()

		tracker = redis.NewUsageWindow(cache)

		progressCache := redis.NewProgressCache(progressRepo, cache)
		progressRepo = progressCache
		invalidator = progressCache

		hostname, _ := os.Hostname()
		bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:     redis.NewPubSubClient(cache),
			InstanceID: hostname,
			Logger:     slogger,
		})
		if err != nil {
			return fmt.Errorf("create event bus: %w", err)
		}
		defer bus.Close()
		eventBus = bus

		log.Info("redis connected", logger.String("addr", cache.Client().Options().Addr))
	} else {
		bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: slogger})
		defer bus.Close()
		eventBus = bus

		// Detection scans the event log in SQL instead of the Redis window.
		tracker = postgres.NewEventLogWindow(usageRepo)

		log.Warn("redis disabled, progress cache is off and anomaly detection falls back to sql")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Domain Event Handlers
	// ─────────────────────────────────────────────────────────────────────────
	masteryChanged := eventhandler.NewOnMasteryLevelChangedHandler(invalidator, slogger)
	if err := eventBus.Subscribe(masteryChanged.EventType(), masteryChanged.Handle); err != nil {
		return fmt.Errorf("subscribe mastery handler: %w", err)
	}

	anomalyAlert := eventhandler.NewOnUsageAnomalyHandler(slogger)
	if err := eventBus.Subscribe(anomalyAlert.EventType(), anomalyAlert.Handle); err != nil {
		return fmt.Errorf("subscribe anomaly handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Identity Provider
	// ─────────────────────────────────────────────────────────────────────────
	identityClient := brightid.NewClient(brightid.ClientConfig{
		BaseURL:    cfg.Identity.BaseURL,
		ServiceKey: cfg.Identity.ServiceKey,
		Timeout:    cfg.Identity.RequestTimeout,
		CacheTTL:   cfg.Identity.CacheTTL,
		Logger:     log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Application Layer
	// ─────────────────────────────────────────────────────────────────────────
	deps := httpserver.Dependencies{
		RecordInteractionHandler: command.NewRecordInteractionHandler(txManager, eventBus),
		RecordUsageEventHandler:  command.NewRecordUsageEventHandler(txManager, tracker, eventBus),
		GetInteractionsHandler:   query.NewGetInteractionsHandler(interactionRepo),
		GetMasteryHandler:        query.NewGetMasteryHandler(masteryRepo),
		GetWeakTopicsHandler: query.NewGetWeakTopicsHandler(masteryRepo, query.WeakTopicsConfig{
			AccuracyBelow:   cfg.Analytics.WeakAccuracyBelow,
			MinInteractions: cfg.Analytics.WeakMinVolume,
		}),
		GetProgressHandler:      query.NewGetProgressHandler(progressRepo),
		GetClassProgressHandler: query.NewGetClassProgressHandler(progressRepo),
		GetStudentsBehindHandler: query.NewGetStudentsBehindHandler(progressRepo, query.StudentsBehindConfig{
			AccuracyBelow:    cfg.Analytics.BehindAccuracyBelow,
			InactivityWindow: cfg.Analytics.BehindInactiveAfter,
		}),
		GetUsageStatsHandler: query.NewGetUsageStatsHandler(usageRepo),
		Resolver:             identityClient,
		Logger:               log,
		HealthChecker:        &healthChecker{conn: conn},
	}
	deps.CheckAnomaliesHandler = query.NewCheckAnomaliesHandler(tracker, query.AnomalyConfig{
		Window:    cfg.Analytics.AnomalyWindow,
		Threshold: cfg.Analytics.AnomalyThreshold,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP Server
	// ─────────────────────────────────────────────────────────────────────────
	serverConfig := httpserver.DefaultConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.EnableCORS = cfg.HTTP.EnableCORS
	serverConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	server := httpserver.NewServer(serverConfig, deps)
	errCh := server.StartAsync()

	log.Info("server listening", logger.String("address", server.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// Graceful Shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// healthChecker reports readiness from the database connection.
type healthChecker struct {
	conn *postgres.Connection
}

func (h *healthChecker) Check(ctx context.Context) httpserver.HealthStatus {
	status := httpserver.HealthStatus{
		Healthy:    true,
		Ready:      true,
		Components: map[string]string{},
	}

	if err := h.conn.Ping(ctx); err != nil {
		status.Healthy = false
		status.Ready = false
		status.Message = "database unreachable"
		status.Components["postgres"] = "down"
		return status
	}
	status.Components["postgres"] = "up"

	return status
}
