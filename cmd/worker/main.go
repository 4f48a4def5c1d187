// Package main is the entry point for the background worker.
//
// The worker runs the scheduled jobs: the usage anomaly sweep over the
// trailing detection window, pruning of expired window entries, and the
// daily inactivity digest for teachers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brightpath-edu/learning-analytics/config"
	"github.com/brightpath-edu/learning-analytics/internal/application/eventhandler"
	"github.com/brightpath-edu/learning-analytics/internal/infrastructure/messaging"
	"github.com/brightpath-edu/learning-analytics/internal/infrastructure/persistence/postgres"
	"github.com/brightpath-edu/learning-analytics/internal/infrastructure/persistence/redis"
	"github.com/brightpath-edu/learning-analytics/internal/infrastructure/scheduler"
	"github.com/brightpath-edu/learning-analytics/internal/infrastructure/scheduler/jobs"
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

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{}))
	log.Info("starting learning analytics worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)

	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled, nothing to do")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Stores
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	progressRepo := postgres.NewProgressRepository(conn.Pool())

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

	tracker := redis.NewUsageWindow(cache)

	// ─────────────────────────────────────────────────────────────────────────
	// Event Bus
	// ─────────────────────────────────────────────────────────────────────────
	hostname, _ := os.Hostname()
	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:     redis.NewPubSubClient(cache),
		InstanceID: hostname + "-worker",
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	defer bus.Close()

	anomalyAlert := eventhandler.NewOnUsageAnomalyHandler(log)
	if err := bus.Subscribe(anomalyAlert.EventType(), anomalyAlert.Handle); err != nil {
		return fmt.Errorf("subscribe anomaly handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Scheduler & Jobs
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{Logger: log})

	sweep := jobs.NewAnomalySweepJob(tracker, bus, log, jobs.AnomalySweepConfig{
		Window:    cfg.Analytics.AnomalyWindow,
		Threshold: cfg.Analytics.AnomalyThreshold,
		Timeout:   cfg.Scheduler.JobTimeout,
	})
	if err := sched.Register(sweep, scheduler.NewIntervalSchedule(cfg.Scheduler.AnomalySweepInterval)); err != nil {
		return fmt.Errorf("register anomaly sweep: %w", err)
	}

	prune := jobs.NewPruneUsageWindowJob(tracker, log, cfg.Scheduler.WindowRetention)
	if err := sched.Register(prune, scheduler.NewIntervalSchedule(cfg.Scheduler.PruneWindowInterval)); err != nil {
		return fmt.Errorf("register window prune: %w", err)
	}

	digest := jobs.NewInactivityDigestJob(progressRepo, log, jobs.InactivityDigestConfig{
		AccuracyBelow: cfg.Analytics.BehindAccuracyBelow,
		InactiveAfter: cfg.Analytics.BehindInactiveAfter,
		Timeout:       cfg.Scheduler.JobTimeout,
	})
	if err := sched.Register(digest, scheduler.NewDailySchedule(cfg.Scheduler.DigestHour, cfg.Scheduler.DigestMinute)); err != nil {
		return fmt.Errorf("register inactivity digest: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	for _, job := range sched.ListJobs() {
		log.Info("job registered", "name", job.Name, "schedule", job.Schedule)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Graceful Shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	if err := sched.Stop(); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}

	log.Info("worker stopped")
	return nil
}
