// Package jobs contains implementations of scheduled jobs for the learning
// analytics engine.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
	"github.com/brightpath-edu/learning-analytics/internal/domain/usage"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANOMALY SWEEP JOB
// ══════════════════════════════════════════════════════════════════════════════

// AnomalySweepJob scans the trailing usage window for users whose event
// volume exceeds the anomaly threshold and publishes an event for each hit.
// On-demand anomaly queries exist too; the sweep makes sure bursts get
// flagged even when no admin is watching the dashboard.
type AnomalySweepJob struct {
	tracker   usage.WindowTracker
	publisher shared.EventPublisher
	logger    *slog.Logger
	config    AnomalySweepConfig

	lastRunStats atomic.Value // *AnomalySweepStats
}

// AnomalySweepConfig contains configuration for the anomaly sweep job.
type AnomalySweepConfig struct {
	// Window is the trailing detection window.
	Window time.Duration

	// Threshold is the per-user event count above which usage is anomalous.
	// A count equal to the threshold is still normal.
	Threshold int

	// Timeout is the maximum duration for one sweep.
	Timeout time.Duration
}

// DefaultAnomalySweepConfig returns sensible defaults.
func DefaultAnomalySweepConfig() AnomalySweepConfig {
	return AnomalySweepConfig{
		Window:    5 * time.Minute,
		Threshold: 100,
		Timeout:   30 * time.Second,
	}
}

// AnomalySweepStats contains statistics from a sweep run.
type AnomalySweepStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	UsersInWindow  int
	AnomaliesFound int
}

// NewAnomalySweepJob creates a new anomaly sweep job.
func NewAnomalySweepJob(
	tracker usage.WindowTracker,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config AnomalySweepConfig,
) *AnomalySweepJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &AnomalySweepJob{
		tracker:   tracker,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *AnomalySweepJob) Name() string {
	return "usage_anomaly_sweep"
}

// Description returns a human-readable description.
func (j *AnomalySweepJob) Description() string {
	return "Flags users with anomalous usage volume in the trailing window"
}

// Run executes the sweep.
func (j *AnomalySweepJob) Run(ctx context.Context) error {
	startedAt := time.Now()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	counts, err := j.tracker.CountsInWindow(ctx, j.config.Window)
	if err != nil {
		return fmt.Errorf("failed to read usage window: %w", err)
	}

	stats := &AnomalySweepStats{
		StartedAt:     startedAt,
		UsersInWindow: len(counts),
	}

	for studentID, count := range counts {
		if count <= j.config.Threshold {
			continue
		}

		stats.AnomaliesFound++
		j.logger.Warn("usage anomaly detected",
			"student_id", studentID.String(),
			"event_count", count,
			"window", j.config.Window.String(),
		)

		event := shared.NewUsageAnomalyFoundEvent(studentID, count, j.config.Window)
		_ = j.publisher.Publish(event)
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("anomaly sweep completed",
		"duration", stats.Duration.String(),
		"users_in_window", stats.UsersInWindow,
		"anomalies_found", stats.AnomaliesFound,
	)

	return nil
}

// LastRunStats returns statistics from the last sweep.
func (j *AnomalySweepJob) LastRunStats() *AnomalySweepStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*AnomalySweepStats)
}
