package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/usage"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRUNE USAGE WINDOW JOB
// ══════════════════════════════════════════════════════════════════════════════

// PruneUsageWindowJob discards tracked usage timestamps older than the
// retention period so the window store stays bounded.
type PruneUsageWindowJob struct {
	tracker   usage.WindowTracker
	logger    *slog.Logger
	retention time.Duration
}

// NewPruneUsageWindowJob creates a new prune job.
// Retention must exceed the anomaly detection window.
func NewPruneUsageWindowJob(tracker usage.WindowTracker, logger *slog.Logger, retention time.Duration) *PruneUsageWindowJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &PruneUsageWindowJob{
		tracker:   tracker,
		logger:    logger,
		retention: retention,
	}
}

// Name returns the job name.
func (j *PruneUsageWindowJob) Name() string {
	return "prune_usage_window"
}

// Description returns a human-readable description.
func (j *PruneUsageWindowJob) Description() string {
	return "Removes expired entries from the usage tracking window"
}

// Run executes the prune.
func (j *PruneUsageWindowJob) Run(ctx context.Context) error {
	if err := j.tracker.Prune(ctx, j.retention); err != nil {
		return fmt.Errorf("failed to prune usage window: %w", err)
	}

	j.logger.Debug("usage window pruned", "retention", j.retention.String())
	return nil
}
