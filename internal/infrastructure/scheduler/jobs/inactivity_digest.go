package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// INACTIVITY DIGEST JOB
// ══════════════════════════════════════════════════════════════════════════════

// InactivityDigestJob produces a daily digest of students who are falling
// behind, either through low accuracy or prolonged inactivity. The digest is
// written to the structured log where the ops pipeline picks it up; teachers
// see the same data on demand through the class analytics endpoints.
type InactivityDigestJob struct {
	progressRepo progress.Repository
	logger       *slog.Logger
	config       InactivityDigestConfig

	lastRunStats atomic.Value // *InactivityDigestStats
}

// InactivityDigestConfig contains configuration for the digest job.
type InactivityDigestConfig struct {
	// AccuracyBelow flags students whose overall accuracy is under this value.
	AccuracyBelow float64

	// InactiveAfter flags students with no activity for this long.
	InactiveAfter time.Duration

	// Timeout is the maximum duration for one digest run.
	Timeout time.Duration
}

// DefaultInactivityDigestConfig returns sensible defaults.
func DefaultInactivityDigestConfig() InactivityDigestConfig {
	return InactivityDigestConfig{
		AccuracyBelow: 0.50,
		InactiveAfter: 7 * 24 * time.Hour,
		Timeout:       2 * time.Minute,
	}
}

// InactivityDigestStats contains statistics from a digest run.
type InactivityDigestStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	StudentsBehind int
}

// NewInactivityDigestJob creates a new digest job.
func NewInactivityDigestJob(
	progressRepo progress.Repository,
	logger *slog.Logger,
	config InactivityDigestConfig,
) *InactivityDigestJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &InactivityDigestJob{
		progressRepo: progressRepo,
		logger:       logger,
		config:       config,
	}
}

// Name returns the job name.
func (j *InactivityDigestJob) Name() string {
	return "inactivity_digest"
}

// Description returns a human-readable description.
func (j *InactivityDigestJob) Description() string {
	return "Logs a daily digest of students with low accuracy or prolonged inactivity"
}

// Run executes the digest.
func (j *InactivityDigestJob) Run(ctx context.Context) error {
	startedAt := time.Now()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	inactiveSince := time.Now().UTC().Add(-j.config.InactiveAfter)
	rows, err := j.progressRepo.ListBehind(ctx, j.config.AccuracyBelow, inactiveSince)
	if err != nil {
		return fmt.Errorf("failed to list students behind: %w", err)
	}

	for _, row := range rows {
		daysInactive := int(time.Since(row.LastActiveAt).Hours() / 24)
		j.logger.Info("student behind",
			"student_id", row.StudentID.String(),
			"accuracy", row.AverageAccuracy,
			"days_inactive", daysInactive,
			"level", string(row.Level),
		)
	}

	stats := &InactivityDigestStats{
		StartedAt:      startedAt,
		CompletedAt:    time.Now(),
		StudentsBehind: len(rows),
	}
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("inactivity digest completed",
		"duration", stats.Duration.String(),
		"students_behind", stats.StudentsBehind,
	)

	return nil
}

// LastRunStats returns statistics from the last digest run.
func (j *InactivityDigestJob) LastRunStats() *InactivityDigestStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*InactivityDigestStats)
}
