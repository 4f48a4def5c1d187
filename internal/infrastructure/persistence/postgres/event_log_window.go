package postgres

import (
	"context"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
	"github.com/brightpath-edu/learning-analytics/internal/domain/usage"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT LOG WINDOW TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// EventLogWindow implements usage.WindowTracker directly over the usage_events
// table. It is the fallback when Redis is disabled: anomaly detection keeps
// working by scanning the trailing window in SQL instead of a sorted set.
//
// Track and Prune are no-ops. The event log row is appended inside the same
// transaction that records the usage event, and the log is permanent, so
// there is nothing extra to write and nothing to expire.
type EventLogWindow struct {
	repo usage.Repository
}

// NewEventLogWindow creates a tracker backed by the usage event log.
func NewEventLogWindow(repo usage.Repository) *EventLogWindow {
	return &EventLogWindow{repo: repo}
}

// compile-time check
var _ usage.WindowTracker = (*EventLogWindow)(nil)

// Track is a no-op; the event log already holds the row.
func (w *EventLogWindow) Track(_ context.Context, _ shared.StudentID, _ time.Time) error {
	return nil
}

// CountsInWindow returns per-user event counts inside the trailing window.
func (w *EventLogWindow) CountsInWindow(ctx context.Context, window time.Duration) (map[shared.StudentID]int, error) {
	cutoff := time.Now().UTC().Add(-window)
	return w.repo.CountsByUserSince(ctx, cutoff)
}

// Prune is a no-op; the event log is the permanent record.
func (w *EventLogWindow) Prune(_ context.Context, _ time.Duration) error {
	return nil
}
