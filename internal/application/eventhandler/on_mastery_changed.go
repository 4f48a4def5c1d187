// Package eventhandler contains the subscribers for domain events.
// Handlers are the reactive part of the system: they run side effects
// (cache invalidation, alert logs) after the write path has committed,
// and they never fail the operation that produced the event.
package eventhandler

import (
	"context"
	"log/slog"

	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON MASTERY LEVEL CHANGED
// ══════════════════════════════════════════════════════════════════════════════

// ProgressInvalidator drops a cached progress snapshot for one student.
// Implemented by the Redis progress cache; nil when caching is disabled.
type ProgressInvalidator interface {
	Invalidate(ctx context.Context, studentID shared.StudentID) error
}

// OnMasteryLevelChangedHandler reacts to topic mastery level transitions.
// It logs the transition and invalidates the student's cached progress
// snapshot so that other instances do not keep serving a stale level.
type OnMasteryLevelChangedHandler struct {
	invalidator ProgressInvalidator
	logger      *slog.Logger
}

// NewOnMasteryLevelChangedHandler creates the handler. invalidator may be
// nil when no progress cache is configured.
func NewOnMasteryLevelChangedHandler(invalidator ProgressInvalidator, logger *slog.Logger) *OnMasteryLevelChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnMasteryLevelChangedHandler{
		invalidator: invalidator,
		logger:      logger.With("handler", "on_mastery_level_changed"),
	}
}

// Handle processes a mastery level transition event.
func (h *OnMasteryLevelChangedHandler) Handle(event shared.Event) error {
	e, ok := event.(*shared.MasteryLevelChangedEvent)
	if !ok {
		h.logger.Warn("received unexpected event type",
			"event_type", event.Type(),
			"event_id", event.EventID(),
		)
		return nil
	}

	h.logger.Info("mastery level changed",
		"student_id", e.StudentID.String(),
		"subject", e.Subject,
		"topic", e.Topic,
		"old_level", e.OldLevel,
		"new_level", e.NewLevel,
	)

	if h.invalidator == nil {
		return nil
	}

	ctx := context.Background()
	if err := h.invalidator.Invalidate(ctx, e.StudentID); err != nil {
		// The snapshot TTL bounds the staleness, so log and move on.
		h.logger.Warn("failed to invalidate progress snapshot",
			"student_id", e.StudentID.String(),
			"error", err,
		)
	}
	return nil
}

// EventType returns the event type this handler subscribes to.
func (h *OnMasteryLevelChangedHandler) EventType() shared.EventType {
	return shared.EventMasteryLevelChanged
}
