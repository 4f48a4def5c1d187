package eventhandler

import (
	"log/slog"

	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON USAGE ANOMALY FOUND
// ══════════════════════════════════════════════════════════════════════════════

// OnUsageAnomalyHandler reacts to usage anomaly events with a structured
// alert log. The detection itself happens in the sweep job and the on-demand
// query; this handler is the single place operators grep for alerts.
type OnUsageAnomalyHandler struct {
	logger *slog.Logger
}

// NewOnUsageAnomalyHandler creates the handler.
func NewOnUsageAnomalyHandler(logger *slog.Logger) *OnUsageAnomalyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnUsageAnomalyHandler{
		logger: logger.With("handler", "on_usage_anomaly"),
	}
}

// Handle processes a usage anomaly event.
func (h *OnUsageAnomalyHandler) Handle(event shared.Event) error {
	e, ok := event.(*shared.UsageAnomalyFoundEvent)
	if !ok {
		h.logger.Warn("received unexpected event type",
			"event_type", event.Type(),
			"event_id", event.EventID(),
		)
		return nil
	}

	h.logger.Warn("usage anomaly detected",
		"alert", "usage_anomaly",
		"student_id", e.StudentID.String(),
		"event_count", e.EventCount,
		"window", e.Window.String(),
		"detected_at", e.OccurredAt(),
	)
	return nil
}

// EventType returns the event type this handler subscribes to.
func (h *OnUsageAnomalyHandler) EventType() shared.EventType {
	return shared.EventUsageAnomalyFound
}
