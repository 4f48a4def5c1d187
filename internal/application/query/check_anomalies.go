package query

import (
	"context"
	"sort"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
	"github.com/brightpath-edu/learning-analytics/internal/domain/usage"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK ANOMALIES QUERY
// Flags users whose usage event count inside the trailing detection window
// strictly exceeds the threshold. Admin only.
// ══════════════════════════════════════════════════════════════════════════════

// AnomalyConfig holds the detection parameters.
type AnomalyConfig struct {
	// Window is the trailing detection window.
	Window time.Duration

	// Threshold is the maximum allowed event count; a user is flagged only
	// when their count is strictly greater.
	Threshold int
}

// DefaultAnomalyConfig returns the default detection parameters.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		Window:    5 * time.Minute,
		Threshold: 100,
	}
}

// CheckAnomaliesQuery contains the query parameters.
type CheckAnomaliesQuery struct{}

// AnomalyDTO is the read model for one flagged user.
type AnomalyDTO struct {
	// StudentID is the flagged user.
	StudentID string `json:"student_id"`

	// Count is the event count inside the window.
	Count int `json:"count"`
}

// CheckAnomaliesResult contains the query result.
type CheckAnomaliesResult struct {
	// Anomalies is the flagged set, highest count first.
	Anomalies []AnomalyDTO `json:"anomalies"`

	// WindowSeconds is the detection window length.
	WindowSeconds int `json:"window_seconds"`

	// Threshold is the detection threshold.
	Threshold int `json:"threshold"`

	// GeneratedAt is when the result was assembled.
	GeneratedAt time.Time `json:"generated_at"`
}

// CheckAnomaliesHandler handles the CheckAnomaliesQuery.
type CheckAnomaliesHandler struct {
	tracker usage.WindowTracker
	config  AnomalyConfig
}

// NewCheckAnomaliesHandler creates a new handler.
func NewCheckAnomaliesHandler(tracker usage.WindowTracker, config AnomalyConfig) *CheckAnomaliesHandler {
	if config.Window == 0 {
		config = DefaultAnomalyConfig()
	}
	return &CheckAnomaliesHandler{
		tracker: tracker,
		config:  config,
	}
}

// Handle executes the query.
func (h *CheckAnomaliesHandler) Handle(ctx context.Context, _ CheckAnomaliesQuery) (*CheckAnomaliesResult, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	if !caller.CanViewUsageAnalytics() {
		return nil, shared.ErrInsufficientRole
	}

	counts, err := h.tracker.CountsInWindow(ctx, h.config.Window)
	if err != nil {
		return nil, shared.WrapError("query", "CheckAnomalies", shared.ErrExternalService, "failed to count events in window", err)
	}

	anomalies := make([]AnomalyDTO, 0)
	for studentID, count := range counts {
		if count > h.config.Threshold {
			anomalies = append(anomalies, AnomalyDTO{
				StudentID: studentID.String(),
				Count:     count,
			})
		}
	}
	sort.Slice(anomalies, func(i, j int) bool { return anomalies[i].Count > anomalies[j].Count })

	return &CheckAnomaliesResult{
		Anomalies:     anomalies,
		WindowSeconds: int(h.config.Window.Seconds()),
		Threshold:     h.config.Threshold,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}
