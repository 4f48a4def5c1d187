package query

import (
	"context"
	"sort"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/mastery"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET WEAK TOPICS QUERY
// Returns the topics a student is struggling with: low accuracy over at
// least a minimum number of attempts, weakest first. Accuracy is recomputed
// from the counters at query time, never read from a stored field.
// ══════════════════════════════════════════════════════════════════════════════

// WeakTopicsConfig holds the detection thresholds.
type WeakTopicsConfig struct {
	// AccuracyBelow marks a topic weak when its accuracy is strictly below
	// this value.
	AccuracyBelow float64

	// MinInteractions filters out topics with too few attempts to judge.
	MinInteractions int
}

// DefaultWeakTopicsConfig returns the default thresholds.
func DefaultWeakTopicsConfig() WeakTopicsConfig {
	return WeakTopicsConfig{
		AccuracyBelow:   0.50,
		MinInteractions: 2,
	}
}

// GetWeakTopicsQuery contains the query parameters.
type GetWeakTopicsQuery struct {
	// StudentID is the student whose weak topics to return. Empty means
	// the authenticated caller.
	StudentID string
}

// GetWeakTopicsResult contains the query result.
type GetWeakTopicsResult struct {
	// StudentID is the student the rows belong to.
	StudentID string `json:"student_id"`

	// Topics is the weak subset, sorted ascending by accuracy.
	Topics []TopicMasteryDTO `json:"topics"`

	// GeneratedAt is when the result was assembled.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetWeakTopicsHandler handles the GetWeakTopicsQuery.
type GetWeakTopicsHandler struct {
	masteryRepo mastery.Repository
	config      WeakTopicsConfig
}

// NewGetWeakTopicsHandler creates a new handler.
func NewGetWeakTopicsHandler(masteryRepo mastery.Repository, config WeakTopicsConfig) *GetWeakTopicsHandler {
	if config.AccuracyBelow == 0 {
		config = DefaultWeakTopicsConfig()
	}
	return &GetWeakTopicsHandler{
		masteryRepo: masteryRepo,
		config:      config,
	}
}

// Handle executes the query.
func (h *GetWeakTopicsHandler) Handle(ctx context.Context, query GetWeakTopicsQuery) (*GetWeakTopicsResult, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}

	studentID, err := resolveTargetStudent(caller, query.StudentID)
	if err != nil {
		return nil, err
	}

	rows, err := h.masteryRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, shared.WrapError("query", "GetWeakTopics", shared.ErrExternalService, "failed to list mastery rows", err)
	}

	dtos := make([]TopicMasteryDTO, 0)
	for _, row := range rows {
		if row.TotalInteractions < h.config.MinInteractions {
			continue
		}
		if row.Accuracy() >= h.config.AccuracyBelow {
			continue
		}
		dtos = append(dtos, toMasteryDTO(row))
	}

	// Weakest first.
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].Accuracy < dtos[j].Accuracy })

	return &GetWeakTopicsResult{
		StudentID:   studentID.String(),
		Topics:      dtos,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
