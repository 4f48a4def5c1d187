package query

import (
	"context"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/progress"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Returns one student's aggregate progress row. Self-scoped with
// teacher/admin override.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery contains the query parameters.
type GetProgressQuery struct {
	// StudentID is the student whose progress to return. Empty means the
	// authenticated caller.
	StudentID string
}

// StudentProgressDTO is the read model for one progress row.
type StudentProgressDTO struct {
	// StudentID is the student identifier.
	StudentID string `json:"student_id"`

	// TotalInteractions is the sum over all mastery rows.
	TotalInteractions int `json:"total_interactions"`

	// AverageAccuracy is the interaction-weighted accuracy.
	AverageAccuracy float64 `json:"average_accuracy"`

	// TopicsMastered counts topics at the mastered level.
	TopicsMastered int `json:"topics_mastered"`

	// Level is the overall classification.
	Level string `json:"level"`

	// CurrentStreak is the streak counter.
	CurrentStreak int `json:"current_streak"`

	// LastActiveAt is when the student last recorded an interaction.
	LastActiveAt time.Time `json:"last_active_at"`
}

// GetProgressResult contains the query result.
type GetProgressResult struct {
	// Progress is the student's aggregate, nil when the student has not
	// recorded any interaction yet.
	Progress *StudentProgressDTO `json:"progress"`

	// GeneratedAt is when the result was assembled.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetProgressHandler handles the GetProgressQuery.
type GetProgressHandler struct {
	progressRepo progress.Repository
}

// NewGetProgressHandler creates a new handler.
func NewGetProgressHandler(progressRepo progress.Repository) *GetProgressHandler {
	return &GetProgressHandler{progressRepo: progressRepo}
}

// Handle executes the query. A student with no recorded interactions gets
// an empty result, not an error.
func (h *GetProgressHandler) Handle(ctx context.Context, query GetProgressQuery) (*GetProgressResult, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}

	studentID, err := resolveTargetStudent(caller, query.StudentID)
	if err != nil {
		return nil, err
	}

	result := &GetProgressResult{GeneratedAt: time.Now().UTC()}

	row, err := h.progressRepo.Find(ctx, studentID)
	if err != nil {
		if shared.IsNotFound(err) {
			return result, nil
		}
		return nil, shared.WrapError("query", "GetProgress", shared.ErrExternalService, "failed to load progress", err)
	}

	dto := toProgressDTO(row)
	result.Progress = &dto
	return result, nil
}

func toProgressDTO(row *progress.StudentProgress) StudentProgressDTO {
	return StudentProgressDTO{
		StudentID:         row.StudentID.String(),
		TotalInteractions: row.TotalInteractions,
		AverageAccuracy:   row.AverageAccuracy,
		TopicsMastered:    row.TopicsMastered,
		Level:             row.Level.String(),
		CurrentStreak:     row.CurrentStreak,
		LastActiveAt:      row.LastActiveAt,
	}
}
