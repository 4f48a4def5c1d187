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
// GET MASTERY QUERY
// Returns all topic mastery rows for a student, grouped view of where they
// stand per topic. Self-scoped with teacher/admin override.
// ══════════════════════════════════════════════════════════════════════════════

// GetMasteryQuery contains the query parameters.
type GetMasteryQuery struct {
	// StudentID is the student whose mastery to return. Empty means the
	// authenticated caller.
	StudentID string
}

// TopicMasteryDTO is the read model for one mastery row.
type TopicMasteryDTO struct {
	// Subject is the course subject name.
	Subject string `json:"subject"`

	// Topic is the topic title.
	Topic string `json:"topic"`

	// TotalInteractions counts every interaction for the topic.
	TotalInteractions int `json:"total_interactions"`

	// CorrectAnswers counts correct interactions.
	CorrectAnswers int `json:"correct_answers"`

	// TotalQuizAttempts counts quiz attempt interactions.
	TotalQuizAttempts int `json:"total_quiz_attempts"`

	// Accuracy is correct over total, recomputed from the counters.
	Accuracy float64 `json:"accuracy"`

	// Level is the current mastery classification.
	Level string `json:"level"`

	// LastInteractionAt is when the topic was last touched.
	LastInteractionAt time.Time `json:"last_interaction_at"`
}

// GetMasteryResult contains the query result.
type GetMasteryResult struct {
	// StudentID is the student the rows belong to.
	StudentID string `json:"student_id"`

	// Topics is every mastery row, strongest first.
	Topics []TopicMasteryDTO `json:"topics"`

	// GeneratedAt is when the result was assembled.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetMasteryHandler handles the GetMasteryQuery.
type GetMasteryHandler struct {
	masteryRepo mastery.Repository
}

// NewGetMasteryHandler creates a new handler.
func NewGetMasteryHandler(masteryRepo mastery.Repository) *GetMasteryHandler {
	return &GetMasteryHandler{masteryRepo: masteryRepo}
}

// Handle executes the query.
func (h *GetMasteryHandler) Handle(ctx context.Context, query GetMasteryQuery) (*GetMasteryResult, error) {
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
		return nil, shared.WrapError("query", "GetMastery", shared.ErrExternalService, "failed to list mastery rows", err)
	}

	dtos := make([]TopicMasteryDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, toMasteryDTO(row))
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].Accuracy > dtos[j].Accuracy })

	return &GetMasteryResult{
		StudentID:   studentID.String(),
		Topics:      dtos,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func toMasteryDTO(row *mastery.TopicMastery) TopicMasteryDTO {
	return TopicMasteryDTO{
		Subject:           row.Subject,
		Topic:             row.Topic,
		TotalInteractions: row.TotalInteractions,
		CorrectAnswers:    row.CorrectAnswers,
		TotalQuizAttempts: row.TotalQuizAttempts,
		Accuracy:          row.Accuracy(),
		Level:             row.Level.String(),
		LastInteractionAt: row.LastInteractionAt,
	}
}
