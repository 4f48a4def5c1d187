// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/interaction"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET INTERACTIONS QUERY
// Returns a student's recorded learning interactions, most recent first.
// Self-scoped: students see only their own history; teachers and admins may
// inspect any student.
// ══════════════════════════════════════════════════════════════════════════════

// GetInteractionsQuery contains the query parameters.
type GetInteractionsQuery struct {
	// StudentID is the student whose interactions to return. Empty means
	// the authenticated caller.
	StudentID string

	// Limit is the maximum number of interactions (default 50).
	Limit int

	// Offset is the pagination offset.
	Offset int
}

// Validate normalizes the query parameters.
func (q *GetInteractionsQuery) Validate() error {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return nil
}

// InteractionDTO is the read model for one interaction.
type InteractionDTO struct {
	// ID is the interaction identifier.
	ID string `json:"id"`

	// Subject is the course subject name.
	Subject string `json:"subject"`

	// Grade is the grade level.
	Grade string `json:"grade"`

	// Topic is the topic title.
	Topic string `json:"topic"`

	// Type is the interaction type.
	Type string `json:"type"`

	// IsCorrect is the grading outcome, absent for non-gradable types.
	IsCorrect *bool `json:"is_correct,omitempty"`

	// CreatedAt is when the interaction was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// GetInteractionsResult contains the query result.
type GetInteractionsResult struct {
	// StudentID is the student the interactions belong to.
	StudentID string `json:"student_id"`

	// Interactions is the page of interactions, most recent first.
	Interactions []InteractionDTO `json:"interactions"`

	// TotalCount is the total number of interactions for the student.
	TotalCount int `json:"total_count"`

	// GeneratedAt is when the result was assembled.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetInteractionsHandler handles the GetInteractionsQuery.
type GetInteractionsHandler struct {
	interactionRepo interaction.Repository
}

// NewGetInteractionsHandler creates a new handler.
func NewGetInteractionsHandler(interactionRepo interaction.Repository) *GetInteractionsHandler {
	return &GetInteractionsHandler{interactionRepo: interactionRepo}
}

// Handle executes the query.
func (h *GetInteractionsHandler) Handle(ctx context.Context, query GetInteractionsQuery) (*GetInteractionsResult, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetInteractions", shared.ErrValidation, err.Error(), err)
	}

	studentID, err := resolveTargetStudent(caller, query.StudentID)
	if err != nil {
		return nil, err
	}

	items, err := h.interactionRepo.ListByStudent(ctx, studentID, shared.NewPagination(query.Limit, query.Offset))
	if err != nil {
		return nil, shared.WrapError("query", "GetInteractions", shared.ErrExternalService, "failed to list interactions", err)
	}
	total, err := h.interactionRepo.CountByStudent(ctx, studentID)
	if err != nil {
		return nil, shared.WrapError("query", "GetInteractions", shared.ErrExternalService, "failed to count interactions", err)
	}

	dtos := make([]InteractionDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, InteractionDTO{
			ID:        item.ID.String(),
			Subject:   item.Subject,
			Grade:     item.Grade,
			Topic:     item.Topic,
			Type:      item.Type.String(),
			IsCorrect: item.IsCorrect,
			CreatedAt: item.CreatedAt,
		})
	}

	return &GetInteractionsResult{
		StudentID:    studentID.String(),
		Interactions: dtos,
		TotalCount:   total,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}

// resolveTargetStudent maps the optional requested student to an effective
// target. A caller without cross-student visibility asking for someone
// else's data gets a not-found error, never a confirmation the student
// exists.
func resolveTargetStudent(caller identity.Identity, requested string) (shared.StudentID, error) {
	if requested == "" {
		return caller.StudentID, nil
	}
	target := shared.StudentID(requested)
	if !caller.CanViewStudent(target) {
		return "", shared.NewDomainError("query", "ResolveStudent", shared.ErrNotFound, "student not found")
	}
	return target, nil
}
