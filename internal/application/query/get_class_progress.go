package query

import (
	"context"
	"sort"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/progress"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS PROGRESS QUERY
// Returns the progress rows of every student, for teachers and admins.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassProgressQuery contains the query parameters.
type GetClassProgressQuery struct {
	// SortBy is the sort field: "accuracy", "interactions", "last_active".
	SortBy string
}

// Validate normalizes the query parameters.
func (q *GetClassProgressQuery) Validate() error {
	if q.SortBy == "" {
		q.SortBy = "last_active"
	}
	return nil
}

// GetClassProgressResult contains the query result.
type GetClassProgressResult struct {
	// Students is every progress row.
	Students []StudentProgressDTO `json:"students"`

	// TotalCount is the number of students with a progress row.
	TotalCount int `json:"total_count"`

	// GeneratedAt is when the result was assembled.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetClassProgressHandler handles the GetClassProgressQuery.
type GetClassProgressHandler struct {
	progressRepo progress.Repository
}

// NewGetClassProgressHandler creates a new handler.
func NewGetClassProgressHandler(progressRepo progress.Repository) *GetClassProgressHandler {
	return &GetClassProgressHandler{progressRepo: progressRepo}
}

// Handle executes the query.
func (h *GetClassProgressHandler) Handle(ctx context.Context, query GetClassProgressQuery) (*GetClassProgressResult, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	if !caller.CanViewClassAnalytics() {
		return nil, shared.ErrInsufficientRole
	}
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetClassProgress", shared.ErrValidation, err.Error(), err)
	}

	rows, err := h.progressRepo.ListAll(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetClassProgress", shared.ErrExternalService, "failed to list progress rows", err)
	}

	dtos := make([]StudentProgressDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, toProgressDTO(row))
	}
	sortProgress(dtos, query.SortBy)

	return &GetClassProgressResult{
		Students:    dtos,
		TotalCount:  len(dtos),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func sortProgress(dtos []StudentProgressDTO, sortBy string) {
	sort.Slice(dtos, func(i, j int) bool {
		switch sortBy {
		case "accuracy":
			return dtos[i].AverageAccuracy > dtos[j].AverageAccuracy
		case "interactions":
			return dtos[i].TotalInteractions > dtos[j].TotalInteractions
		default: // "last_active"
			return dtos[i].LastActiveAt.After(dtos[j].LastActiveAt)
		}
	})
}
