package query

import (
	"context"
	"sort"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/progress"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
	"github.com/brightpath-edu/learning-analytics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENTS BEHIND QUERY
// Returns students who are falling behind: low overall accuracy OR no
// activity inside the inactivity window. Teacher/admin only.
// ══════════════════════════════════════════════════════════════════════════════

// StudentsBehindConfig holds the detection thresholds.
type StudentsBehindConfig struct {
	// AccuracyBelow marks a student behind when their average accuracy is
	// strictly below this value.
	AccuracyBelow float64

	// InactivityWindow marks a student behind when their last activity is
	// older than this.
	InactivityWindow time.Duration
}

// DefaultStudentsBehindConfig returns the default thresholds.
func DefaultStudentsBehindConfig() StudentsBehindConfig {
	return StudentsBehindConfig{
		AccuracyBelow:    0.50,
		InactivityWindow: 7 * 24 * time.Hour,
	}
}

// GetStudentsBehindQuery contains the query parameters.
type GetStudentsBehindQuery struct{}

// BehindStudentDTO is the read model for one flagged student.
type BehindStudentDTO struct {
	StudentProgressDTO

	// LowAccuracy indicates the accuracy criterion matched.
	LowAccuracy bool `json:"low_accuracy"`

	// Inactive indicates the inactivity criterion matched.
	Inactive bool `json:"inactive"`

	// DaysInactive is the number of days since last activity.
	DaysInactive int `json:"days_inactive"`
}

// GetStudentsBehindResult contains the query result.
type GetStudentsBehindResult struct {
	// Students is the flagged subset, most recently active first.
	Students []BehindStudentDTO `json:"students"`

	// TotalCount is the number of flagged students.
	TotalCount int `json:"total_count"`

	// GeneratedAt is when the result was assembled.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetStudentsBehindHandler handles the GetStudentsBehindQuery.
type GetStudentsBehindHandler struct {
	progressRepo progress.Repository
	config       StudentsBehindConfig
}

// NewGetStudentsBehindHandler creates a new handler.
func NewGetStudentsBehindHandler(progressRepo progress.Repository, config StudentsBehindConfig) *GetStudentsBehindHandler {
	if config.AccuracyBelow == 0 {
		config = DefaultStudentsBehindConfig()
	}
	return &GetStudentsBehindHandler{
		progressRepo: progressRepo,
		config:       config,
	}
}

// Handle executes the query.
func (h *GetStudentsBehindHandler) Handle(ctx context.Context, _ GetStudentsBehindQuery) (*GetStudentsBehindResult, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	if !caller.CanViewClassAnalytics() {
		return nil, shared.ErrInsufficientRole
	}

	now := timeutil.Now()
	inactiveSince := timeutil.TrailingWindow(now, h.config.InactivityWindow)

	rows, err := h.progressRepo.ListBehind(ctx, h.config.AccuracyBelow, inactiveSince)
	if err != nil {
		return nil, shared.WrapError("query", "GetStudentsBehind", shared.ErrExternalService, "failed to list students", err)
	}

	dtos := make([]BehindStudentDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, BehindStudentDTO{
			StudentProgressDTO: toProgressDTO(row),
			LowAccuracy:        row.AverageAccuracy < h.config.AccuracyBelow,
			Inactive:           row.LastActiveAt.Before(inactiveSince),
			DaysInactive:       int(now.Sub(row.LastActiveAt).Hours() / 24),
		})
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].LastActiveAt.After(dtos[j].LastActiveAt) })

	return &GetStudentsBehindResult{
		Students:    dtos,
		TotalCount:  len(dtos),
		GeneratedAt: time.Now().UTC(),
	}, nil
}
