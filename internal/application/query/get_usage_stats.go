package query

import (
	"context"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
	"github.com/brightpath-edu/learning-analytics/internal/domain/usage"
	"github.com/brightpath-edu/learning-analytics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USAGE STATS QUERY
// Aggregates usage event counts over three trailing windows (24h, 7d,
// all-time), globally and per user, plus a per-type breakdown for the
// trailing 24 hours. Admin only.
// ══════════════════════════════════════════════════════════════════════════════

// GetUsageStatsQuery contains the query parameters.
type GetUsageStatsQuery struct{}

// UsageStatsDTO holds counts for one scope.
type UsageStatsDTO struct {
	// Today is the count in the trailing 24 hour window.
	Today int `json:"today"`

	// Week is the count in the trailing 7 day window.
	Week int `json:"week"`

	// AllTime is the total count.
	AllTime int `json:"all_time"`
}

// GetUsageStatsResult contains the query result.
type GetUsageStatsResult struct {
	// Global holds platform-wide counts.
	Global UsageStatsDTO `json:"global"`

	// PerUser holds counts per student ID.
	PerUser map[string]UsageStatsDTO `json:"per_user"`

	// PerTypeToday holds per-event-type counts for the trailing 24 hours.
	PerTypeToday map[string]int `json:"per_type_today"`

	// GeneratedAt is when the result was assembled.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetUsageStatsHandler handles the GetUsageStatsQuery.
type GetUsageStatsHandler struct {
	usageRepo usage.Repository
}

// NewGetUsageStatsHandler creates a new handler.
func NewGetUsageStatsHandler(usageRepo usage.Repository) *GetUsageStatsHandler {
	return &GetUsageStatsHandler{usageRepo: usageRepo}
}

// Handle executes the query.
func (h *GetUsageStatsHandler) Handle(ctx context.Context, _ GetUsageStatsQuery) (*GetUsageStatsResult, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	if !caller.CanViewUsageAnalytics() {
		return nil, shared.ErrInsufficientRole
	}

	now := timeutil.Now()
	dayCutoff := timeutil.Trailing24Hours(now)
	weekCutoff := timeutil.TrailingDays(now, 7)

	global, err := h.globalStats(ctx, dayCutoff, weekCutoff)
	if err != nil {
		return nil, err
	}

	perUser, err := h.perUserStats(ctx, dayCutoff, weekCutoff)
	if err != nil {
		return nil, err
	}

	perTypeToday, err := h.usageRepo.CountsByTypeSince(ctx, dayCutoff)
	if err != nil {
		return nil, shared.WrapError("query", "GetUsageStats", shared.ErrExternalService, "failed to count by type", err)
	}
	perType := make(map[string]int, len(perTypeToday))
	for eventType, count := range perTypeToday {
		perType[eventType.String()] = count
	}

	return &GetUsageStatsResult{
		Global:       global,
		PerUser:      perUser,
		PerTypeToday: perType,
		GeneratedAt:  now,
	}, nil
}

func (h *GetUsageStatsHandler) globalStats(ctx context.Context, dayCutoff, weekCutoff time.Time) (UsageStatsDTO, error) {
	today, err := h.usageRepo.CountSince(ctx, dayCutoff)
	if err != nil {
		return UsageStatsDTO{}, shared.WrapError("query", "GetUsageStats", shared.ErrExternalService, "failed to count today", err)
	}
	week, err := h.usageRepo.CountSince(ctx, weekCutoff)
	if err != nil {
		return UsageStatsDTO{}, shared.WrapError("query", "GetUsageStats", shared.ErrExternalService, "failed to count week", err)
	}
	allTime, err := h.usageRepo.CountSince(ctx, time.Time{})
	if err != nil {
		return UsageStatsDTO{}, shared.WrapError("query", "GetUsageStats", shared.ErrExternalService, "failed to count all-time", err)
	}
	return UsageStatsDTO{Today: today, Week: week, AllTime: allTime}, nil
}

func (h *GetUsageStatsHandler) perUserStats(ctx context.Context, dayCutoff, weekCutoff time.Time) (map[string]UsageStatsDTO, error) {
	todayByUser, err := h.usageRepo.CountsByUserSince(ctx, dayCutoff)
	if err != nil {
		return nil, shared.WrapError("query", "GetUsageStats", shared.ErrExternalService, "failed to count today by user", err)
	}
	weekByUser, err := h.usageRepo.CountsByUserSince(ctx, weekCutoff)
	if err != nil {
		return nil, shared.WrapError("query", "GetUsageStats", shared.ErrExternalService, "failed to count week by user", err)
	}
	allByUser, err := h.usageRepo.CountsByUserSince(ctx, time.Time{})
	if err != nil {
		return nil, shared.WrapError("query", "GetUsageStats", shared.ErrExternalService, "failed to count all-time by user", err)
	}

	// All-time covers every user that ever appeared in any window.
	out := make(map[string]UsageStatsDTO, len(allByUser))
	for studentID, all := range allByUser {
		out[studentID.String()] = UsageStatsDTO{
			Today:   todayByUser[studentID],
			Week:    weekByUser[studentID],
			AllTime: all,
		}
	}
	return out, nil
}
