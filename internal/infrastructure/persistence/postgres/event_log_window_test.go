package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
	"github.com/brightpath-edu/learning-analytics/internal/domain/usage"
)

type stubUsageRepo struct {
	cutoff time.Time
	counts map[shared.StudentID]int
}

func (s *stubUsageRepo) Append(_ context.Context, _ *usage.Event) error { return nil }

func (s *stubUsageRepo) CountSince(_ context.Context, _ time.Time) (int, error) { return 0, nil }

func (s *stubUsageRepo) CountsByUserSince(_ context.Context, cutoff time.Time) (map[shared.StudentID]int, error) {
	s.cutoff = cutoff
	return s.counts, nil
}

func (s *stubUsageRepo) CountsByTypeSince(_ context.Context, _ time.Time) (map[usage.EventType]int, error) {
	return nil, nil
}

func TestEventLogWindowCountsTrailingWindow(t *testing.T) {
	repo := &stubUsageRepo{counts: map[shared.StudentID]int{
		"student-1": 150,
		"student-2": 3,
	}}
	window := NewEventLogWindow(repo)

	before := time.Now().UTC()
	counts, err := window.CountsInWindow(context.Background(), 5*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 150, counts["student-1"])
	assert.Equal(t, 3, counts["student-2"])

	// The cutoff must be the trailing window's start, not zero (zero would
	// mean all-time and flag every active student).
	expected := before.Add(-5 * time.Minute)
	assert.WithinDuration(t, expected, repo.cutoff, time.Second)
}

func TestEventLogWindowTrackAndPruneAreNoOps(t *testing.T) {
	window := NewEventLogWindow(&stubUsageRepo{})

	assert.NoError(t, window.Track(context.Background(), "student-1", time.Now()))
	assert.NoError(t, window.Prune(context.Background(), time.Minute))
}
