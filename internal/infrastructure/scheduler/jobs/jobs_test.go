package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-edu/learning-analytics/internal/domain/progress"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

type fakeTracker struct {
	counts      map[shared.StudentID]int
	prunedWith  time.Duration
	pruneCalled bool
}

func (f *fakeTracker) Track(ctx context.Context, studentID shared.StudentID, at time.Time) error {
	return nil
}

func (f *fakeTracker) CountsInWindow(ctx context.Context, window time.Duration) (map[shared.StudentID]int, error) {
	return f.counts, nil
}

func (f *fakeTracker) Prune(ctx context.Context, retention time.Duration) error {
	f.pruneCalled = true
	f.prunedWith = retention
	return nil
}

type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

type fakeProgressRepo struct {
	behind []*progress.StudentProgress
}

func (f *fakeProgressRepo) Find(ctx context.Context, studentID shared.StudentID) (*progress.StudentProgress, error) {
	return nil, shared.ErrProgressNotFound
}

func (f *fakeProgressRepo) Upsert(ctx context.Context, p *progress.StudentProgress) error {
	return nil
}

func (f *fakeProgressRepo) ListAll(ctx context.Context) ([]*progress.StudentProgress, error) {
	return f.behind, nil
}

func (f *fakeProgressRepo) ListBehind(ctx context.Context, accuracyBelow float64, inactiveSince time.Time) ([]*progress.StudentProgress, error) {
	return f.behind, nil
}

func TestAnomalySweepFlagsOnlyAboveThreshold(t *testing.T) {
	tracker := &fakeTracker{counts: map[shared.StudentID]int{
		"student-calm":  40,
		"student-edge":  100,
		"student-burst": 101,
	}}
	pub := &capturingPublisher{}

	job := NewAnomalySweepJob(tracker, pub, nil, DefaultAnomalySweepConfig())
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, pub.events, 1)
	event, ok := pub.events[0].(*shared.UsageAnomalyFoundEvent)
	require.True(t, ok)
	assert.Equal(t, shared.StudentID("student-burst"), event.StudentID)
	assert.Equal(t, 101, event.EventCount)

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.UsersInWindow)
	assert.Equal(t, 1, stats.AnomaliesFound)
}

func TestAnomalySweepEmptyWindow(t *testing.T) {
	tracker := &fakeTracker{counts: map[shared.StudentID]int{}}
	pub := &capturingPublisher{}

	job := NewAnomalySweepJob(tracker, pub, nil, DefaultAnomalySweepConfig())
	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, pub.events)
}

func TestPruneUsageWindow(t *testing.T) {
	tracker := &fakeTracker{}

	job := NewPruneUsageWindowJob(tracker, nil, 15*time.Minute)
	require.NoError(t, job.Run(context.Background()))

	assert.True(t, tracker.pruneCalled)
	assert.Equal(t, 15*time.Minute, tracker.prunedWith)
}

func TestInactivityDigest(t *testing.T) {
	repo := &fakeProgressRepo{behind: []*progress.StudentProgress{
		{
			StudentID:       "student-1",
			AverageAccuracy: 0.3,
			Level:           progress.LevelBeginner,
			LastActiveAt:    time.Now().Add(-10 * 24 * time.Hour),
		},
		{
			StudentID:       "student-2",
			AverageAccuracy: 0.9,
			Level:           progress.LevelAdvanced,
			LastActiveAt:    time.Now().Add(-8 * 24 * time.Hour),
		},
	}}

	job := NewInactivityDigestJob(repo, nil, DefaultInactivityDigestConfig())
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.StudentsBehind)
}
