package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }
func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestIntervalScheduleNext(t *testing.T) {
	s := NewIntervalSchedule(5 * time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(5*time.Minute), s.Next(now))
	assert.Equal(t, "@every 5m0s", s.String())
}

func TestDailyScheduleNext(t *testing.T) {
	s := NewDailySchedule(6, 30)

	before := time.Date(2026, 3, 1, 5, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 6, 30, 0, 0, time.UTC), s.Next(before))

	after := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 6, 30, 0, 0, time.UTC), s.Next(after))

	exact := time.Date(2026, 3, 1, 6, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 6, 30, 0, 0, time.UTC), s.Next(exact))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	s := New(Config{})
	job := &countingJob{name: "sweep"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "other"}, nil), ErrNilSchedule)
}

func TestRunNow(t *testing.T) {
	s := New(Config{})
	job := &countingJob{name: "digest"}
	require.NoError(t, s.Register(job, NewDailySchedule(6, 0)))

	result, err := s.RunNow(context.Background(), "digest")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(1), job.runs.Load())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSchedulerRunsDueJobs(t *testing.T) {
	s := New(Config{TickInterval: 10 * time.Millisecond})
	job := &countingJob{name: "fast"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(20*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.Eventually(t, func() bool {
		return job.runs.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.GreaterOrEqual(t, infos[0].RunCount, int64(2))
}

func TestDisableJob(t *testing.T) {
	s := New(Config{TickInterval: 10 * time.Millisecond})
	job := &countingJob{name: "paused"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(10*time.Millisecond)))
	require.NoError(t, s.DisableJob("paused"))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Equal(t, int32(0), job.runs.Load())
	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
}
