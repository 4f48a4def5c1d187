package command

import (
	"context"
	"sort"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/interaction"
	"github.com/brightpath-edu/learning-analytics/internal/domain/mastery"
	"github.com/brightpath-edu/learning-analytics/internal/domain/progress"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
	"github.com/brightpath-edu/learning-analytics/internal/domain/usage"
)

// In-memory fakes backing the command handler tests. The fake TxManager
// passes the same stores to every call; rollback semantics are not
// simulated because the handlers under test treat any error as fatal.

type fakeInteractionRepo struct {
	items []*interaction.Interaction
}

func (r *fakeInteractionRepo) Append(_ context.Context, i *interaction.Interaction) error {
	r.items = append(r.items, i)
	return nil
}

func (r *fakeInteractionRepo) CountByStudent(_ context.Context, studentID shared.StudentID) (int, error) {
	n := 0
	for _, i := range r.items {
		if i.StudentID == studentID {
			n++
		}
	}
	return n, nil
}

func (r *fakeInteractionRepo) ListByStudent(_ context.Context, studentID shared.StudentID, p shared.Pagination) ([]*interaction.Interaction, error) {
	var out []*interaction.Interaction
	for _, i := range r.items {
		if i.StudentID == studentID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

type masteryKey struct {
	student shared.StudentID
	subject string
	topic   string
}

type fakeMasteryRepo struct {
	rows map[masteryKey]*mastery.TopicMastery
}

func newFakeMasteryRepo() *fakeMasteryRepo {
	return &fakeMasteryRepo{rows: make(map[masteryKey]*mastery.TopicMastery)}
}

func (r *fakeMasteryRepo) FindForUpdate(_ context.Context, studentID shared.StudentID, subject, topic string) (*mastery.TopicMastery, error) {
	row, ok := r.rows[masteryKey{studentID, subject, topic}]
	if !ok {
		return nil, shared.ErrMasteryNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *fakeMasteryRepo) Upsert(_ context.Context, m *mastery.TopicMastery) error {
	cp := *m
	r.rows[masteryKey{m.StudentID, m.Subject, m.Topic}] = &cp
	return nil
}

func (r *fakeMasteryRepo) ListByStudent(_ context.Context, studentID shared.StudentID) ([]*mastery.TopicMastery, error) {
	var out []*mastery.TopicMastery
	for _, row := range r.rows {
		if row.StudentID == studentID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeProgressRepo struct {
	rows map[shared.StudentID]*progress.StudentProgress
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{rows: make(map[shared.StudentID]*progress.StudentProgress)}
}

func (r *fakeProgressRepo) Find(_ context.Context, studentID shared.StudentID) (*progress.StudentProgress, error) {
	row, ok := r.rows[studentID]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *fakeProgressRepo) Upsert(_ context.Context, p *progress.StudentProgress) error {
	cp := *p
	r.rows[p.StudentID] = &cp
	return nil
}

func (r *fakeProgressRepo) ListAll(_ context.Context) ([]*progress.StudentProgress, error) {
	var out []*progress.StudentProgress
	for _, row := range r.rows {
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeProgressRepo) ListBehind(_ context.Context, accuracyBelow float64, inactiveSince time.Time) ([]*progress.StudentProgress, error) {
	var out []*progress.StudentProgress
	for _, row := range r.rows {
		if row.AverageAccuracy < accuracyBelow || row.LastActiveAt.Before(inactiveSince) {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeUsageRepo struct {
	items []*usage.Event
}

func (r *fakeUsageRepo) Append(_ context.Context, e *usage.Event) error {
	r.items = append(r.items, e)
	return nil
}

func (r *fakeUsageRepo) CountSince(_ context.Context, cutoff time.Time) (int, error) {
	n := 0
	for _, e := range r.items {
		if cutoff.IsZero() || !e.CreatedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func (r *fakeUsageRepo) CountsByUserSince(_ context.Context, cutoff time.Time) (map[shared.StudentID]int, error) {
	out := make(map[shared.StudentID]int)
	for _, e := range r.items {
		if cutoff.IsZero() || !e.CreatedAt.Before(cutoff) {
			out[e.StudentID]++
		}
	}
	return out, nil
}

func (r *fakeUsageRepo) CountsByTypeSince(_ context.Context, cutoff time.Time) (map[usage.EventType]int, error) {
	out := make(map[usage.EventType]int)
	for _, e := range r.items {
		if cutoff.IsZero() || !e.CreatedAt.Before(cutoff) {
			out[e.Type]++
		}
	}
	return out, nil
}

type fakeWindowTracker struct {
	tracked map[shared.StudentID][]time.Time
}

func newFakeWindowTracker() *fakeWindowTracker {
	return &fakeWindowTracker{tracked: make(map[shared.StudentID][]time.Time)}
}

func (t *fakeWindowTracker) Track(_ context.Context, studentID shared.StudentID, at time.Time) error {
	t.tracked[studentID] = append(t.tracked[studentID], at)
	return nil
}

func (t *fakeWindowTracker) CountsInWindow(_ context.Context, window time.Duration) (map[shared.StudentID]int, error) {
	cutoff := time.Now().UTC().Add(-window)
	out := make(map[shared.StudentID]int)
	for id, times := range t.tracked {
		for _, at := range times {
			if !at.Before(cutoff) {
				out[id]++
			}
		}
	}
	return out, nil
}

func (t *fakeWindowTracker) Prune(_ context.Context, _ time.Duration) error { return nil }

type fakeTxManager struct {
	stores Stores
	failed error
}

func (m *fakeTxManager) InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	if m.failed != nil {
		return m.failed
	}
	return fn(ctx, m.stores)
}

type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func newTestStores() (Stores, *fakeInteractionRepo, *fakeMasteryRepo, *fakeProgressRepo, *fakeUsageRepo) {
	interactions := &fakeInteractionRepo{}
	masteryRepo := newFakeMasteryRepo()
	progressRepo := newFakeProgressRepo()
	usageRepo := &fakeUsageRepo{}
	return Stores{
		Interactions: interactions,
		Mastery:      masteryRepo,
		Progress:     progressRepo,
		Usage:        usageRepo,
	}, interactions, masteryRepo, progressRepo, usageRepo
}
