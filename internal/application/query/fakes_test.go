package query

import (
	"context"
	"sort"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/interaction"
	"github.com/brightpath-edu/learning-analytics/internal/domain/mastery"
	"github.com/brightpath-edu/learning-analytics/internal/domain/progress"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
	"github.com/brightpath-edu/learning-analytics/internal/domain/usage"
)

func ctxWithRole(id string, role identity.Role) context.Context {
	return identity.WithIdentity(context.Background(), identity.Identity{
		StudentID: shared.StudentID(id),
		Role:      role,
	})
}

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
	if p.Offset < len(out) {
		out = out[p.Offset:]
	} else {
		out = nil
	}
	if len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

type fakeMasteryRepo struct {
	rows []*mastery.TopicMastery
}

func (r *fakeMasteryRepo) FindForUpdate(_ context.Context, studentID shared.StudentID, subject, topic string) (*mastery.TopicMastery, error) {
	for _, row := range r.rows {
		if row.StudentID == studentID && row.Subject == subject && row.Topic == topic {
			return row, nil
		}
	}
	return nil, shared.ErrMasteryNotFound
}

func (r *fakeMasteryRepo) Upsert(_ context.Context, m *mastery.TopicMastery) error {
	r.rows = append(r.rows, m)
	return nil
}

func (r *fakeMasteryRepo) ListByStudent(_ context.Context, studentID shared.StudentID) ([]*mastery.TopicMastery, error) {
	var out []*mastery.TopicMastery
	for _, row := range r.rows {
		if row.StudentID == studentID {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeProgressRepo struct {
	rows []*progress.StudentProgress
}

func (r *fakeProgressRepo) Find(_ context.Context, studentID shared.StudentID) (*progress.StudentProgress, error) {
	for _, row := range r.rows {
		if row.StudentID == studentID {
			return row, nil
		}
	}
	return nil, shared.ErrProgressNotFound
}

func (r *fakeProgressRepo) Upsert(_ context.Context, p *progress.StudentProgress) error {
	r.rows = append(r.rows, p)
	return nil
}

func (r *fakeProgressRepo) ListAll(_ context.Context) ([]*progress.StudentProgress, error) {
	return r.rows, nil
}

func (r *fakeProgressRepo) ListBehind(_ context.Context, accuracyBelow float64, inactiveSince time.Time) ([]*progress.StudentProgress, error) {
	var out []*progress.StudentProgress
	for _, row := range r.rows {
		if row.AverageAccuracy < accuracyBelow || row.LastActiveAt.Before(inactiveSince) {
			out = append(out, row)
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
	counts map[shared.StudentID]int
}

func (t *fakeWindowTracker) Track(_ context.Context, studentID shared.StudentID, _ time.Time) error {
	if t.counts == nil {
		t.counts = make(map[shared.StudentID]int)
	}
	t.counts[studentID]++
	return nil
}

func (t *fakeWindowTracker) CountsInWindow(_ context.Context, _ time.Duration) (map[shared.StudentID]int, error) {
	return t.counts, nil
}

func (t *fakeWindowTracker) Prune(_ context.Context, _ time.Duration) error { return nil }

func usageEventAt(studentID string, eventType usage.EventType, at time.Time) *usage.Event {
	return &usage.Event{
		ID:        shared.NewUsageEventID(),
		StudentID: shared.StudentID(studentID),
		Type:      eventType,
		CreatedAt: at,
	}
}
