package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
	"github.com/brightpath-edu/learning-analytics/internal/domain/usage"
)

// ══════════════════════════════════════════════════════════════════════════════
// USAGE EVENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UsageRepository implements usage.Repository for PostgreSQL.
type UsageRepository struct {
	q Querier
}

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(q Querier) *UsageRepository {
	return &UsageRepository{q: q}
}

// Append stores a new usage event.
func (r *UsageRepository) Append(ctx context.Context, e *usage.Event) error {
	query := `
		INSERT INTO usage_events (id, student_id, event_type, model, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.Exec(ctx, query,
		e.ID.String(),
		e.StudentID.String(),
		e.Type.String(),
		e.Model,
		e.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("usage", "Append", shared.ErrAlreadyExists, "usage event already recorded", err)
		}
		return fmt.Errorf("failed to append usage event: %w", err)
	}
	return nil
}

// CountSince returns the global event count at or after the cutoff.
// A zero cutoff means all-time.
func (r *UsageRepository) CountSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	var err error
	if cutoff.IsZero() {
		err = r.q.QueryRow(ctx, `SELECT COUNT(*) FROM usage_events`).Scan(&count)
	} else {
		err = r.q.QueryRow(ctx,
			`SELECT COUNT(*) FROM usage_events WHERE created_at >= $1`, cutoff,
		).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count usage events: %w", err)
	}
	return count, nil
}

// CountsByUserSince returns per-user event counts at or after the cutoff.
func (r *UsageRepository) CountsByUserSince(ctx context.Context, cutoff time.Time) (map[shared.StudentID]int, error) {
	query := `
		SELECT student_id, COUNT(*)
		FROM usage_events
		WHERE $1::timestamptz IS NULL OR created_at >= $1
		GROUP BY student_id
	`

	rows, err := r.q.Query(ctx, query, nullableTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to count usage events by user: %w", err)
	}
	defer rows.Close()

	out := make(map[shared.StudentID]int)
	for rows.Next() {
		var studentID string
		var count int
		if err := rows.Scan(&studentID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan usage count row: %w", err)
		}
		out[shared.StudentID(studentID)] = count
	}
	return out, rows.Err()
}

// CountsByTypeSince returns per-type event counts at or after the cutoff.
func (r *UsageRepository) CountsByTypeSince(ctx context.Context, cutoff time.Time) (map[usage.EventType]int, error) {
	query := `
		SELECT event_type, COUNT(*)
		FROM usage_events
		WHERE $1::timestamptz IS NULL OR created_at >= $1
		GROUP BY event_type
	`

	rows, err := r.q.Query(ctx, query, nullableTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to count usage events by type: %w", err)
	}
	defer rows.Close()

	out := make(map[usage.EventType]int)
	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan usage count row: %w", err)
		}
		out[usage.EventType(eventType)] = count
	}
	return out, rows.Err()
}

// nullableTime maps the zero time to SQL NULL so one query serves both the
// windowed and the all-time variants.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
