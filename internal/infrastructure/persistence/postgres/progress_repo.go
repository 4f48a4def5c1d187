package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/progress"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	q Querier
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(q Querier) *ProgressRepository {
	return &ProgressRepository{q: q}
}

const progressColumns = `student_id, total_interactions, average_accuracy, topics_mastered,
	current_level, current_streak, last_active_at, created_at, updated_at`

// Find loads the progress row for one student.
func (r *ProgressRepository) Find(ctx context.Context, studentID shared.StudentID) (*progress.StudentProgress, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_progress WHERE student_id = $1`, progressColumns)

	row := r.q.QueryRow(ctx, query, studentID.String())
	p, err := scanProgress(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to load progress row: %w", err)
	}
	return p, nil
}

// Upsert inserts or updates a progress row.
func (r *ProgressRepository) Upsert(ctx context.Context, p *progress.StudentProgress) error {
	query := `
		INSERT INTO student_progress (
			student_id, total_interactions, average_accuracy, topics_mastered,
			current_level, current_streak, last_active_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (student_id) DO UPDATE SET
			total_interactions = EXCLUDED.total_interactions,
			average_accuracy = EXCLUDED.average_accuracy,
			topics_mastered = EXCLUDED.topics_mastered,
			current_level = EXCLUDED.current_level,
			last_active_at = EXCLUDED.last_active_at,
			updated_at = EXCLUDED.updated_at
	`
	// current_streak is deliberately absent from the update set: it is
	// written once on creation and never recomputed.

	_, err := r.q.Exec(ctx, query,
		p.StudentID.String(),
		p.TotalInteractions,
		p.AverageAccuracy,
		p.TopicsMastered,
		p.Level.String(),
		p.CurrentStreak,
		p.LastActiveAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress row: %w", err)
	}
	return nil
}

// ListAll returns every progress row.
func (r *ProgressRepository) ListAll(ctx context.Context) ([]*progress.StudentProgress, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_progress ORDER BY last_active_at DESC`, progressColumns)

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress rows: %w", err)
	}
	defer rows.Close()

	items := make([]*progress.StudentProgress, 0)
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress row: %w", err)
		}
		items = append(items, p)
	}

	return items, rows.Err()
}

// ListBehind returns progress rows matching the falling-behind criteria:
// accuracy strictly below the threshold OR inactive since the cutoff.
func (r *ProgressRepository) ListBehind(ctx context.Context, accuracyBelow float64, inactiveSince time.Time) ([]*progress.StudentProgress, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM student_progress
		WHERE average_accuracy < $1 OR last_active_at < $2
		ORDER BY last_active_at DESC
	`, progressColumns)

	rows, err := r.q.Query(ctx, query, accuracyBelow, inactiveSince)
	if err != nil {
		return nil, fmt.Errorf("failed to list students behind: %w", err)
	}
	defer rows.Close()

	items := make([]*progress.StudentProgress, 0)
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress row: %w", err)
		}
		items = append(items, p)
	}

	return items, rows.Err()
}

func scanProgress(row rowScanner) (*progress.StudentProgress, error) {
	var p progress.StudentProgress
	var studentID, level string
	err := row.Scan(
		&studentID, &p.TotalInteractions, &p.AverageAccuracy, &p.TopicsMastered,
		&level, &p.CurrentStreak, &p.LastActiveAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.StudentID = shared.StudentID(studentID)
	p.Level = progress.Level(level)
	return &p, nil
}
