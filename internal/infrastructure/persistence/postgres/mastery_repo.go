package postgres

import (
	"context"
	"fmt"

	"github.com/brightpath-edu/learning-analytics/internal/domain/mastery"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOPIC MASTERY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MasteryRepository implements mastery.Repository for PostgreSQL.
type MasteryRepository struct {
	q Querier
}

// NewMasteryRepository creates a new MasteryRepository.
func NewMasteryRepository(q Querier) *MasteryRepository {
	return &MasteryRepository{q: q}
}

const masteryColumns = `student_id, subject, topic, total_interactions, correct_answers,
	total_quiz_attempts, mastery_level, last_interaction_at, created_at, updated_at`

// FindForUpdate loads one mastery row with a row lock. Must run inside a
// transaction; the lock serializes concurrent updates for the same topic.
func (r *MasteryRepository) FindForUpdate(ctx context.Context, studentID shared.StudentID, subject, topic string) (*mastery.TopicMastery, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM topic_mastery
		WHERE student_id = $1 AND subject = $2 AND topic = $3
		FOR UPDATE
	`, masteryColumns)

	row := r.q.QueryRow(ctx, query, studentID.String(), subject, topic)
	m, err := scanMastery(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMasteryNotFound
		}
		return nil, fmt.Errorf("failed to load mastery row: %w", err)
	}
	return m, nil
}

// Upsert inserts or updates a mastery row.
func (r *MasteryRepository) Upsert(ctx context.Context, m *mastery.TopicMastery) error {
	if err := m.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO topic_mastery (
			student_id, subject, topic, total_interactions, correct_answers,
			total_quiz_attempts, mastery_level, last_interaction_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (student_id, subject, topic) DO UPDATE SET
			total_interactions = EXCLUDED.total_interactions,
			correct_answers = EXCLUDED.correct_answers,
			total_quiz_attempts = EXCLUDED.total_quiz_attempts,
			mastery_level = EXCLUDED.mastery_level,
			last_interaction_at = EXCLUDED.last_interaction_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.Exec(ctx, query,
		m.StudentID.String(),
		m.Subject,
		m.Topic,
		m.TotalInteractions,
		m.CorrectAnswers,
		m.TotalQuizAttempts,
		m.Level.String(),
		m.LastInteractionAt,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert mastery row: %w", err)
	}
	return nil
}

// ListByStudent returns all mastery rows for one student.
func (r *MasteryRepository) ListByStudent(ctx context.Context, studentID shared.StudentID) ([]*mastery.TopicMastery, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM topic_mastery
		WHERE student_id = $1
		ORDER BY subject, topic
	`, masteryColumns)

	rows, err := r.q.Query(ctx, query, studentID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list mastery rows: %w", err)
	}
	defer rows.Close()

	items := make([]*mastery.TopicMastery, 0)
	for rows.Next() {
		m, err := scanMastery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mastery row: %w", err)
		}
		items = append(items, m)
	}

	return items, rows.Err()
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMastery(row rowScanner) (*mastery.TopicMastery, error) {
	var m mastery.TopicMastery
	var studentID, level string
	err := row.Scan(
		&studentID, &m.Subject, &m.Topic, &m.TotalInteractions, &m.CorrectAnswers,
		&m.TotalQuizAttempts, &level, &m.LastInteractionAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.StudentID = shared.StudentID(studentID)
	m.Level = mastery.Level(level)
	return &m, nil
}
