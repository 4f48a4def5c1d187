package postgres

import (
	"context"
	"fmt"

	"github.com/brightpath-edu/learning-analytics/internal/domain/interaction"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERACTION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// InteractionRepository implements interaction.Repository for PostgreSQL.
// The repository is bound to a Querier so the same implementation runs
// against the pool or inside a transaction.
type InteractionRepository struct {
	q Querier
}

// NewInteractionRepository creates a new InteractionRepository.
func NewInteractionRepository(q Querier) *InteractionRepository {
	return &InteractionRepository{q: q}
}

// Append stores a new interaction. The table is append-only; there is no
// update path.
func (r *InteractionRepository) Append(ctx context.Context, i *interaction.Interaction) error {
	query := `
		INSERT INTO learning_interactions (
			id, student_id, subject, grade, topic, interaction_type, is_correct,
			textbook_id, chapter_id, topic_id, conversation_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.q.Exec(ctx, query,
		i.ID.String(),
		i.StudentID.String(),
		i.Subject,
		i.Grade,
		i.Topic,
		i.Type.String(),
		i.IsCorrect,
		i.Refs.TextbookID,
		i.Refs.ChapterID,
		i.Refs.TopicID,
		i.Refs.ConversationID,
		i.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("interaction", "Append", shared.ErrAlreadyExists, "interaction already recorded", err)
		}
		return fmt.Errorf("failed to append interaction: %w", err)
	}

	return nil
}

// CountByStudent returns the number of interactions recorded for a student.
func (r *InteractionRepository) CountByStudent(ctx context.Context, studentID shared.StudentID) (int, error) {
	var count int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM learning_interactions WHERE student_id = $1`,
		studentID.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return count, nil
}

// ListByStudent returns a student's interactions, most recent first.
func (r *InteractionRepository) ListByStudent(ctx context.Context, studentID shared.StudentID, p shared.Pagination) ([]*interaction.Interaction, error) {
	query := `
		SELECT id, student_id, subject, grade, topic, interaction_type, is_correct,
			   textbook_id, chapter_id, topic_id, conversation_id, created_at
		FROM learning_interactions
		WHERE student_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.q.Query(ctx, query, studentID.String(), p.Limit, p.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	items := make([]*interaction.Interaction, 0)
	for rows.Next() {
		var i interaction.Interaction
		var id, studID string
		var itype string
		err := rows.Scan(
			&id, &studID, &i.Subject, &i.Grade, &i.Topic, &itype, &i.IsCorrect,
			&i.Refs.TextbookID, &i.Refs.ChapterID, &i.Refs.TopicID, &i.Refs.ConversationID,
			&i.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		i.ID = shared.InteractionID(id)
		i.StudentID = shared.StudentID(studID)
		i.Type = interaction.Type(itype)
		items = append(items, &i)
	}

	return items, rows.Err()
}
