// Package mastery maintains per-topic mastery state: one aggregate row per
// (student, subject, topic) with monotonically growing counters and a
// classification level derived purely from accuracy and volume.
package mastery

import (
	"context"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/interaction"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// Level is the mastery classification of one topic.
type Level string

const (
	LevelNotStarted   Level = "not_started"
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
	LevelMastered     Level = "mastered"
)

// IsValid checks the level is one of the known values.
func (l Level) IsValid() bool {
	switch l {
	case LevelNotStarted, LevelBeginner, LevelIntermediate, LevelAdvanced, LevelMastered:
		return true
	}
	return false
}

// String returns the string representation.
func (l Level) String() string { return string(l) }

// TopicMastery is the mutable aggregate tracking one student's standing on
// one topic. Counters only grow; the level can move both up and down as it
// reflects current trailing accuracy, not a ratchet.
type TopicMastery struct {
	StudentID shared.StudentID
	Subject   string
	Topic     string
	// TotalInteractions counts every interaction recorded for this topic.
	TotalInteractions int
	// CorrectAnswers counts interactions answered correctly.
	CorrectAnswers int
	// TotalQuizAttempts counts interactions of the quiz attempt type.
	TotalQuizAttempts int
	// Level is the current classification, recomputed on every update.
	Level Level
	// LastInteractionAt is when the topic was last touched.
	LastInteractionAt time.Time
	// CreatedAt is when the row was first created.
	CreatedAt time.Time
	// UpdatedAt is when the row was last written.
	UpdatedAt time.Time
}

// NewTopicMastery creates an empty mastery row for a topic a student has
// not interacted with yet.
func NewTopicMastery(studentID shared.StudentID, subject, topic string) *TopicMastery {
	now := time.Now().UTC()
	return &TopicMastery{
		StudentID: studentID,
		Subject:   subject,
		Topic:     topic,
		Level:     LevelNotStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Accuracy returns correct answers over total interactions, 0 when the
// row has no interactions.
func (m *TopicMastery) Accuracy() float64 {
	if m.TotalInteractions == 0 {
		return 0
	}
	return float64(m.CorrectAnswers) / float64(m.TotalInteractions)
}

// Validate checks the counter invariants hold.
func (m *TopicMastery) Validate() error {
	if m.CorrectAnswers > m.TotalInteractions || m.TotalQuizAttempts > m.TotalInteractions {
		return shared.ErrInvalidMasteryRow
	}
	if m.CorrectAnswers < 0 || m.TotalInteractions < 0 || m.TotalQuizAttempts < 0 {
		return shared.ErrInvalidMasteryRow
	}
	return nil
}

// Apply folds one interaction outcome into the counters and reclassifies
// the level. Returns the previous level so callers can detect transitions.
func (m *TopicMastery) Apply(itype interaction.Type, correct bool) Level {
	previous := m.Level

	m.TotalInteractions++
	if correct {
		m.CorrectAnswers++
	}
	if itype == interaction.TypeQuizAttempt {
		m.TotalQuizAttempts++
	}

	now := time.Now().UTC()
	m.LastInteractionAt = now
	m.UpdatedAt = now
	m.Level = Classify(m.Accuracy(), m.TotalInteractions)

	return previous
}

// Repository is the persistence port for topic mastery rows.
type Repository interface {
	// FindForUpdate loads the mastery row for one (student, subject, topic),
	// taking a write lock inside the surrounding transaction.
	// Returns shared.ErrNotFound when no row exists yet.
	FindForUpdate(ctx context.Context, studentID shared.StudentID, subject, topic string) (*TopicMastery, error)
	// Upsert inserts or updates a mastery row.
	Upsert(ctx context.Context, m *TopicMastery) error
	// ListByStudent returns all mastery rows for one student.
	ListByStudent(ctx context.Context, studentID shared.StudentID) ([]*TopicMastery, error)
}
