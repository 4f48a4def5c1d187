// Package interaction models individual learning interactions: a single
// question, quiz attempt, or explanation a student worked through, with its
// outcome. Interactions are append-only; they are the raw input every
// mastery and progress computation is derived from.
package interaction

import (
	"context"
	"strings"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// Type classifies how the interaction was produced.
type Type string

const (
	// TypeQuestion is a free-form question the student answered.
	TypeQuestion Type = "question"
	// TypeQuizAttempt is an answer given inside a quiz.
	TypeQuizAttempt Type = "quiz_attempt"
	// TypeExplanationRequest is a request for an explanation. Not gradable.
	TypeExplanationRequest Type = "explanation_request"
	// TypeProblemSolving is a guided problem-solving session step.
	TypeProblemSolving Type = "problem_solving"
)

// IsValid checks the type is one of the known values.
func (t Type) IsValid() bool {
	switch t {
	case TypeQuestion, TypeQuizAttempt, TypeExplanationRequest, TypeProblemSolving:
		return true
	}
	return false
}

// String returns the string representation.
func (t Type) String() string { return string(t) }

// Refs holds optional content references attached to an interaction.
type Refs struct {
	TextbookID     string
	ChapterID      string
	TopicID        string
	ConversationID string
}

// Interaction is a single recorded learning interaction.
// Immutable once written.
type Interaction struct {
	ID        shared.InteractionID
	StudentID shared.StudentID
	// Subject is the course subject name, e.g. "mathematics".
	Subject string
	// Grade is the grade level the material belongs to.
	Grade string
	// Topic is the topic title within the subject.
	Topic string
	// Type classifies the interaction.
	Type Type
	// IsCorrect reports whether the student answered correctly.
	// Nil for non-gradable interaction types.
	IsCorrect *bool
	// Refs carries optional content references.
	Refs Refs
	// CreatedAt is when the interaction was recorded.
	CreatedAt time.Time
}

// New creates a validated interaction with a fresh ID.
func New(studentID shared.StudentID, subject, grade, topic string, itype Type, isCorrect *bool, refs Refs) (*Interaction, error) {
	i := &Interaction{
		ID:        shared.NewInteractionID(),
		StudentID: studentID,
		Subject:   strings.TrimSpace(subject),
		Grade:     strings.TrimSpace(grade),
		Topic:     strings.TrimSpace(topic),
		Type:      itype,
		IsCorrect: isCorrect,
		Refs:      refs,
		CreatedAt: time.Now().UTC(),
	}
	if err := i.Validate(); err != nil {
		return nil, err
	}
	return i, nil
}

// Validate checks all required fields are present and well-formed.
func (i *Interaction) Validate() error {
	if !i.StudentID.IsValid() {
		return shared.NewDomainError("interaction", "Validate", shared.ErrInvalidID, "student ID is required")
	}
	if i.Subject == "" {
		return shared.ErrMissingSubject
	}
	if i.Grade == "" {
		return shared.ErrMissingGrade
	}
	if i.Topic == "" {
		return shared.ErrMissingTopic
	}
	if !i.Type.IsValid() {
		return shared.ErrInvalidInteractionType
	}
	return nil
}

// Correct reports whether the interaction was answered correctly.
// Interactions without a grading outcome count as not correct.
func (i *Interaction) Correct() bool {
	return i.IsCorrect != nil && *i.IsCorrect
}

// Repository is the persistence port for interactions.
type Repository interface {
	// Append stores a new interaction. Interactions are never updated.
	Append(ctx context.Context, i *Interaction) error
	// CountByStudent returns the number of interactions recorded for a student.
	CountByStudent(ctx context.Context, studentID shared.StudentID) (int, error)
	// ListByStudent returns a student's interactions, most recent first.
	ListByStudent(ctx context.Context, studentID shared.StudentID, p shared.Pagination) ([]*Interaction, error)
}
