package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

func boolPtr(b bool) *bool { return &b }

func TestNewInteraction(t *testing.T) {
	i, err := New("student-1", "mathematics", "7", "fractions", TypeQuestion, boolPtr(true), Refs{})
	assert.NoError(t, err)
	assert.True(t, i.ID.IsValid())
	assert.Equal(t, shared.StudentID("student-1"), i.StudentID)
	assert.Equal(t, "mathematics", i.Subject)
	assert.True(t, i.Correct())
	assert.False(t, i.CreatedAt.IsZero())
}

func TestNewInteractionTrimsWhitespace(t *testing.T) {
	i, err := New("student-1", "  physics ", " 9 ", " optics ", TypeExplanationRequest, nil, Refs{})
	assert.NoError(t, err)
	assert.Equal(t, "physics", i.Subject)
	assert.Equal(t, "9", i.Grade)
	assert.Equal(t, "optics", i.Topic)
}

func TestNewInteractionValidation(t *testing.T) {
	tests := []struct {
		name      string
		studentID shared.StudentID
		subject   string
		grade     string
		topic     string
		itype     Type
	}{
		{"missing student", "", "math", "7", "fractions", TypeQuestion},
		{"missing subject", "s1", "", "7", "fractions", TypeQuestion},
		{"missing grade", "s1", "math", "", "fractions", TypeQuestion},
		{"missing topic", "s1", "math", "7", "", TypeQuestion},
		{"blank topic", "s1", "math", "7", "   ", TypeQuestion},
		{"unknown type", "s1", "math", "7", "fractions", Type("homework")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.studentID, tt.subject, tt.grade, tt.topic, tt.itype, nil, Refs{})
			assert.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestCorrectHandlesAbsentOutcome(t *testing.T) {
	ungraded, err := New("s1", "math", "7", "fractions", TypeExplanationRequest, nil, Refs{})
	assert.NoError(t, err)
	assert.False(t, ungraded.Correct())

	wrong, err := New("s1", "math", "7", "fractions", TypeQuizAttempt, boolPtr(false), Refs{})
	assert.NoError(t, err)
	assert.False(t, wrong.Correct())
}

func TestTypeIsValid(t *testing.T) {
	assert.True(t, TypeQuestion.IsValid())
	assert.True(t, TypeQuizAttempt.IsValid())
	assert.True(t, TypeProblemSolving.IsValid())
	assert.False(t, Type("").IsValid())
	assert.False(t, Type("review").IsValid())
}
