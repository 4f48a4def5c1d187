package mastery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brightpath-edu/learning-analytics/internal/domain/interaction"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		accuracy float64
		total    int
		want     Level
	}{
		{"no interactions", 0, 0, LevelNotStarted},
		{"single wrong answer", 0, 1, LevelBeginner},
		{"single correct answer", 1.0, 1, LevelBeginner},
		{"perfect but low volume", 1.0, 9, LevelAdvanced},
		{"mastered at exact boundary", 0.90, 10, LevelMastered},
		{"just below mastered accuracy", 0.899999, 10, LevelAdvanced},
		{"high accuracy high volume", 0.95, 40, LevelMastered},
		{"advanced at exact boundary", 0.75, 7, LevelAdvanced},
		{"advanced accuracy low volume", 0.80, 6, LevelIntermediate},
		{"intermediate at exact boundary", 0.50, 4, LevelIntermediate},
		{"intermediate accuracy low volume", 0.60, 3, LevelBeginner},
		{"below intermediate accuracy", 0.49, 20, LevelBeginner},
		{"zero accuracy high volume", 0, 50, LevelBeginner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.accuracy, tt.total))
		})
	}
}

func TestLevelCanFall(t *testing.T) {
	// 10 correct out of 10 is mastered; three wrong answers in a row
	// drop the accuracy to 10/13 and the level back to advanced.
	m := NewTopicMastery("student-1", "mathematics", "fractions")
	for i := 0; i < 10; i++ {
		m.Apply(interaction.TypeQuestion, true)
	}
	assert.Equal(t, LevelMastered, m.Level)

	for i := 0; i < 3; i++ {
		m.Apply(interaction.TypeQuestion, false)
	}
	assert.Equal(t, 13, m.TotalInteractions)
	assert.Equal(t, 10, m.CorrectAnswers)
	assert.Equal(t, LevelAdvanced, m.Level)
}

func TestApplyUpdatesCounters(t *testing.T) {
	m := NewTopicMastery("student-1", "physics", "optics")
	assert.Equal(t, LevelNotStarted, m.Level)

	prev := m.Apply(interaction.TypeQuizAttempt, true)
	assert.Equal(t, LevelNotStarted, prev)
	assert.Equal(t, 1, m.TotalInteractions)
	assert.Equal(t, 1, m.CorrectAnswers)
	assert.Equal(t, 1, m.TotalQuizAttempts)
	assert.Equal(t, LevelBeginner, m.Level)
	assert.False(t, m.LastInteractionAt.IsZero())

	m.Apply(interaction.TypeQuestion, false)
	assert.Equal(t, 2, m.TotalInteractions)
	assert.Equal(t, 1, m.CorrectAnswers)
	assert.Equal(t, 1, m.TotalQuizAttempts)
}

func TestAccuracy(t *testing.T) {
	m := NewTopicMastery("student-1", "math", "algebra")
	assert.Equal(t, 0.0, m.Accuracy())

	m.TotalInteractions = 4
	m.CorrectAnswers = 3
	assert.InDelta(t, 0.75, m.Accuracy(), 1e-9)
}

func TestValidate(t *testing.T) {
	m := NewTopicMastery("student-1", "math", "algebra")
	assert.NoError(t, m.Validate())

	m.CorrectAnswers = 5
	m.TotalInteractions = 4
	assert.Error(t, m.Validate())

	m = NewTopicMastery("student-1", "math", "algebra")
	m.TotalQuizAttempts = 2
	m.TotalInteractions = 1
	assert.Error(t, m.Validate())
}
