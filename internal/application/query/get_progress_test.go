package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/interaction"
	"github.com/brightpath-edu/learning-analytics/internal/domain/mastery"
	"github.com/brightpath-edu/learning-analytics/internal/domain/progress"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

func TestGetProgress(t *testing.T) {
	repo := &fakeProgressRepo{rows: []*progress.StudentProgress{
		{
			StudentID:         "student-1",
			TotalInteractions: 42,
			AverageAccuracy:   0.71,
			TopicsMastered:    3,
			Level:             progress.LevelIntermediate,
			CurrentStreak:     1,
			LastActiveAt:      time.Now().UTC(),
		},
	}}
	h := NewGetProgressHandler(repo)

	result, err := h.Handle(ctxWithRole("student-1", identity.RoleStudent), GetProgressQuery{})
	assert.NoError(t, err)
	assert.NotNil(t, result.Progress)
	assert.Equal(t, 42, result.Progress.TotalInteractions)
	assert.Equal(t, "intermediate", result.Progress.Level)
}

func TestGetProgressNoneYet(t *testing.T) {
	h := NewGetProgressHandler(&fakeProgressRepo{})

	result, err := h.Handle(ctxWithRole("student-1", identity.RoleStudent), GetProgressQuery{})
	assert.NoError(t, err)
	assert.Nil(t, result.Progress)
}

func TestGetClassProgress(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeProgressRepo{rows: []*progress.StudentProgress{
		progressRow("student-1", 0.90, now.Add(-1*time.Hour)),
		progressRow("student-2", 0.40, now),
	}}
	h := NewGetClassProgressHandler(repo)

	result, err := h.Handle(ctxWithRole("teacher-1", identity.RoleTeacher), GetClassProgressQuery{})
	assert.NoError(t, err)
	assert.Equal(t, 2, result.TotalCount)
	// Default sort is most recently active first.
	assert.Equal(t, "student-2", result.Students[0].StudentID)

	byAccuracy, err := h.Handle(ctxWithRole("teacher-1", identity.RoleTeacher), GetClassProgressQuery{SortBy: "accuracy"})
	assert.NoError(t, err)
	assert.Equal(t, "student-1", byAccuracy.Students[0].StudentID)
}

func TestGetClassProgressDeniedForStudents(t *testing.T) {
	h := NewGetClassProgressHandler(&fakeProgressRepo{})

	_, err := h.Handle(ctxWithRole("student-1", identity.RoleStudent), GetClassProgressQuery{})
	assert.Error(t, err)
	assert.True(t, shared.IsForbidden(err))
}

func TestGetInteractions(t *testing.T) {
	repo := &fakeInteractionRepo{}
	for i := 0; i < 5; i++ {
		correct := i%2 == 0
		inter, err := interaction.New("student-1", "math", "7", "fractions", interaction.TypeQuestion, &correct, interaction.Refs{})
		assert.NoError(t, err)
		inter.CreatedAt = time.Now().UTC().Add(time.Duration(-i) * time.Minute)
		assert.NoError(t, repo.Append(ctxWithRole("student-1", identity.RoleStudent), inter))
	}

	h := NewGetInteractionsHandler(repo)
	result, err := h.Handle(ctxWithRole("student-1", identity.RoleStudent), GetInteractionsQuery{Limit: 3})
	assert.NoError(t, err)
	assert.Len(t, result.Interactions, 3)
	assert.Equal(t, 5, result.TotalCount)

	// Most recent first.
	assert.True(t, result.Interactions[0].CreatedAt.After(result.Interactions[1].CreatedAt))
}

func TestGetInteractionsDefaultLimit(t *testing.T) {
	_ = NewGetInteractionsHandler(&fakeInteractionRepo{})

	q := GetInteractionsQuery{}
	assert.NoError(t, q.Validate())
	assert.Equal(t, 50, q.Limit)
}

func TestGetMastery(t *testing.T) {
	repo := &fakeMasteryRepo{rows: []*mastery.TopicMastery{
		masteryRow("student-1", "fractions", 10, 9),
		masteryRow("student-1", "decimals", 4, 1),
	}}
	h := NewGetMasteryHandler(repo)

	result, err := h.Handle(ctxWithRole("student-1", identity.RoleStudent), GetMasteryQuery{})
	assert.NoError(t, err)
	assert.Len(t, result.Topics, 2)
	// Strongest first.
	assert.Equal(t, "fractions", result.Topics[0].Topic)
	assert.InDelta(t, 0.9, result.Topics[0].Accuracy, 1e-9)
}
