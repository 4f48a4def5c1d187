package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/progress"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

func progressRow(studentID string, accuracy float64, lastActive time.Time) *progress.StudentProgress {
	return &progress.StudentProgress{
		StudentID:       shared.StudentID(studentID),
		AverageAccuracy: accuracy,
		LastActiveAt:    lastActive,
		Level:           progress.LevelBeginner,
	}
}

func TestGetStudentsBehind(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeProgressRepo{rows: []*progress.StudentProgress{
		progressRow("low-accuracy", 0.30, now),                     // behind: accuracy
		progressRow("inactive", 0.90, now.AddDate(0, 0, -10)),      // behind: inactivity
		progressRow("both", 0.10, now.AddDate(0, 0, -30)),          // behind: both
		progressRow("healthy", 0.85, now.Add(-2*time.Hour)),        // fine
		progressRow("at-threshold", 0.50, now.Add(-1*time.Minute)), // exactly 0.50 is fine
	}}
	h := NewGetStudentsBehindHandler(repo, DefaultStudentsBehindConfig())

	result, err := h.Handle(ctxWithRole("teacher-1", identity.RoleTeacher), GetStudentsBehindQuery{})
	assert.NoError(t, err)
	assert.Equal(t, 3, result.TotalCount)

	byID := make(map[string]BehindStudentDTO)
	for _, s := range result.Students {
		byID[s.StudentID] = s
	}

	assert.True(t, byID["low-accuracy"].LowAccuracy)
	assert.False(t, byID["low-accuracy"].Inactive)

	assert.False(t, byID["inactive"].LowAccuracy)
	assert.True(t, byID["inactive"].Inactive)
	assert.GreaterOrEqual(t, byID["inactive"].DaysInactive, 9)

	assert.True(t, byID["both"].LowAccuracy)
	assert.True(t, byID["both"].Inactive)

	assert.NotContains(t, byID, "healthy")
	assert.NotContains(t, byID, "at-threshold")
}

func TestGetStudentsBehindDeniedForStudents(t *testing.T) {
	h := NewGetStudentsBehindHandler(&fakeProgressRepo{}, DefaultStudentsBehindConfig())

	_, err := h.Handle(ctxWithRole("student-1", identity.RoleStudent), GetStudentsBehindQuery{})
	assert.Error(t, err)
	assert.True(t, shared.IsForbidden(err))
}

func TestGetStudentsBehindAllowedForAdmin(t *testing.T) {
	h := NewGetStudentsBehindHandler(&fakeProgressRepo{}, DefaultStudentsBehindConfig())

	result, err := h.Handle(ctxWithRole("admin-1", identity.RoleAdmin), GetStudentsBehindQuery{})
	assert.NoError(t, err)
	assert.Equal(t, 0, result.TotalCount)
}
