package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleStudent.IsValid())
	assert.True(t, RoleTeacher.IsValid())
	assert.True(t, RoleAdmin.IsValid())
	assert.False(t, Role("superuser").IsValid())
	assert.False(t, Role("").IsValid())
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("teacher")
	assert.NoError(t, err)
	assert.Equal(t, RoleTeacher, r)

	_, err = ParseRole("root")
	assert.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestCanViewStudent(t *testing.T) {
	self := shared.StudentID("student-1")
	other := shared.StudentID("student-2")

	student := Identity{StudentID: self, Role: RoleStudent}
	assert.True(t, student.CanViewStudent(self))
	assert.False(t, student.CanViewStudent(other))

	teacher := Identity{StudentID: "teacher-1", Role: RoleTeacher}
	assert.True(t, teacher.CanViewStudent(self))
	assert.True(t, teacher.CanViewStudent(other))

	admin := Identity{StudentID: "admin-1", Role: RoleAdmin}
	assert.True(t, admin.CanViewStudent(other))
}

func TestCanViewClassAnalytics(t *testing.T) {
	assert.False(t, Identity{StudentID: "s", Role: RoleStudent}.CanViewClassAnalytics())
	assert.True(t, Identity{StudentID: "t", Role: RoleTeacher}.CanViewClassAnalytics())
	assert.True(t, Identity{StudentID: "a", Role: RoleAdmin}.CanViewClassAnalytics())
}

func TestCanViewUsageAnalytics(t *testing.T) {
	assert.False(t, Identity{StudentID: "s", Role: RoleStudent}.CanViewUsageAnalytics())
	assert.False(t, Identity{StudentID: "t", Role: RoleTeacher}.CanViewUsageAnalytics())
	assert.True(t, Identity{StudentID: "a", Role: RoleAdmin}.CanViewUsageAnalytics())
}

func TestCanRecordForIsFirstPersonOnly(t *testing.T) {
	// Even admins may not write another subject's data.
	admin := Identity{StudentID: "admin-1", Role: RoleAdmin}
	assert.True(t, admin.CanRecordFor("admin-1"))
	assert.False(t, admin.CanRecordFor("student-1"))
}

func TestRequireFromContext(t *testing.T) {
	_, err := Require(context.Background())
	assert.Error(t, err)
	assert.True(t, shared.IsUnauthenticated(err))

	id := Identity{StudentID: "student-1", Role: RoleStudent}
	ctx := WithIdentity(context.Background(), id)

	got, err := Require(ctx)
	assert.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestRequireRejectsInvalidIdentity(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{Role: Role("ghost")})
	_, err := Require(ctx)
	assert.Error(t, err)
}
