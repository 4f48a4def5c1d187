// Package identity defines the caller identity model and role-based
// authorization rules for the analytics engine. Identity is resolved by an
// external provider; this package only models the result and the checks.
package identity

import (
	"context"

	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// Role is the access role of an authenticated caller.
type Role string

const (
	// RoleStudent may record and read only their own data.
	RoleStudent Role = "student"
	// RoleTeacher may additionally read class-wide progress analytics.
	RoleTeacher Role = "teacher"
	// RoleAdmin may read everything, including usage statistics and anomalies.
	RoleAdmin Role = "admin"
)

// IsValid checks the role is one of the known values.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// String returns the string representation.
func (r Role) String() string { return string(r) }

// ParseRole parses a role string, defaulting unknown values to invalid.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", shared.ErrInvalidRole
	}
	return r, nil
}

// Identity is the resolved identity of a caller.
type Identity struct {
	// StudentID is the subject identifier, set for every role.
	StudentID shared.StudentID
	// Role determines which operations the caller may perform.
	Role Role
	// DisplayName is informational only.
	DisplayName string
}

// IsValid checks the identity carries a subject and a known role.
func (id Identity) IsValid() bool {
	return id.StudentID.IsValid() && id.Role.IsValid()
}

// CanViewStudent reports whether the caller may read data belonging to
// the given student. Teachers and admins may read anyone; students only
// themselves.
func (id Identity) CanViewStudent(studentID shared.StudentID) bool {
	if id.Role == RoleTeacher || id.Role == RoleAdmin {
		return true
	}
	return id.StudentID == studentID
}

// CanViewClassAnalytics reports whether the caller may read class-wide
// progress analytics.
func (id Identity) CanViewClassAnalytics() bool {
	return id.Role == RoleTeacher || id.Role == RoleAdmin
}

// CanViewUsageAnalytics reports whether the caller may read usage
// statistics and anomaly reports.
func (id Identity) CanViewUsageAnalytics() bool {
	return id.Role == RoleAdmin
}

// CanRecordFor reports whether the caller may record events on behalf of
// the given student. Recording is always first-person: no role may write
// another subject's data.
func (id Identity) CanRecordFor(studentID shared.StudentID) bool {
	return id.StudentID == studentID
}

// Resolver resolves a caller credential into an Identity.
// Implementations live in the infrastructure layer.
type Resolver interface {
	// Resolve returns the identity for the given credential token.
	// Returns shared.ErrIdentityUnresolved when the credential is unknown.
	Resolve(ctx context.Context, credential string) (Identity, error)
}

type ctxKey struct{}

// WithIdentity returns a context carrying the resolved identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext retrieves the identity from the context.
// The second return value is false when no identity was resolved.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.IsValid()
}

// Require retrieves the identity from the context or fails with an
// unauthenticated error. Every protected operation calls this before
// touching any store.
func Require(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, shared.ErrIdentityUnresolved
	}
	return id, nil
}
