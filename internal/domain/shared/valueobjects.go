package shared

import (
	"time"

	"github.com/google/uuid"
)

// StudentID uniquely identifies a student. It is the authenticated subject
// identifier issued by the identity provider, not a database key.
type StudentID string

// NewStudentID generates a new random student ID.
func NewStudentID() StudentID {
	return StudentID(uuid.New().String())
}

// String returns the string representation.
func (id StudentID) String() string {
	return string(id)
}

// IsValid checks if the ID is non-empty.
func (id StudentID) IsValid() bool {
	return len(id) > 0
}

// InteractionID uniquely identifies a recorded learning interaction.
type InteractionID string

// NewInteractionID generates a new random interaction ID.
func NewInteractionID() InteractionID {
	return InteractionID(uuid.New().String())
}

// String returns the string representation.
func (id InteractionID) String() string {
	return string(id)
}

// IsValid checks if the ID is non-empty.
func (id InteractionID) IsValid() bool {
	return len(id) > 0
}

// UsageEventID uniquely identifies a recorded usage event.
type UsageEventID string

// NewUsageEventID generates a new random usage event ID.
func NewUsageEventID() UsageEventID {
	return UsageEventID(uuid.New().String())
}

// String returns the string representation.
func (id UsageEventID) String() string {
	return string(id)
}

// IsValid checks if the ID is non-empty.
func (id UsageEventID) IsValid() bool {
	return len(id) > 0
}

// TimeRange represents a time period for queries.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange creates a new time range.
func NewTimeRange(start, end time.Time) TimeRange {
	return TimeRange{Start: start, End: end}
}

// Today returns a time range for the current calendar day (UTC).
func Today() TimeRange {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return TimeRange{Start: start, End: now}
}

// Last24Hours returns a trailing 24 hour range ending now.
func Last24Hours() TimeRange {
	now := time.Now().UTC()
	return TimeRange{Start: now.Add(-24 * time.Hour), End: now}
}

// LastNDays returns a trailing range of n days ending now.
func LastNDays(n int) TimeRange {
	now := time.Now().UTC()
	return TimeRange{Start: now.AddDate(0, 0, -n), End: now}
}

// Contains checks if a time falls within the range.
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && !t.After(tr.End)
}

// Duration returns the length of the range.
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Pagination represents pagination parameters for list queries.
type Pagination struct {
	Limit  int
	Offset int
}

// DefaultPagination returns sensible defaults.
func DefaultPagination() Pagination {
	return Pagination{Limit: 50, Offset: 0}
}

// NewPagination creates pagination with validation.
func NewPagination(limit, offset int) Pagination {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return Pagination{Limit: limit, Offset: offset}
}
