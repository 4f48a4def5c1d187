// Package usage models platform usage events: lightweight records of
// billable or observable actions, independent of the mastery pipeline.
// They feed operational statistics and anomaly detection only.
package usage

import (
	"context"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// EventType classifies a usage event.
type EventType string

const (
	// TypeChatMessage is a chat message sent to the tutor.
	TypeChatMessage EventType = "chat_message"
	// TypeSTTRequest is a speech-to-text transcription request.
	TypeSTTRequest EventType = "stt_request"
	// TypePDFExtraction is a PDF text extraction request.
	TypePDFExtraction EventType = "pdf_extraction"
	// TypeFileUpload is a file upload.
	TypeFileUpload EventType = "file_upload"
	// TypeImageAnalysis is an image analysis request.
	TypeImageAnalysis EventType = "image_analysis"
)

// AllEventTypes lists every known usage event type.
var AllEventTypes = []EventType{
	TypeChatMessage,
	TypeSTTRequest,
	TypePDFExtraction,
	TypeFileUpload,
	TypeImageAnalysis,
}

// IsValid checks the type is one of the known values.
func (t EventType) IsValid() bool {
	switch t {
	case TypeChatMessage, TypeSTTRequest, TypePDFExtraction, TypeFileUpload, TypeImageAnalysis:
		return true
	}
	return false
}

// String returns the string representation.
func (t EventType) String() string { return string(t) }

// Event is a single recorded usage event.
type Event struct {
	ID        shared.UsageEventID
	StudentID shared.StudentID
	Type      EventType
	// Model names the backing model used for the action, if any.
	Model     string
	CreatedAt time.Time
}

// NewEvent creates a validated usage event with a fresh ID.
func NewEvent(studentID shared.StudentID, eventType EventType, model string) (*Event, error) {
	e := &Event{
		ID:        shared.NewUsageEventID(),
		StudentID: studentID,
		Type:      eventType,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks required fields.
func (e *Event) Validate() error {
	if !e.StudentID.IsValid() {
		return shared.NewDomainError("usage", "Validate", shared.ErrInvalidID, "student ID is required")
	}
	if !e.Type.IsValid() {
		return shared.ErrInvalidUsageEventType
	}
	return nil
}

// Stats holds the aggregated usage counts for one trailing window scope.
type Stats struct {
	// Today is the event count in the trailing 24 hour window.
	Today int
	// Week is the event count in the trailing 7 day window.
	Week int
	// AllTime is the total event count.
	AllTime int
}

// Report is the full usage statistics answer for administrators.
type Report struct {
	// Global holds platform-wide counts.
	Global Stats
	// PerUser holds counts per student, keyed by student ID.
	PerUser map[shared.StudentID]Stats
	// PerTypeToday holds counts per event type in the trailing 24 hour window.
	PerTypeToday map[EventType]int
	// GeneratedAt is when the report was assembled.
	GeneratedAt time.Time
}

// Anomaly flags a user whose event count exceeded the detection threshold
// inside the trailing detection window.
type Anomaly struct {
	StudentID shared.StudentID
	Count     int
}

// Repository is the persistence port for usage events.
type Repository interface {
	// Append stores a new usage event. Events are never updated.
	Append(ctx context.Context, e *Event) error
	// CountSince returns the global event count for events at or after the cutoff.
	// A zero cutoff means all-time.
	CountSince(ctx context.Context, cutoff time.Time) (int, error)
	// CountsByUserSince returns per-user event counts for events at or after
	// the cutoff. A zero cutoff means all-time.
	CountsByUserSince(ctx context.Context, cutoff time.Time) (map[shared.StudentID]int, error)
	// CountsByTypeSince returns per-type event counts for events at or after the cutoff.
	CountsByTypeSince(ctx context.Context, cutoff time.Time) (map[EventType]int, error)
}

// WindowTracker tracks per-user event timestamps inside a short trailing
// window for anomaly detection. Backed by an expiring store so the window
// can be queried without scanning the event log.
type WindowTracker interface {
	// Track records one event occurrence for the user at the given time.
	Track(ctx context.Context, studentID shared.StudentID, at time.Time) error
	// CountsInWindow returns per-user counts of events inside the trailing
	// window ending now.
	CountsInWindow(ctx context.Context, window time.Duration) (map[shared.StudentID]int, error)
	// Prune discards tracked entries older than the retention period.
	Prune(ctx context.Context, retention time.Duration) error
}
