package shared

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the type of a domain event.
type EventType string

// Domain event types.
const (
	EventInteractionRecorded EventType = "interaction.recorded"
	EventUsageEventRecorded  EventType = "usage.event_recorded"
	EventMasteryLevelChanged EventType = "mastery.level_changed"
	EventProgressRecomputed  EventType = "progress.recomputed"
	EventStudentLevelChanged EventType = "progress.level_changed"
	EventUsageAnomalyFound   EventType = "usage.anomaly_found"
)

// Event is the interface all domain events implement.
type Event interface {
	// EventID returns the unique event identifier.
	EventID() string
	// Type returns the event type.
	Type() EventType
	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
	// AggregateID returns the ID of the aggregate that produced the event.
	AggregateID() string
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// BaseEvent provides common event fields.
type BaseEvent struct {
	ID        string
	EventType EventType
	Timestamp time.Time
	Aggregate string
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Aggregate: aggregateID,
	}
}

// EventID returns the unique event identifier.
func (e BaseEvent) EventID() string { return e.ID }

// Type returns the event type.
func (e BaseEvent) Type() EventType { return e.EventType }

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// AggregateID returns the aggregate identifier.
func (e BaseEvent) AggregateID() string { return e.Aggregate }

// InteractionRecordedEvent is published after a learning interaction is persisted.
type InteractionRecordedEvent struct {
	BaseEvent
	StudentID     StudentID
	InteractionID InteractionID
	Subject       string
	Topic         string
	Correct       bool
}

// NewInteractionRecordedEvent creates the event.
func NewInteractionRecordedEvent(studentID StudentID, interactionID InteractionID, subject, topic string, correct bool) *InteractionRecordedEvent {
	return &InteractionRecordedEvent{
		BaseEvent:     NewBaseEvent(EventInteractionRecorded, studentID.String()),
		StudentID:     studentID,
		InteractionID: interactionID,
		Subject:       subject,
		Topic:         topic,
		Correct:       correct,
	}
}

// UsageEventRecordedEvent is published after a usage event is persisted.
type UsageEventRecordedEvent struct {
	BaseEvent
	StudentID StudentID
	UsageID   UsageEventID
	UsageType string
}

// NewUsageEventRecordedEvent creates the event.
func NewUsageEventRecordedEvent(studentID StudentID, usageID UsageEventID, usageType string) *UsageEventRecordedEvent {
	return &UsageEventRecordedEvent{
		BaseEvent: NewBaseEvent(EventUsageEventRecorded, studentID.String()),
		StudentID: studentID,
		UsageID:   usageID,
		UsageType: usageType,
	}
}

// MasteryLevelChangedEvent is published when a topic mastery level transitions.
type MasteryLevelChangedEvent struct {
	BaseEvent
	StudentID StudentID
	Subject   string
	Topic     string
	OldLevel  string
	NewLevel  string
}

// NewMasteryLevelChangedEvent creates the event.
func NewMasteryLevelChangedEvent(studentID StudentID, subject, topic, oldLevel, newLevel string) *MasteryLevelChangedEvent {
	return &MasteryLevelChangedEvent{
		BaseEvent: NewBaseEvent(EventMasteryLevelChanged, studentID.String()),
		StudentID: studentID,
		Subject:   subject,
		Topic:     topic,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// ProgressRecomputedEvent is published after a student's progress summary
// is rebuilt from their mastery rows.
type ProgressRecomputedEvent struct {
	BaseEvent
	StudentID         StudentID
	TotalInteractions int
	OverallAccuracy   float64
	TopicsMastered    int
	Level             string
}

// NewProgressRecomputedEvent creates the event.
func NewProgressRecomputedEvent(studentID StudentID, total int, accuracy float64, mastered int, level string) *ProgressRecomputedEvent {
	return &ProgressRecomputedEvent{
		BaseEvent:         NewBaseEvent(EventProgressRecomputed, studentID.String()),
		StudentID:         studentID,
		TotalInteractions: total,
		OverallAccuracy:   accuracy,
		TopicsMastered:    mastered,
		Level:             level,
	}
}

// StudentLevelChangedEvent is published when a student's overall level
// moves as a result of a progress recompute.
type StudentLevelChangedEvent struct {
	BaseEvent
	StudentID StudentID
	OldLevel  string
	NewLevel  string
}

// NewStudentLevelChangedEvent creates the event.
func NewStudentLevelChangedEvent(studentID StudentID, oldLevel, newLevel string) *StudentLevelChangedEvent {
	return &StudentLevelChangedEvent{
		BaseEvent: NewBaseEvent(EventStudentLevelChanged, studentID.String()),
		StudentID: studentID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// UsageAnomalyFoundEvent is published when a user exceeds the usage
// anomaly threshold inside the trailing detection window.
type UsageAnomalyFoundEvent struct {
	BaseEvent
	StudentID  StudentID
	EventCount int
	Window     time.Duration
}

// NewUsageAnomalyFoundEvent creates the event.
func NewUsageAnomalyFoundEvent(studentID StudentID, count int, window time.Duration) *UsageAnomalyFoundEvent {
	return &UsageAnomalyFoundEvent{
		BaseEvent:  NewBaseEvent(EventUsageAnomalyFound, studentID.String()),
		StudentID:  studentID,
		EventCount: count,
		Window:     window,
	}
}
