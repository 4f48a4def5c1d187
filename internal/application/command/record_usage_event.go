package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
	"github.com/brightpath-edu/learning-analytics/internal/domain/usage"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD USAGE EVENT COMMAND
// Records a platform usage event. Independent of the mastery pipeline; the
// event only feeds usage statistics and anomaly detection.
// ══════════════════════════════════════════════════════════════════════════════

// RecordUsageEventCommand contains the data to record a usage event.
type RecordUsageEventCommand struct {
	// StudentID is the subject the event belongs to. Must match the
	// authenticated caller.
	StudentID string

	// Type is the usage event type.
	Type usage.EventType

	// Model names the backing model used for the action, if any.
	Model string
}

// Validate validates the command.
func (c RecordUsageEventCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("record_usage_event: student_id is required")
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("record_usage_event: unknown event type: %s", c.Type)
	}
	return nil
}

// RecordUsageEventResult contains the result of recording a usage event.
type RecordUsageEventResult struct {
	// UsageID is the ID of the stored event.
	UsageID shared.UsageEventID

	// RecordedAt is when the event was recorded.
	RecordedAt time.Time
}

// RecordUsageEventHandler handles the RecordUsageEventCommand.
type RecordUsageEventHandler struct {
	tx        TxManager
	tracker   usage.WindowTracker
	publisher shared.EventPublisher
}

// NewRecordUsageEventHandler creates a new RecordUsageEventHandler.
func NewRecordUsageEventHandler(tx TxManager, tracker usage.WindowTracker, publisher shared.EventPublisher) *RecordUsageEventHandler {
	return &RecordUsageEventHandler{
		tx:        tx,
		tracker:   tracker,
		publisher: publisher,
	}
}

// Handle executes the record usage event command.
func (h *RecordUsageEventHandler) Handle(ctx context.Context, cmd RecordUsageEventCommand) (*RecordUsageEventResult, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_usage_event: validation failed: %w", err)
	}

	studentID := shared.StudentID(cmd.StudentID)
	if !caller.CanRecordFor(studentID) {
		return nil, shared.ErrOwnershipViolation
	}

	event, err := usage.NewEvent(studentID, cmd.Type, cmd.Model)
	if err != nil {
		return nil, err
	}

	err = h.tx.InTx(ctx, func(ctx context.Context, s Stores) error {
		if err := s.Usage.Append(ctx, event); err != nil {
			return fmt.Errorf("record_usage_event: failed to append event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The anomaly window lives in a separate expiring store; a tracking
	// failure must not fail the recorded event.
	if h.tracker != nil {
		_ = h.tracker.Track(ctx, studentID, event.CreatedAt)
	}

	if h.publisher != nil {
		_ = h.publisher.Publish(shared.NewUsageEventRecordedEvent(studentID, event.ID, event.Type.String()))
	}

	return &RecordUsageEventResult{
		UsageID:    event.ID,
		RecordedAt: event.CreatedAt,
	}, nil
}
