package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/interaction"
	"github.com/brightpath-edu/learning-analytics/internal/domain/mastery"
	"github.com/brightpath-edu/learning-analytics/internal/domain/progress"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD INTERACTION COMMAND
// Records a single learning interaction and updates the derived state in one
// transaction: append the interaction, fold it into the topic mastery row,
// rebuild the student progress row from all mastery rows.
// ══════════════════════════════════════════════════════════════════════════════

// RecordInteractionCommand contains the data to record a learning interaction.
type RecordInteractionCommand struct {
	// StudentID is the subject the interaction belongs to. Must match the
	// authenticated caller.
	StudentID string

	// Subject is the course subject name.
	Subject string

	// Grade is the grade level of the material.
	Grade string

	// Topic is the topic title within the subject.
	Topic string

	// Type is the interaction type.
	Type interaction.Type

	// IsCorrect is the grading outcome, nil for non-gradable types.
	IsCorrect *bool

	// Refs carries optional content references.
	Refs interaction.Refs
}

// Validate validates the command.
func (c RecordInteractionCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("record_interaction: student_id is required")
	}
	if c.Subject == "" {
		return errors.New("record_interaction: subject is required")
	}
	if c.Grade == "" {
		return errors.New("record_interaction: grade is required")
	}
	if c.Topic == "" {
		return errors.New("record_interaction: topic is required")
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("record_interaction: unknown interaction type: %s", c.Type)
	}
	return nil
}

// RecordInteractionResult contains the result of recording an interaction.
type RecordInteractionResult struct {
	// InteractionID is the ID of the stored interaction.
	InteractionID shared.InteractionID

	// MasteryLevel is the topic's level after the update.
	MasteryLevel mastery.Level

	// LevelChanged indicates the topic level transitioned.
	LevelChanged bool

	// StudentLevel is the student's overall level after the recompute.
	StudentLevel progress.Level

	// RecordedAt is when the interaction was recorded.
	RecordedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordInteractionHandler handles the RecordInteractionCommand.
type RecordInteractionHandler struct {
	tx        TxManager
	publisher shared.EventPublisher
}

// NewRecordInteractionHandler creates a new RecordInteractionHandler.
func NewRecordInteractionHandler(tx TxManager, publisher shared.EventPublisher) *RecordInteractionHandler {
	return &RecordInteractionHandler{
		tx:        tx,
		publisher: publisher,
	}
}

// Handle executes the record interaction command. The caller identity must
// already be resolved into the context; recording on behalf of another
// subject is rejected before any store is touched.
func (h *RecordInteractionHandler) Handle(ctx context.Context, cmd RecordInteractionCommand) (*RecordInteractionResult, error) {
	caller, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_interaction: validation failed: %w", err)
	}

	studentID := shared.StudentID(cmd.StudentID)
	if !caller.CanRecordFor(studentID) {
		return nil, shared.ErrOwnershipViolation
	}

	inter, err := interaction.New(studentID, cmd.Subject, cmd.Grade, cmd.Topic, cmd.Type, cmd.IsCorrect, cmd.Refs)
	if err != nil {
		return nil, err
	}

	result := &RecordInteractionResult{
		InteractionID: inter.ID,
		RecordedAt:    inter.CreatedAt,
	}
	var events []shared.Event

	err = h.tx.InTx(ctx, func(ctx context.Context, s Stores) error {
		if err := s.Interactions.Append(ctx, inter); err != nil {
			return fmt.Errorf("record_interaction: failed to append interaction: %w", err)
		}

		row, err := s.Mastery.FindForUpdate(ctx, studentID, inter.Subject, inter.Topic)
		if err != nil {
			if !shared.IsNotFound(err) {
				return fmt.Errorf("record_interaction: failed to load mastery: %w", err)
			}
			row = mastery.NewTopicMastery(studentID, inter.Subject, inter.Topic)
		}

		previous := row.Apply(inter.Type, inter.Correct())
		if err := s.Mastery.Upsert(ctx, row); err != nil {
			return fmt.Errorf("record_interaction: failed to upsert mastery: %w", err)
		}

		result.MasteryLevel = row.Level
		result.LevelChanged = previous != row.Level
		if result.LevelChanged {
			events = append(events, shared.NewMasteryLevelChangedEvent(
				studentID, inter.Subject, inter.Topic, previous.String(), row.Level.String()))
		}

		// Full recompute from every mastery row the student has, so the
		// aggregate can never drift from its source rows.
		rows, err := s.Mastery.ListByStudent(ctx, studentID)
		if err != nil {
			return fmt.Errorf("record_interaction: failed to list mastery rows: %w", err)
		}

		existing, err := s.Progress.Find(ctx, studentID)
		if err != nil && !shared.IsNotFound(err) {
			return fmt.Errorf("record_interaction: failed to load progress: %w", err)
		}

		// Recompute rewrites the row in place, so capture the level first.
		hadProgress := existing != nil
		priorLevel := progress.Level("")
		if hadProgress {
			priorLevel = existing.Level
		}

		updated := progress.Recompute(studentID, existing, rows)
		if err := s.Progress.Upsert(ctx, updated); err != nil {
			return fmt.Errorf("record_interaction: failed to upsert progress: %w", err)
		}

		result.StudentLevel = updated.Level
		if hadProgress && priorLevel != updated.Level {
			events = append(events, shared.NewStudentLevelChangedEvent(
				studentID, priorLevel.String(), updated.Level.String()))
		}
		events = append(events, shared.NewProgressRecomputedEvent(
			studentID, updated.TotalInteractions, updated.AverageAccuracy,
			updated.TopicsMastered, updated.Level.String()))

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Events are published after commit; delivery is best-effort.
	events = append(events, shared.NewInteractionRecordedEvent(
		studentID, inter.ID, inter.Subject, inter.Topic, inter.Correct()))
	if h.publisher != nil {
		for _, event := range events {
			_ = h.publisher.Publish(event)
		}
	}

	return result, nil
}
