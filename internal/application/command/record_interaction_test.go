package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/interaction"
	"github.com/brightpath-edu/learning-analytics/internal/domain/mastery"
	"github.com/brightpath-edu/learning-analytics/internal/domain/progress"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

func boolPtr(b bool) *bool { return &b }

func studentCtx(id string) context.Context {
	return identity.WithIdentity(context.Background(), identity.Identity{
		StudentID: shared.StudentID(id),
		Role:      identity.RoleStudent,
	})
}

func validCommand(studentID string) RecordInteractionCommand {
	return RecordInteractionCommand{
		StudentID: studentID,
		Subject:   "mathematics",
		Grade:     "7",
		Topic:     "fractions",
		Type:      interaction.TypeQuestion,
		IsCorrect: boolPtr(true),
	}
}

func TestRecordInteraction(t *testing.T) {
	stores, interactions, masteryRepo, progressRepo, _ := newTestStores()
	pub := &capturingPublisher{}
	h := NewRecordInteractionHandler(&fakeTxManager{stores: stores}, pub)

	result, err := h.Handle(studentCtx("student-1"), validCommand("student-1"))
	assert.NoError(t, err)
	assert.True(t, result.InteractionID.IsValid())
	assert.Equal(t, mastery.LevelBeginner, result.MasteryLevel)
	assert.True(t, result.LevelChanged)
	assert.Equal(t, progress.LevelBeginner, result.StudentLevel)

	assert.Len(t, interactions.items, 1)

	row, err := masteryRepo.FindForUpdate(context.Background(), "student-1", "mathematics", "fractions")
	assert.NoError(t, err)
	assert.Equal(t, 1, row.TotalInteractions)
	assert.Equal(t, 1, row.CorrectAnswers)

	p, err := progressRepo.Find(context.Background(), "student-1")
	assert.NoError(t, err)
	assert.Equal(t, 1, p.TotalInteractions)
	assert.InDelta(t, 1.0, p.AverageAccuracy, 1e-9)
	assert.Equal(t, 1, p.CurrentStreak)
}

func TestRecordInteractionRequiresIdentity(t *testing.T) {
	stores, interactions, _, _, _ := newTestStores()
	h := NewRecordInteractionHandler(&fakeTxManager{stores: stores}, nil)

	_, err := h.Handle(context.Background(), validCommand("student-1"))
	assert.Error(t, err)
	assert.True(t, shared.IsUnauthenticated(err))
	// Must fail before touching any store.
	assert.Empty(t, interactions.items)
}

func TestRecordInteractionRejectsForeignSubject(t *testing.T) {
	stores, interactions, _, _, _ := newTestStores()
	h := NewRecordInteractionHandler(&fakeTxManager{stores: stores}, nil)

	_, err := h.Handle(studentCtx("student-1"), validCommand("student-2"))
	assert.Error(t, err)
	assert.True(t, shared.IsForbidden(err))
	assert.Empty(t, interactions.items)
}

func TestRecordInteractionRejectsMalformedInput(t *testing.T) {
	stores, interactions, _, _, _ := newTestStores()
	h := NewRecordInteractionHandler(&fakeTxManager{stores: stores}, nil)

	cmd := validCommand("student-1")
	cmd.Type = interaction.Type("homework")
	_, err := h.Handle(studentCtx("student-1"), cmd)
	assert.Error(t, err)

	cmd = validCommand("student-1")
	cmd.Topic = ""
	_, err = h.Handle(studentCtx("student-1"), cmd)
	assert.Error(t, err)

	assert.Empty(t, interactions.items)
}

func TestRecordInteractionAccumulatesMastery(t *testing.T) {
	stores, _, masteryRepo, progressRepo, _ := newTestStores()
	h := NewRecordInteractionHandler(&fakeTxManager{stores: stores}, nil)
	ctx := studentCtx("student-1")

	// Nine correct answers: high accuracy but below mastered volume.
	for i := 0; i < 9; i++ {
		_, err := h.Handle(ctx, validCommand("student-1"))
		assert.NoError(t, err)
	}
	row, _ := masteryRepo.FindForUpdate(context.Background(), "student-1", "mathematics", "fractions")
	assert.Equal(t, mastery.LevelAdvanced, row.Level)

	// The tenth correct answer crosses the volume gate.
	result, err := h.Handle(ctx, validCommand("student-1"))
	assert.NoError(t, err)
	assert.Equal(t, mastery.LevelMastered, result.MasteryLevel)
	assert.True(t, result.LevelChanged)

	p, _ := progressRepo.Find(context.Background(), "student-1")
	assert.Equal(t, 10, p.TotalInteractions)
	assert.Equal(t, 1, p.TopicsMastered)
}

func TestRecordInteractionRecomputesAcrossTopics(t *testing.T) {
	stores, _, _, progressRepo, _ := newTestStores()
	h := NewRecordInteractionHandler(&fakeTxManager{stores: stores}, nil)
	ctx := studentCtx("student-1")

	// Two correct on one topic, two wrong on another: the aggregate is
	// weighted over all interactions, 2/4.
	for i := 0; i < 2; i++ {
		_, err := h.Handle(ctx, validCommand("student-1"))
		assert.NoError(t, err)
	}
	wrong := validCommand("student-1")
	wrong.Topic = "decimals"
	wrong.IsCorrect = boolPtr(false)
	for i := 0; i < 2; i++ {
		_, err := h.Handle(ctx, wrong)
		assert.NoError(t, err)
	}

	p, _ := progressRepo.Find(context.Background(), "student-1")
	assert.Equal(t, 4, p.TotalInteractions)
	assert.InDelta(t, 0.5, p.AverageAccuracy, 1e-9)
}

func TestRecordInteractionStreakNotRecomputed(t *testing.T) {
	stores, _, _, progressRepo, _ := newTestStores()
	h := NewRecordInteractionHandler(&fakeTxManager{stores: stores}, nil)
	ctx := studentCtx("student-1")

	for i := 0; i < 3; i++ {
		_, err := h.Handle(ctx, validCommand("student-1"))
		assert.NoError(t, err)
	}

	p, _ := progressRepo.Find(context.Background(), "student-1")
	assert.Equal(t, 1, p.CurrentStreak)
}

func TestRecordInteractionPublishesEvents(t *testing.T) {
	stores, _, _, _, _ := newTestStores()
	pub := &capturingPublisher{}
	h := NewRecordInteractionHandler(&fakeTxManager{stores: stores}, pub)

	_, err := h.Handle(studentCtx("student-1"), validCommand("student-1"))
	assert.NoError(t, err)

	types := make(map[shared.EventType]bool)
	for _, e := range pub.events {
		types[e.Type()] = true
	}
	assert.True(t, types[shared.EventInteractionRecorded])
	assert.True(t, types[shared.EventMasteryLevelChanged])
	assert.True(t, types[shared.EventProgressRecomputed])
}

func TestRecordInteractionPublishesStudentLevelChange(t *testing.T) {
	stores, _, _, _, _ := newTestStores()
	pub := &capturingPublisher{}
	h := NewRecordInteractionHandler(&fakeTxManager{stores: stores}, pub)
	ctx := studentCtx("student-1")

	// Creating the progress row is not a transition.
	_, err := h.Handle(ctx, validCommand("student-1"))
	assert.NoError(t, err)
	for _, e := range pub.events {
		assert.NotEqual(t, shared.EventStudentLevelChanged, e.Type())
	}

	// Mastering two topics lifts the student from beginner to intermediate.
	for _, topic := range []string{"fractions", "decimals"} {
		for i := 0; i < 10; i++ {
			cmd := validCommand("student-1")
			cmd.Topic = topic
			_, err := h.Handle(ctx, cmd)
			assert.NoError(t, err)
		}
	}

	var transition *shared.StudentLevelChangedEvent
	for _, e := range pub.events {
		if evt, ok := e.(*shared.StudentLevelChangedEvent); ok {
			transition = evt
		}
	}
	if assert.NotNil(t, transition, "level transition event expected") {
		assert.Equal(t, shared.StudentID("student-1"), transition.StudentID)
		assert.Equal(t, progress.LevelBeginner.String(), transition.OldLevel)
		assert.Equal(t, progress.LevelIntermediate.String(), transition.NewLevel)
	}
}

func TestRecordInteractionTxFailure(t *testing.T) {
	stores, _, _, _, _ := newTestStores()
	pub := &capturingPublisher{}
	h := NewRecordInteractionHandler(&fakeTxManager{stores: stores, failed: assert.AnError}, pub)

	_, err := h.Handle(studentCtx("student-1"), validCommand("student-1"))
	assert.Error(t, err)
	// Nothing may be published when the transaction fails.
	assert.Empty(t, pub.events)
}
