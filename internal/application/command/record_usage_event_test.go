package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
	"github.com/brightpath-edu/learning-analytics/internal/domain/usage"
)

func TestRecordUsageEvent(t *testing.T) {
	stores, _, _, _, usageRepo := newTestStores()
	tracker := newFakeWindowTracker()
	pub := &capturingPublisher{}
	h := NewRecordUsageEventHandler(&fakeTxManager{stores: stores}, tracker, pub)

	result, err := h.Handle(studentCtx("student-1"), RecordUsageEventCommand{
		StudentID: "student-1",
		Type:      usage.TypeChatMessage,
		Model:     "tutor-v2",
	})
	assert.NoError(t, err)
	assert.True(t, result.UsageID.IsValid())

	assert.Len(t, usageRepo.items, 1)
	assert.Equal(t, usage.TypeChatMessage, usageRepo.items[0].Type)
	assert.Equal(t, "tutor-v2", usageRepo.items[0].Model)

	assert.Len(t, tracker.tracked[shared.StudentID("student-1")], 1)
	assert.Len(t, pub.events, 1)
	assert.Equal(t, shared.EventUsageEventRecorded, pub.events[0].Type())
}

func TestRecordUsageEventRequiresIdentity(t *testing.T) {
	stores, _, _, _, usageRepo := newTestStores()
	h := NewRecordUsageEventHandler(&fakeTxManager{stores: stores}, nil, nil)

	_, err := h.Handle(context.Background(), RecordUsageEventCommand{
		StudentID: "student-1",
		Type:      usage.TypeSTTRequest,
	})
	assert.Error(t, err)
	assert.True(t, shared.IsUnauthenticated(err))
	assert.Empty(t, usageRepo.items)
}

func TestRecordUsageEventRejectsForeignSubject(t *testing.T) {
	stores, _, _, _, usageRepo := newTestStores()
	h := NewRecordUsageEventHandler(&fakeTxManager{stores: stores}, nil, nil)

	_, err := h.Handle(studentCtx("student-1"), RecordUsageEventCommand{
		StudentID: "student-2",
		Type:      usage.TypeFileUpload,
	})
	assert.Error(t, err)
	assert.True(t, shared.IsForbidden(err))
	assert.Empty(t, usageRepo.items)
}

func TestRecordUsageEventRejectsUnknownType(t *testing.T) {
	stores, _, _, _, usageRepo := newTestStores()
	h := NewRecordUsageEventHandler(&fakeTxManager{stores: stores}, nil, nil)

	_, err := h.Handle(studentCtx("student-1"), RecordUsageEventCommand{
		StudentID: "student-1",
		Type:      usage.EventType("video_call"),
	})
	assert.Error(t, err)
	assert.Empty(t, usageRepo.items)
}
