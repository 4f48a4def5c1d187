package messaging

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

func newSyncBus(t *testing.T) *InMemoryEventBus {
	t.Helper()
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:     false,
		EnableMetrics: true,
	})
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestInMemoryEventBusRoutesByType(t *testing.T) {
	bus := newSyncBus(t)

	var mastery, progress int
	require.NoError(t, bus.Subscribe(shared.EventMasteryLevelChanged, func(e shared.Event) error {
		mastery++
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventProgressRecomputed, func(e shared.Event) error {
		progress++
		return nil
	}))

	event := shared.NewMasteryLevelChangedEvent("student-1", "math", "fractions", "beginner", "intermediate")
	require.NoError(t, bus.Publish(event))

	assert.Equal(t, 1, mastery)
	assert.Equal(t, 0, progress)
}

func TestInMemoryEventBusSubscribeAll(t *testing.T) {
	bus := newSyncBus(t)

	var seen []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		seen = append(seen, e.Type())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewProgressRecomputedEvent("student-1", 10, 0.8, 1, "intermediate")))
	require.NoError(t, bus.Publish(shared.NewUsageAnomalyFoundEvent("student-2", 150, 5*time.Minute)))

	assert.Equal(t, []shared.EventType{shared.EventProgressRecomputed, shared.EventUsageAnomalyFound}, seen)
}

func TestInMemoryEventBusHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := newSyncBus(t)

	var called bool
	require.NoError(t, bus.Subscribe(shared.EventInteractionRecorded, func(e shared.Event) error {
		return errors.New("boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventInteractionRecorded, func(e shared.Event) error {
		called = true
		return nil
	}))

	event := shared.NewInteractionRecordedEvent("student-1", "int-1", "math", "fractions", true)
	require.NoError(t, bus.Publish(event))
	assert.True(t, called)
}

func TestInMemoryEventBusRejectsNilInputs(t *testing.T) {
	bus := newSyncBus(t)

	assert.ErrorIs(t, bus.Subscribe(shared.EventInteractionRecorded, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}

func TestInMemoryEventBusClosed(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewProgressRecomputedEvent("student-1", 1, 1.0, 0, "beginner"))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventProgressRecomputed, func(e shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)

	// Closing twice is a no-op.
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBusAsyncWaitsOnClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 2,
	})

	var mu sync.Mutex
	var handled int
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		mu.Lock()
		handled++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewUsageEventRecordedEvent("student-1", "usage-1", "chat_message")))
	}

	// Close waits for in-flight handlers.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, handled)
}

func TestEventBusMetrics(t *testing.T) {
	bus := newSyncBus(t)

	require.NoError(t, bus.Subscribe(shared.EventMasteryLevelChanged, func(e shared.Event) error { return nil }))
	require.NoError(t, bus.Subscribe(shared.EventMasteryLevelChanged, func(e shared.Event) error {
		return errors.New("boom")
	}))

	event := shared.NewMasteryLevelChangedEvent("student-1", "math", "fractions", "advanced", "mastered")
	require.NoError(t, bus.Publish(event))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.InDelta(t, 0.5, snap.HandlerSuccessRate, 1e-9)
}
