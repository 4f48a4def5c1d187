package messaging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-edu/learning-analytics/internal/application/eventhandler"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

type fakeRedisClient struct {
	mu        sync.Mutex
	messages  chan RedisMessage
	published []string
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{messages: make(chan RedisMessage, 16)}
}

func (c *fakeRedisClient) Publish(_ context.Context, _ string, message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, message.(string))
	return nil
}

func (c *fakeRedisClient) Subscribe(_ context.Context, _ ...string) (<-chan RedisMessage, error) {
	return c.messages, nil
}

func (c *fakeRedisClient) Close() error { return nil }

// deliver injects a raw payload as if Redis delivered it.
func (c *fakeRedisClient) deliver(payload string) {
	c.messages <- RedisMessage{Channel: "learning-analytics:events", Payload: payload}
}

func newRemoteBus(t *testing.T, instanceID string) (*RedisEventBus, *fakeRedisClient) {
	t.Helper()
	client := newFakeRedisClient()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:     client,
		InstanceID: instanceID,
		Logger:     slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	return bus, client
}

func envelopeFor(t *testing.T, instanceID string, event shared.Event) string {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	data, err := json.Marshal(eventEnvelope{
		InstanceID:  instanceID,
		EventID:     event.EventID(),
		EventType:   event.Type(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     payload,
	})
	require.NoError(t, err)
	return string(data)
}

func TestRedisEventBusDecodesRemoteEvents(t *testing.T) {
	bus, client := newRemoteBus(t, "instance-b")

	received := make(chan shared.Event, 1)
	require.NoError(t, bus.Subscribe(shared.EventMasteryLevelChanged, func(e shared.Event) error {
		received <- e
		return nil
	}))

	remote := shared.NewMasteryLevelChangedEvent("student-1", "math", "fractions", "beginner", "intermediate")
	client.deliver(envelopeFor(t, "instance-a", remote))

	select {
	case e := <-received:
		typed, ok := e.(*shared.MasteryLevelChangedEvent)
		require.True(t, ok, "subscriber should see the concrete event type, got %T", e)
		assert.Equal(t, shared.StudentID("student-1"), typed.StudentID)
		assert.Equal(t, "fractions", typed.Topic)
		assert.Equal(t, "beginner", typed.OldLevel)
		assert.Equal(t, "intermediate", typed.NewLevel)
	case <-time.After(2 * time.Second):
		t.Fatal("remote event was not delivered")
	}
}

func TestRedisEventBusRemoteEventReachesMasteryHandler(t *testing.T) {
	bus, client := newRemoteBus(t, "instance-b")

	inv := &recordingInvalidator{invalidated: make(chan shared.StudentID, 1)}
	handler := eventhandler.NewOnMasteryLevelChangedHandler(inv, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, bus.Subscribe(handler.EventType(), handler.Handle))

	remote := shared.NewMasteryLevelChangedEvent("student-7", "physics", "optics", "advanced", "mastered")
	client.deliver(envelopeFor(t, "instance-a", remote))

	select {
	case studentID := <-inv.invalidated:
		assert.Equal(t, shared.StudentID("student-7"), studentID)
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot was not invalidated for the remote event")
	}
}

func TestRedisEventBusSkipsOwnEvents(t *testing.T) {
	bus, client := newRemoteBus(t, "instance-b")

	received := make(chan shared.Event, 1)
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		received <- e
		return nil
	}))

	own := shared.NewProgressRecomputedEvent("student-1", 5, 0.8, 1, "intermediate")
	client.deliver(envelopeFor(t, "instance-b", own))

	select {
	case e := <-received:
		t.Fatalf("self-published event should be skipped, got %s", e.Type())
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRedisEventBusUnknownTypeFallsBackToRaw(t *testing.T) {
	bus, client := newRemoteBus(t, "instance-b")

	received := make(chan shared.Event, 1)
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		received <- e
		return nil
	}))

	data, err := json.Marshal(eventEnvelope{
		InstanceID: "instance-a",
		EventID:    "evt-1",
		EventType:  shared.EventType("unknown.event"),
		OccurredAt: time.Now().UTC(),
		Payload:    json.RawMessage(`{"some":"payload"}`),
	})
	require.NoError(t, err)
	client.deliver(string(data))

	select {
	case e := <-received:
		raw, ok := e.(*remoteEvent)
		require.True(t, ok, "unknown types should be delivered raw, got %T", e)
		assert.Equal(t, shared.EventType("unknown.event"), raw.Type())
		assert.JSONEq(t, `{"some":"payload"}`, string(raw.Payload()))
	case <-time.After(2 * time.Second):
		t.Fatal("raw event was not delivered")
	}
}

func TestRedisEventBusPublishBroadcasts(t *testing.T) {
	bus, client := newRemoteBus(t, "instance-a")

	var local int
	require.NoError(t, bus.Subscribe(shared.EventUsageAnomalyFound, func(e shared.Event) error {
		local++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewUsageAnomalyFoundEvent("student-1", 150, 5*time.Minute)))

	assert.Equal(t, 1, local)

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.published, 1)

	var envelope eventEnvelope
	require.NoError(t, json.Unmarshal([]byte(client.published[0]), &envelope))
	assert.Equal(t, "instance-a", envelope.InstanceID)
	assert.Equal(t, shared.EventUsageAnomalyFound, envelope.EventType)
}

type recordingInvalidator struct {
	invalidated chan shared.StudentID
}

func (r *recordingInvalidator) Invalidate(_ context.Context, studentID shared.StudentID) error {
	r.invalidated <- studentID
	return nil
}
