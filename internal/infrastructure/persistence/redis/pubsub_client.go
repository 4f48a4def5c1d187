package redis

import (
	"context"

	"github.com/brightpath-edu/learning-analytics/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// PUB/SUB CLIENT ADAPTER
// ══════════════════════════════════════════════════════════════════════════════

// PubSubClient adapts a Cache to the messaging.RedisClient interface so the
// distributed event bus can ride on the same connection pool as caching.
type PubSubClient struct {
	cache *Cache
}

// NewPubSubClient creates a new adapter over the given cache.
func NewPubSubClient(cache *Cache) *PubSubClient {
	return &PubSubClient{cache: cache}
}

// compile-time check
var _ messaging.RedisClient = (*PubSubClient)(nil)

// Publish publishes a message to a channel.
func (p *PubSubClient) Publish(ctx context.Context, channel string, message interface{}) error {
	// Messages arriving here are already serialized strings; publish raw to
	// avoid double JSON encoding.
	if s, ok := message.(string); ok {
		return p.cache.Client().Publish(ctx, channel, s).Err()
	}
	return p.cache.Publish(ctx, channel, message)
}

// Subscribe subscribes to channels and bridges messages onto a Go channel.
// The returned channel closes when ctx is cancelled.
func (p *PubSubClient) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	pubsub := p.cache.Subscribe(ctx, channels...)

	// Confirm the subscription before returning so callers never miss
	// messages published right after Subscribe.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan messaging.RedisMessage)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				out <- messaging.RedisMessage{
					Channel: msg.Channel,
					Payload: msg.Payload,
				}
			}
		}
	}()

	return out, nil
}

// Close closes the underlying connection.
func (p *PubSubClient) Close() error {
	return p.cache.Close()
}
