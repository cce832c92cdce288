package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix namespaces the Redis channels used for change events.
const DefaultChannelPrefix = "roombooking"

// RedisFeed distributes change events through Redis PUBLISH/SUBSCRIBE so that
// every server instance sees writes made by the others.
type RedisFeed struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisFeed wraps an established client.
func NewRedisFeed(client *redis.Client, prefix string, logger *slog.Logger) *RedisFeed {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisFeed{client: client, prefix: prefix, logger: logger}
}

func (f *RedisFeed) channel(collection Collection) string {
	return f.prefix + ":" + string(collection)
}

// Publish sends the event on the collection's channel.
func (f *RedisFeed) Publish(ctx context.Context, event ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel(event.Collection), payload).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Subscribe opens a Redis subscription for collection and pumps decoded
// events into the returned Subscription until it is closed.
func (f *RedisFeed) Subscribe(ctx context.Context, collection Collection) (*Subscription, error) {
	pubsub := f.client.Subscribe(ctx, f.channel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	sub := newSubscription(ctx, collection, func() { _ = pubsub.Close() })
	messages := pubsub.Channel()

	go func() {
		defer sub.Close()
		for msg := range messages {
			var event ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				f.logger.Warn("discarding malformed change event", "channel", msg.Channel, "error", err)
				continue
			}
			if !sub.deliver(event) {
				return
			}
		}
	}()

	return sub, nil
}
