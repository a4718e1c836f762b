package storage

import (
	"context"
	"fmt"

	"github.com/rudolf-ledger/internal/events"
)

// DefaultEventChannel is the pub/sub channel notifications are sent on
const DefaultEventChannel = "rudolf:events"

// EventPublisher publishes every committed notification as JSON on a
// Redis pub/sub channel.
type EventPublisher struct {
	redis   *RedisCache
	channel string
}

// NewEventPublisher creates a publisher on channel
func NewEventPublisher(redis *RedisCache, channel string) *EventPublisher {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &EventPublisher{redis: redis, channel: channel}
}

// Channel returns the channel name
func (p *EventPublisher) Channel() string {
	return p.channel
}

// Name implements events.Sink
func (p *EventPublisher) Name() string { return "redis_publisher" }

// Handle implements events.Sink. Events are published in order; the first
// failure stops the batch.
func (p *EventPublisher) Handle(ctx context.Context, evs []events.Event) error {
	for _, e := range evs {
		payload, err := e.Payload()
		if err != nil {
			return err
		}
		if err := p.redis.Publish(ctx, p.channel, payload); err != nil {
			return fmt.Errorf("failed to publish %s event %s: %w", e.Kind, e.ID, err)
		}
	}
	return nil
}
