package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"auction-site/internal/domain"

	"github.com/go-redis/redis/v8"
)

// DefaultChannel carries item events between instances.
const DefaultChannel = "auction_events"

type EventPublisherImpl struct {
	client  *redis.Client
	channel string
}

func NewEventPublisher(client *redis.Client, channel string) *EventPublisherImpl {
	if channel == "" {
		channel = DefaultChannel
	}
	return &EventPublisherImpl{client: client, channel: channel}
}

func (r *EventPublisherImpl) PublishItemEvent(ctx context.Context, event *domain.ItemEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	return r.client.Publish(ctx, r.channel, eventData).Err()
}
