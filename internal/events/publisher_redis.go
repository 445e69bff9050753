package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher broadcasts events over a Redis pub/sub channel. Fan-out is
// fire-and-forget: subscribers absent at publish time miss the event, which
// is acceptable for the realtime notification layer this feeds.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	envelope, err := event.MarshalEnvelope()
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, envelope).Err(); err != nil {
		return fmt.Errorf("redis publish %q: %w", event.Name, err)
	}
	return nil
}
