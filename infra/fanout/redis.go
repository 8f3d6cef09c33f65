package fanout

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisStreamProvider appends serialized notifications to a Redis stream.
type RedisStreamProvider struct {
	client *redis.Client
	stream string
}

func NewRedisStreamProvider(client *redis.Client, stream string) *RedisStreamProvider {
	return &RedisStreamProvider{client: client, stream: stream}
}

func (p *RedisStreamProvider) Name() string {
	return "redis"
}

func (p *RedisStreamProvider) Publish(ctx context.Context, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"id":      notification.ID,
			"type":    notification.Type,
			"payload": string(payload),
		},
	}).Err()
}

func (p *RedisStreamProvider) PublishBatch(ctx context.Context, notifications []Notification) error {
	return publishEach(ctx, p, notifications)
}

// Close is a no-op: the client is owned by the shared Redis wrapper.
func (p *RedisStreamProvider) Close() error {
	return nil
}
