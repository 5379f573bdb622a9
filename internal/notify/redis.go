package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultStream = "auditflow:notifications"

// RedisStream publishes notifications to a redis stream, consumers read them with XREAD.
type RedisStream struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisStream(client redis.Cmdable, stream string, maxLen int64) *RedisStream {
	if stream == "" {
		stream = defaultStream
	}

	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

func (s *RedisStream) Name() string { return "redis" }

func (s *RedisStream) Notify(ctx context.Context, entityID string, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"entity_id": entityID,
			"event":     payload.Event,
			"payload":   string(data),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}

	return nil
}
