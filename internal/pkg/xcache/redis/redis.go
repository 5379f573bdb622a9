package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lib_store "github.com/eko/gocache/lib/v4/store"
	redis "github.com/redis/go-redis/v9"
)

// RedisClientInterface is the part of the go-redis client the store uses.
type RedisClientInterface interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, values any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	FlushDB(ctx context.Context) *redis.StatusCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

const (
	// RedisType represents the storage type as a string value.
	RedisType = "redis"
	// RedisTagPattern represents the tag pattern to be used as a key in specified storage.
	RedisTagPattern = "gocache_tag_%s"
)

// RedisStore stores values of type T as JSON.
type RedisStore[T any] struct {
	client  RedisClientInterface
	options *lib_store.Options
}

func NewRedisStore[T any](client RedisClientInterface, options ...lib_store.Option) *RedisStore[T] {
	return &RedisStore[T]{
		client:  client,
		options: lib_store.ApplyOptions(options...),
	}
}

func keyString(key any) (string, error) {
	s, ok := key.(string)
	if !ok {
		return "", fmt.Errorf("expected string key, got %T", key)
	}

	return s, nil
}

func (s *RedisStore[T]) decode(ctx context.Context, key string) (T, error) {
	var result T

	object, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return result, lib_store.NotFoundWithCause(err)
	}

	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(object), &result); err != nil {
		var zero T
		return zero, fmt.Errorf("decode cached %s: %w", key, err)
	}

	return result, nil
}

// Get returns typed data stored under key.
func (s *RedisStore[T]) Get(ctx context.Context, key any) (any, error) {
	k, err := keyString(key)
	if err != nil {
		return nil, lib_store.NotFoundWithCause(err)
	}

	return s.decode(ctx, k)
}

// GetWithTTL returns typed data stored under key and its remaining TTL.
func (s *RedisStore[T]) GetWithTTL(ctx context.Context, key any) (any, time.Duration, error) {
	k, err := keyString(key)
	if err != nil {
		return nil, 0, lib_store.NotFoundWithCause(err)
	}

	result, err := s.decode(ctx, k)
	if err != nil {
		return result, 0, err
	}

	ttl, err := s.client.TTL(ctx, k).Result()
	if err != nil {
		var zero T
		return zero, 0, err
	}

	return result, ttl, nil
}

// Set stores value under key as JSON.
func (s *RedisStore[T]) Set(ctx context.Context, key any, value any, options ...lib_store.Option) error {
	k, err := keyString(key)
	if err != nil {
		return err
	}

	opts := lib_store.ApplyOptionsWithDefault(s.options, options...)

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, k, string(raw), opts.Expiration).Err(); err != nil {
		return err
	}

	if len(opts.Tags) > 0 {
		ttl := opts.TagsTTL
		if ttl == 0 {
			ttl = 720 * time.Hour
		}

		for _, tag := range opts.Tags {
			tagKey := fmt.Sprintf(RedisTagPattern, tag)
			s.client.SAdd(ctx, tagKey, k)
			s.client.Expire(ctx, tagKey, ttl)
		}
	}

	return nil
}

func (s *RedisStore[T]) Delete(ctx context.Context, key any) error {
	k, err := keyString(key)
	if err != nil {
		return err
	}

	return s.client.Del(ctx, k).Err()
}

func (s *RedisStore[T]) GetType() string {
	return RedisType
}

// Clear flushes the selected database.
func (s *RedisStore[T]) Clear(ctx context.Context) error {
	return s.client.FlushDB(ctx).Err()
}

// Invalidate deletes every key stored with one of the given tags.
func (s *RedisStore[T]) Invalidate(ctx context.Context, options ...lib_store.InvalidateOption) error {
	opts := lib_store.ApplyInvalidateOptions(options...)

	for _, tag := range opts.Tags {
		tagKey := fmt.Sprintf(RedisTagPattern, tag)

		keys, err := s.client.SMembers(ctx, tagKey).Result()
		if err != nil {
			return err
		}

		if err := s.client.Del(ctx, append(keys, tagKey)...).Err(); err != nil {
			return err
		}
	}

	return nil
}
