package xcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	cachelib "github.com/eko/gocache/lib/v4/cache"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
	redis "github.com/redis/go-redis/v9"

	"github.com/looplj/auditflow/internal/log"
	redis_store "github.com/looplj/auditflow/internal/pkg/xcache/redis"
)

// Cache is an alias to the gocache CacheInterface, keys are strings.
//
// Usage example:
//
//	mem := xcache.NewMemoryWithOptions[Entry](5*time.Minute, 10*time.Minute)
//	_ = mem.Set(ctx, "scope-grant:u-1", entry)
//	entry, err := mem.Get(ctx, "scope-grant:u-1")
type Cache[T any] = cachelib.CacheInterface[T]

type SetterCache[T any] = cachelib.SetterCacheInterface[T]

// NewMemory creates a pure in-memory cache using patrickmn/go-cache as the backend.
func NewMemory[T any](client *gocache.Cache, options ...Option) SetterCache[T] {
	return cachelib.New[T](gocache_store.NewGoCache(client, options...))
}

// NewMemoryWithOptions builds the patrickmn/go-cache client with the given expiration and cleanup interval.
func NewMemoryWithOptions[T any](defaultExpiration, cleanupInterval time.Duration, options ...Option) SetterCache[T] {
	return NewMemory[T](gocache.New(defaultExpiration, cleanupInterval), options...)
}

// NewRedis creates a redis cache storing JSON encoded values.
func NewRedis[T any](client *redis.Client, options ...Option) SetterCache[T] {
	return cachelib.New[T](redis_store.NewRedisStore[T](client, options...))
}

// NewTwoLevel constructs a 2-level cache: memory first, then redis.
func NewTwoLevel[T any](memory SetterCache[T], redis SetterCache[T]) Cache[T] {
	return cachelib.NewChain[T](memory, redis)
}

// NewFromConfig builds a typed cache from the given Config.
// client is the shared redis connection, it may be nil for the memory mode.
// An empty mode returns a noop cache.
func NewFromConfig[T any](cfg Config, client *redis.Client) (Cache[T], error) {
	if cfg.Mode == "" {
		return NewNoop[T](), nil
	}

	memExpiration := defaultIfZero(cfg.Memory.Expiration, 5*time.Minute)
	memCleanupInterval := defaultIfZero(cfg.Memory.CleanupInterval, 10*time.Minute)
	mem := NewMemoryWithOptions[T](memExpiration, memCleanupInterval, WithExpiration(memExpiration))

	var rds SetterCache[T]
	if client != nil {
		rds = NewRedis[T](client, WithExpiration(defaultIfZero(cfg.RedisExpiration, 30*time.Minute)))
	}

	switch cfg.Mode {
	case ModeMemory:
		log.Info(context.Background(), "using memory cache")
		return mem, nil
	case ModeRedis:
		if rds == nil {
			return nil, errors.New("redis cache mode requires a redis connection")
		}

		log.Info(context.Background(), "using redis cache")

		return rds, nil
	case ModeTwoLevel:
		if rds == nil {
			log.Warn(context.Background(), "redis is not configured, two-level cache falls back to memory")
			return mem, nil
		}

		log.Info(context.Background(), "using two-level cache")

		return NewTwoLevel[T](mem, rds), nil
	default:
		return nil, fmt.Errorf("invalid cache mode: %s", cfg.Mode)
	}
}

func defaultIfZero(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}

	return d
}
