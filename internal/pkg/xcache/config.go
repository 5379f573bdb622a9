package xcache

import (
	"time"
)

// Mode represents the cache backend mode
//   - memory: pure in-memory
//   - redis: pure redis, uses the shared redis connection
//   - two-level: memory + redis chain
const (
	ModeMemory   = "memory"
	ModeRedis    = "redis"
	ModeTwoLevel = "two-level"
)

type Config struct {
	Mode   string       `conf:"mode" yaml:"mode" json:"mode"`
	Memory MemoryConfig `conf:"memory" yaml:"memory" json:"memory"`

	// RedisExpiration is the TTL of entries written to redis.
	RedisExpiration time.Duration `conf:"redis_expiration" yaml:"redis_expiration" json:"redis_expiration"`
}

type MemoryConfig struct {
	Expiration      time.Duration `conf:"expiration" yaml:"expiration" json:"expiration"`
	CleanupInterval time.Duration `conf:"cleanup_interval" yaml:"cleanup_interval" json:"cleanup_interval"`
}
