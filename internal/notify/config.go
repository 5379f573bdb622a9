package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/looplj/auditflow/internal/log"
)

type Config struct {
	// Sinks lists the enabled sinks: "log" and "redis".
	Sinks   []string      `conf:"sinks" yaml:"sinks" json:"sinks"`
	Timeout time.Duration `conf:"timeout" yaml:"timeout" json:"timeout"`
	Stream  string        `conf:"stream" yaml:"stream" json:"stream"`
	MaxLen  int64         `conf:"max_len" yaml:"max_len" json:"max_len"`
}

// NewFromConfig builds the dispatcher, the redis sink is skipped with a warning when redis is not configured.
func NewFromConfig(cfg Config, client *redis.Client) (*Dispatcher, error) {
	var sinks []Sink

	for _, name := range cfg.Sinks {
		switch name {
		case "log":
			sinks = append(sinks, LogSink{})
		case "redis":
			if client == nil {
				log.Warn(context.Background(), "redis is not configured, redis notification sink disabled")
				continue
			}

			sinks = append(sinks, NewRedisStream(client, cfg.Stream, cfg.MaxLen))
		default:
			return nil, fmt.Errorf("unknown notification sink: %s", name)
		}
	}

	return NewDispatcher(cfg.Timeout, sinks...), nil
}
