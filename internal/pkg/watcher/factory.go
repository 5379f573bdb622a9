package watcher

import "github.com/redis/go-redis/v9"

// New returns a redis backed notifier when client is set, otherwise an in-process one.
// Single instance deployments run without redis and only need local fan-out.
func New[T any](client *redis.Client, opts Options) (Notifier[T], error) {
	if client == nil {
		return NewMemory[T](opts), nil
	}

	return NewRedis[T](client, opts)
}
