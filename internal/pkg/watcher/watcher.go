package watcher

import "context"

// Watcher is a best-effort subscription to invalidation signals.
// Events may be dropped when a subscriber is slow, consumers must treat an
// event as a hint to reload and never as the only copy of the data.
type Watcher[T any] interface {
	// Watch returns the event channel and a stop function that must be called once.
	Watch() (<-chan T, func())
}

// Notifier publishes to every subscriber of the same channel, local or remote.
type Notifier[T any] interface {
	Watcher[T]

	Notify(ctx context.Context, v T) error
}

type Options struct {
	// Channel is the redis pub/sub channel, ignored in memory mode.
	Channel string
	Buffer  int
}
