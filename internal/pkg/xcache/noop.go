package xcache

import (
	"context"
	"errors"

	"github.com/eko/gocache/lib/v4/store"
)

// ErrCacheNotConfigured is the cause of every miss of the noop cache.
var ErrCacheNotConfigured = errors.New("cache not configured")

// noopCache stores nothing, every Get is a miss.
type noopCache[T any] struct{}

// NewNoop returns a cache that stores nothing, so callers need no nil checks when caching is disabled.
func NewNoop[T any]() Cache[T] {
	return noopCache[T]{}
}

func (noopCache[T]) Get(ctx context.Context, key any) (T, error) {
	var zero T
	return zero, store.NotFoundWithCause(ErrCacheNotConfigured)
}

func (noopCache[T]) Set(ctx context.Context, key any, object T, options ...Option) error {
	return nil
}

func (noopCache[T]) Delete(ctx context.Context, key any) error {
	return nil
}

func (noopCache[T]) Invalidate(ctx context.Context, options ...store.InvalidateOption) error {
	return nil
}

func (noopCache[T]) Clear(ctx context.Context) error {
	return nil
}

func (noopCache[T]) GetType() string {
	return "noop"
}
