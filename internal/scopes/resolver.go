package scopes

import (
	"context"
	"fmt"

	"github.com/looplj/auditflow/internal/log"
	"github.com/looplj/auditflow/internal/pkg/watcher"
	"github.com/looplj/auditflow/internal/pkg/xcache"
)

// GrantSource loads the raw scope of the user's most recently redeemed invite.
type GrantSource interface {
	LatestRedeemedScope(ctx context.Context, userID string) (raw []byte, found bool, err error)
}

// CacheEntry is the cached resolution of one user, Grant is nil when the user has no usable grant.
type CacheEntry struct {
	Grant *Grant `json:"grant,omitempty"`
}

// Resolver resolves scope grants, it never writes to the source.
type Resolver struct {
	source GrantSource
	cache  xcache.Cache[CacheEntry]

	// bus carries invalidated user ids to the other instances.
	bus watcher.Notifier[string]
}

func NewResolver(source GrantSource, cache xcache.Cache[CacheEntry]) *Resolver {
	if cache == nil {
		cache = xcache.NewNoop[CacheEntry]()
	}

	return &Resolver{source: source, cache: cache}
}

func cacheKey(userID string) string {
	return "scope-grant:" + userID
}

// Resolve returns the user's grant, nil when absent or malformed.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*Grant, error) {
	if entry, err := r.cache.Get(ctx, cacheKey(userID)); err == nil {
		return entry.Grant, nil
	}

	raw, found, err := r.source.LatestRedeemedScope(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load scope grant of %s: %w", userID, err)
	}

	var grant *Grant

	if found && len(raw) > 0 {
		grant, err = ParseGrant(raw)
		if err != nil {
			log.Warn(ctx, "malformed scope grant ignored", log.String("user_id", userID), log.Cause(err))

			grant = nil
		}
	}

	if err := r.cache.Set(ctx, cacheKey(userID), CacheEntry{Grant: grant}); err != nil {
		log.Warn(ctx, "failed to cache scope grant", log.String("user_id", userID), log.Cause(err))
	}

	return grant, nil
}

// Invalidate drops the cached grant of the user, call it after an invite is redeemed.
func (r *Resolver) Invalidate(ctx context.Context, userID string) {
	r.drop(ctx, userID)

	if r.bus == nil {
		return
	}

	if err := r.bus.Notify(ctx, userID); err != nil {
		log.Warn(ctx, "failed to broadcast scope grant invalidation", log.String("user_id", userID), log.Cause(err))
	}
}

func (r *Resolver) drop(ctx context.Context, userID string) {
	if err := r.cache.Delete(ctx, cacheKey(userID)); err != nil {
		log.Warn(ctx, "failed to invalidate scope grant", log.String("user_id", userID), log.Cause(err))
	}
}

// Listen attaches the invalidation bus. Invalidations published by any instance
// drop the local entry until stop is called.
func (r *Resolver) Listen(bus watcher.Notifier[string]) (stop func()) {
	r.bus = bus
	events, unsubscribe := bus.Watch()

	done := make(chan struct{})

	go func() {
		defer close(done)

		ctx := context.Background()
		for userID := range events {
			r.drop(ctx, userID)
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}
