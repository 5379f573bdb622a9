package dependencies

import (
	"context"

	"entgo.io/ent/dialect"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	sdk "go.opentelemetry.io/otel/sdk/metric"

	"github.com/looplj/auditflow/internal/audittrail"
	"github.com/looplj/auditflow/internal/log"
	"github.com/looplj/auditflow/internal/metrics"
	"github.com/looplj/auditflow/internal/notify"
	"github.com/looplj/auditflow/internal/pkg/watcher"
	"github.com/looplj/auditflow/internal/pkg/xcache"
	"github.com/looplj/auditflow/internal/pkg/xredis"
	"github.com/looplj/auditflow/internal/scopes"
	"github.com/looplj/auditflow/internal/server/biz"
	"github.com/looplj/auditflow/internal/server/db"
	"github.com/looplj/auditflow/internal/store"
)

var Module = fx.Module("dependencies",
	fx.Provide(log.New),
	fx.Provide(db.NewDriver),
	fx.Provide(store.New),
	fx.Provide(
		func(st *store.Store) biz.Repository { return st },
		func(st *store.Store) scopes.GrantSource { return st },
		func(st *store.Store) *store.AuditEntries { return st.AuditEntries() },
		func(entries *store.AuditEntries) audittrail.Reader { return entries },
		func(entries *store.AuditEntries) audittrail.Writer { return entries },
	),
	fx.Provide(NewRedisClient),
	fx.Provide(NewScopeCache),
	fx.Provide(scopes.NewResolver),
	fx.Provide(NewGrantBus),
	fx.Invoke(ListenGrantInvalidations),
	fx.Provide(notify.NewFromConfig),
	fx.Provide(func(d *notify.Dispatcher) biz.Notifier { return d }),
	fx.Provide(audittrail.NewBestEffort),
	fx.Provide(func(s *audittrail.BestEffort) audittrail.Sink { return s }),
	fx.Provide(metrics.NewProvider),
	fx.Invoke(func(lc fx.Lifecycle, drv dialect.Driver) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return drv.Close()
			},
		})
	}),
	fx.Invoke(func(lc fx.Lifecycle, provider *sdk.MeterProvider) {
		if provider == nil {
			return
		}

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}),
)

// NewRedisClient returns nil when redis is not configured, consumers fall back to memory.
func NewRedisClient(lc fx.Lifecycle, cfg xredis.Config) (*redis.Client, error) {
	client, err := xredis.NewClient(context.Background(), cfg)
	if err != nil || client == nil {
		return client, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}

func NewScopeCache(cfg xcache.Config, client *redis.Client) (xcache.Cache[scopes.CacheEntry], error) {
	return xcache.NewFromConfig[scopes.CacheEntry](cfg, client)
}

// NewGrantBus fans scope grant invalidations out to every instance sharing the redis.
func NewGrantBus(client *redis.Client) (watcher.Notifier[string], error) {
	return watcher.New[string](client, watcher.Options{Channel: "auditflow:scope-grant:invalidate", Buffer: 64})
}

func ListenGrantInvalidations(lc fx.Lifecycle, resolver *scopes.Resolver, bus watcher.Notifier[string]) {
	var stop func()

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			stop = resolver.Listen(bus)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if stop != nil {
				stop()
			}

			return nil
		},
	})
}
