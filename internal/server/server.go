package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	sdk "go.opentelemetry.io/otel/sdk/metric"

	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/log"
	"github.com/looplj/auditflow/internal/metrics"
	"github.com/looplj/auditflow/internal/server/api"
	"github.com/looplj/auditflow/internal/server/biz"
	"github.com/looplj/auditflow/internal/server/dependencies"
	"github.com/looplj/auditflow/internal/server/middleware"
	"github.com/looplj/auditflow/internal/tracing"
)

func New(config Config) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())

	return &Server{
		Config: config,
		Engine: engine,
	}
}

type Server struct {
	*gin.Engine

	Config Config
	server *http.Server
}

func (srv *Server) Run() error {
	log.Info(context.Background(), "run server",
		log.String("name", srv.Config.Name),
		log.String("host", srv.Config.Host),
		log.Int("port", srv.Config.Port),
	)

	srv.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", srv.Config.Host, srv.Config.Port),
		Handler:      srv.Engine,
		ReadTimeout:  srv.Config.ReadTimeout,
		WriteTimeout: srv.Config.RequestTimeout,
	}

	err := srv.server.ListenAndServe()
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}

	return nil
}

func (srv *Server) Shutdown(ctx context.Context) error {
	if srv.server == nil {
		return nil
	}

	return srv.server.Shutdown(ctx)
}

// Options returns the application graph without the config, callers supply it.
func Options() []fx.Option {
	return []fx.Option{
		fx.Provide(New),
		dependencies.Module,
		biz.Module,
		api.Module,
		fx.Invoke(func(cfg log.Config) {
			log.SetGlobalConfig(cfg)
			tracing.SetupLogger(log.GetGlobalLogger())
		}),
		fx.Invoke(SetupLockBypassAudit),
		fx.Invoke(SetupMetrics),
		fx.Invoke(SetupRoutes),
	}
}

func Run(opts ...fx.Option) {
	app := fx.New(
		append(append([]fx.Option{fx.NopLogger}, Options()...), opts...)...,
	)
	app.Run()
}

// SetupLockBypassAudit reports every lock bypass to the log and the bypass counter.
func SetupLockBypassAudit() {
	authz.SetAuditLogger(func(ctx context.Context, record authz.BypassRecord) {
		metrics.RecordLockBypass(ctx, record.Reason)
		log.Warn(ctx, record.Description,
			log.String("principal", record.Principal),
			log.String("reason", record.Reason),
			log.Time("at", record.Timestamp),
		)
	})
}

// SetupMetrics binds the recorders to the provider, a nil provider keeps them as no-ops.
func SetupMetrics(provider *sdk.MeterProvider, cfg Config) error {
	if provider == nil {
		return nil
	}

	name := cfg.Name
	if name == "" {
		name = "auditflow"
	}

	return metrics.SetupMetrics(provider, name)
}
