package metrics

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdk "go.opentelemetry.io/otel/sdk/metric"
)

type Config struct {
	Enabled  bool           `conf:"enabled" yaml:"enabled" json:"enabled"`
	Exporter ExporterConfig `conf:"exporter" yaml:"exporter" json:"exporter"`
}

type ExporterConfig struct {
	// Type is stdout, otlphttp or otlpgrpc.
	Type string `conf:"type" yaml:"type" json:"type"`
	// Endpoint is the collector host:port of the otlp exporters, empty uses the OTEL_* environment.
	Endpoint string        `conf:"endpoint" yaml:"endpoint" json:"endpoint"`
	Insecure bool          `conf:"insecure" yaml:"insecure" json:"insecure"`
	Interval time.Duration `conf:"interval" yaml:"interval" json:"interval"`
	Pretty   bool          `conf:"pretty" yaml:"pretty" json:"pretty"`
}

// NewProvider returns nil when metrics are disabled.
func NewProvider(cfg Config) (*sdk.MeterProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	exporter, err := newExporter(context.Background(), cfg.Exporter)
	if err != nil {
		return nil, err
	}

	interval := cfg.Exporter.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	return sdk.NewMeterProvider(
		sdk.WithReader(sdk.NewPeriodicReader(exporter, sdk.WithInterval(interval))),
	), nil
}

func newExporter(ctx context.Context, cfg ExporterConfig) (sdk.Exporter, error) {
	switch cfg.Type {
	case "", "stdout":
		var opts []stdoutmetric.Option
		if cfg.Pretty {
			opts = append(opts, stdoutmetric.WithPrettyPrint())
		}

		exporter, err := stdoutmetric.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}

		return exporter, nil
	case "otlphttp":
		var opts []otlpmetrichttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
		}

		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}

		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp http metric exporter: %w", err)
		}

		return exporter, nil
	case "otlpgrpc":
		var opts []otlpmetricgrpc.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		}

		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}

		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp grpc metric exporter: %w", err)
		}

		return exporter, nil
	default:
		return nil, fmt.Errorf("unsupported metrics exporter: %s", cfg.Type)
	}
}

type instruments struct {
	transitions      metric.Int64Counter
	bulkRejections   metric.Int64Counter
	auditTrailErrors metric.Int64Counter
	notifyErrors     metric.Int64Counter
	lockBypasses     metric.Int64Counter
	httpRequests     metric.Int64Counter
	httpDuration     metric.Float64Histogram
}

var current atomic.Pointer[instruments]

func init() {
	inst, err := newInstruments(noop.NewMeterProvider().Meter("auditflow"))
	if err != nil {
		panic(err)
	}

	current.Store(inst)
}

// SetupMetrics installs provider globally and binds the recorders to it.
func SetupMetrics(provider metric.MeterProvider, serviceName string) error {
	otel.SetMeterProvider(provider)

	inst, err := newInstruments(provider.Meter(serviceName))
	if err != nil {
		return err
	}

	current.Store(inst)

	return nil
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	var (
		inst instruments
		err  error
	)

	if inst.transitions, err = meter.Int64Counter("auditflow.observation.transitions",
		metric.WithDescription("Observations moved by a workflow transition")); err != nil {
		return nil, err
	}

	if inst.bulkRejections, err = meter.Int64Counter("auditflow.bulk.rejections",
		metric.WithDescription("Bulk operations rejected during validation")); err != nil {
		return nil, err
	}

	if inst.auditTrailErrors, err = meter.Int64Counter("auditflow.audittrail.errors",
		metric.WithDescription("Audit trail writes that failed and were dropped")); err != nil {
		return nil, err
	}

	if inst.notifyErrors, err = meter.Int64Counter("auditflow.notify.errors",
		metric.WithDescription("Notifications that failed and were dropped")); err != nil {
		return nil, err
	}

	if inst.lockBypasses, err = meter.Int64Counter("auditflow.lock.bypasses",
		metric.WithDescription("Mutations executed under an audit lock bypass")); err != nil {
		return nil, err
	}

	if inst.httpRequests, err = meter.Int64Counter("auditflow.http.requests"); err != nil {
		return nil, err
	}

	if inst.httpDuration, err = meter.Float64Histogram("auditflow.http.duration",
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}

	return &inst, nil
}

func RecordTransition(ctx context.Context, transition string, count int) {
	current.Load().transitions.Add(ctx, int64(count), metric.WithAttributes(attribute.String("transition", transition)))
}

func RecordBulkRejection(ctx context.Context, operation string) {
	current.Load().bulkRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

func RecordAuditTrailError(ctx context.Context, action string) {
	current.Load().auditTrailErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

func RecordNotifyError(ctx context.Context, sink string) {
	current.Load().notifyErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

func RecordLockBypass(ctx context.Context, reason string) {
	current.Load().lockBypasses.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func RecordHTTPRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)

	inst := current.Load()
	inst.httpRequests.Add(ctx, 1, attrs)
	inst.httpDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}
