package notify

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/looplj/auditflow/internal/log"
	"github.com/looplj/auditflow/internal/metrics"
	"github.com/looplj/auditflow/internal/pkg/xcontext"
)

const (
	EventObservationApproved   = "observation.approved"
	EventObservationRejected   = "observation.rejected"
	EventChangeRequestCreated  = "change_request.created"
	EventChangeRequestApproved = "change_request.approved"
	EventChangeRequestDenied   = "change_request.denied"
)

// Payload is what a notification carries, Recipients are user ids.
type Payload struct {
	Event      string         `json:"event"`
	EntityType string         `json:"entityType"`
	ActorID    string         `json:"actorId,omitempty"`
	Recipients []string       `json:"recipients,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	At         time.Time      `json:"at"`
}

// Sink delivers one notification, delivery is not guaranteed.
type Sink interface {
	Name() string
	Notify(ctx context.Context, entityID string, payload Payload) error
}

// Dispatcher fans a notification out to every sink, failures are logged and dropped.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
}

func NewDispatcher(timeout time.Duration, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Dispatcher{sinks: sinks, timeout: timeout}
}

func (d *Dispatcher) Notify(ctx context.Context, entityID string, payload Payload) {
	if len(d.sinks) == 0 {
		return
	}

	if payload.At.IsZero() {
		payload.At = time.Now().UTC()
	}

	// The caller already committed, its cancellation must not drop the notification.
	ctx, cancel := xcontext.DetachWithTimeout(ctx, d.timeout)
	defer cancel()

	var eg errgroup.Group

	for _, sink := range d.sinks {
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Error(ctx, "notification sink panicked", log.String("sink", sink.Name()), log.Any("panic", r))
					metrics.RecordNotifyError(ctx, sink.Name())
				}
			}()

			if err := sink.Notify(ctx, entityID, payload); err != nil {
				log.Warn(ctx, "failed to deliver notification",
					log.String("sink", sink.Name()),
					log.String("entity_id", entityID),
					log.String("event", payload.Event),
					log.Cause(err),
				)
				metrics.RecordNotifyError(ctx, sink.Name())
			}

			return nil
		})
	}

	_ = eg.Wait()
}

// LogSink writes notifications to the application log.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Notify(ctx context.Context, entityID string, payload Payload) error {
	log.Info(ctx, "notification",
		log.String("entity_id", entityID),
		log.String("event", payload.Event),
		log.Strings("recipients", payload.Recipients),
	)

	return nil
}
