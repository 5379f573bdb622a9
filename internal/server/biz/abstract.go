package biz

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/looplj/auditflow/internal/audittrail"
	"github.com/looplj/auditflow/internal/notify"
)

// Notifier delivers notifications after commit, it never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, entityID string, payload notify.Payload)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, notify.Payload) {}

type AbstractServiceParams struct {
	fx.In

	Repository Repository
	Trail      audittrail.Sink `optional:"true"`
	Notifier   Notifier        `optional:"true"`
}

// AbstractService carries the collaborators every service shares.
type AbstractService struct {
	repo     Repository
	trail    audittrail.Sink
	notifier Notifier
	now      func() time.Time
}

func NewAbstractService(params AbstractServiceParams) *AbstractService {
	svc := &AbstractService{
		repo:     params.Repository,
		trail:    params.Trail,
		notifier: params.Notifier,
		now:      time.Now,
	}

	if svc.trail == nil {
		svc.trail = audittrail.Discard{}
	}

	if svc.notifier == nil {
		svc.notifier = noopNotifier{}
	}

	return svc
}

// RunInTransaction runs fn in a transaction, nested calls join the outer one.
func (a *AbstractService) RunInTransaction(ctx context.Context, fn func(context.Context) error) error {
	return a.repo.RunInTransaction(ctx, fn)
}

// record appends entries to the audit trail. Call it after commit.
func (a *AbstractService) record(ctx context.Context, entries ...audittrail.Entry) {
	if len(entries) == 0 {
		return
	}

	a.trail.Record(ctx, entries...)
}

func (a *AbstractService) notify(ctx context.Context, entityID string, payload notify.Payload) {
	a.notifier.Notify(ctx, entityID, payload)
}

func (a *AbstractService) nowUTC() time.Time {
	return a.now().UTC()
}
