package biz

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/looplj/auditflow/internal/audittrail"
	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/fields"
	"github.com/looplj/auditflow/internal/metrics"
	"github.com/looplj/auditflow/internal/notify"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
	"github.com/looplj/auditflow/internal/store"
	"github.com/looplj/auditflow/internal/workflow"
)

func (s *ObservationService) Submit(ctx context.Context, id, comment string) (*objects.Observation, error) {
	return s.Transition(ctx, workflow.Submit, id, comment)
}

func (s *ObservationService) Approve(ctx context.Context, id, comment string) (*objects.Observation, error) {
	return s.Transition(ctx, workflow.Approve, id, comment)
}

func (s *ObservationService) Reject(ctx context.Context, id, comment string) (*objects.Observation, error) {
	return s.Transition(ctx, workflow.Reject, id, comment)
}

func (s *ObservationService) Publish(ctx context.Context, id string) (*objects.Observation, error) {
	return s.Transition(ctx, workflow.Publish, id, "")
}

func (s *ObservationService) Unpublish(ctx context.Context, id string) (*objects.Observation, error) {
	return s.Transition(ctx, workflow.Unpublish, id, "")
}

// Transition applies t to one observation.
func (s *ObservationService) Transition(ctx context.Context, t workflow.Transition, id, comment string) (*objects.Observation, error) {
	p, err := s.transitionPrincipal(ctx, t)
	if err != nil {
		return nil, err
	}

	var (
		obs     *objects.Observation
		entries []audittrail.Entry
	)

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.FindObservation(ctx, id)
		if err != nil {
			return notFound(err, "observation", id)
		}

		audit, err := s.repo.FindAudit(ctx, o.AuditID)
		if err != nil {
			return notFound(err, "audit", o.AuditID)
		}

		if err := workflow.Check(p, t, o, audit); err != nil {
			return err
		}

		entries, err = s.applyTransition(ctx, p, t, []*objects.Observation{o}, comment)
		obs = o

		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, p, t, []*objects.Observation{obs}, entries, comment)

	return obs, nil
}

func (s *ObservationService) BulkApprove(ctx context.Context, ids []string, comment string) (*objects.BulkResult, error) {
	return s.BulkTransition(ctx, workflow.Approve, ids, comment)
}

func (s *ObservationService) BulkReject(ctx context.Context, ids []string, comment string) (*objects.BulkResult, error) {
	return s.BulkTransition(ctx, workflow.Reject, ids, comment)
}

func (s *ObservationService) BulkPublish(ctx context.Context, ids []string) (*objects.BulkResult, error) {
	return s.BulkTransition(ctx, workflow.Publish, ids, "")
}

func (s *ObservationService) BulkUnpublish(ctx context.Context, ids []string) (*objects.BulkResult, error) {
	return s.BulkTransition(ctx, workflow.Unpublish, ids, "")
}

// BulkTransition applies t to every id or to none of them. Every target is
// checked before the first write, a failing target rejects the whole batch
// with a *xerrors.BulkError listing each failure.
func (s *ObservationService) BulkTransition(ctx context.Context, t workflow.Transition, ids []string, comment string) (*objects.BulkResult, error) {
	p, err := s.transitionPrincipal(ctx, t)
	if err != nil {
		return nil, err
	}

	var (
		targets []*objects.Observation
		entries []audittrail.Entry
	)

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		found, err := s.repo.FindObservations(ctx, lo.Uniq(ids))
		if err != nil {
			return err
		}

		byID := lo.KeyBy(found, func(o *objects.Observation) string { return o.ID })

		audits, err := s.repo.FindAuditsByID(ctx, lo.Uniq(lo.Map(found, func(o *objects.Observation, _ int) string { return o.AuditID })))
		if err != nil {
			return err
		}

		checks := lo.Map(ids, func(id string, _ int) workflow.Target {
			target := workflow.Target{ID: id, Observation: byID[id]}
			if target.Observation != nil {
				target.Audit = audits[target.Observation.AuditID]
			}

			return target
		})

		if err := workflow.CheckAll(p, t, checks); err != nil {
			if _, ok := xerrors.AsBulk(err); ok {
				metrics.RecordBulkRejection(ctx, string(t))
			}

			return err
		}

		targets = lo.Map(ids, func(id string, _ int) *objects.Observation { return byID[id] })
		entries, err = s.applyTransition(ctx, p, t, targets, comment)

		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, p, t, targets, entries, comment)

	return &objects.BulkResult{IDs: ids, Count: len(ids)}, nil
}

// transitionPrincipal rejects restricted principals before anything is loaded,
// no transition is open to them.
func (s *ObservationService) transitionPrincipal(ctx context.Context, t workflow.Transition) (authz.Principal, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return p, err
	}

	if !t.Valid() {
		return p, xerrors.Validation("unknown transition %q", t)
	}

	if authz.IsRestricted(p.Role) {
		return p, xerrors.Forbidden("role %s is not allowed to %s observations", p.Role, t)
	}

	return p, nil
}

// applyTransition persists t on already checked observations. The update is
// conditional on the source states, a row changed by a concurrent request
// fails the whole transaction.
func (s *ObservationService) applyTransition(
	ctx context.Context,
	p authz.Principal,
	t workflow.Transition,
	targets []*objects.Observation,
	comment string,
) ([]audittrail.Entry, error) {
	ids := lo.Map(targets, func(o *objects.Observation, _ int) string { return o.ID })
	guard := store.TransitionGuard{ApprovalStatuses: t.Sources()}
	columns := map[string]any{}

	published, flipsPublish := t.Published()
	if flipsPublish {
		guard.IsPublished = lo.ToPtr(!published)
		columns["is_published"] = published
	} else {
		columns["approval_status"] = string(t.Target())
	}

	n, err := s.repo.TransitionObservations(ctx, ids, guard, columns)
	if err != nil {
		return nil, err
	}

	if n != int64(len(ids)) {
		return nil, ErrConcurrentTransition
	}

	if t.RecordsApproval() {
		approvals := lo.Map(targets, func(o *objects.Observation, _ int) *objects.Approval {
			return &objects.Approval{
				ID:            uuid.NewString(),
				ObservationID: o.ID,
				Status:        t.Target(),
				ActorID:       p.UserID,
				Comment:       comment,
			}
		})

		if err := s.repo.CreateApprovals(ctx, approvals...); err != nil {
			return nil, err
		}
	}

	entries := make([]audittrail.Entry, 0, len(targets))

	for _, o := range targets {
		var diff map[string]fields.Change
		if flipsPublish {
			diff = map[string]fields.Change{"isPublished": {Before: o.IsPublished, After: published}}
			o.IsPublished = published
		} else {
			diff = map[string]fields.Change{"approvalStatus": {Before: o.ApprovalStatus, After: t.Target()}}
			o.ApprovalStatus = t.Target()
		}

		entries = append(entries, audittrail.NewEntry(ctx, audittrail.EntityObservation, o.ID, t.Action(), diff))
	}

	return entries, nil
}

// afterTransition runs the best effort side effects once the transaction committed.
func (s *ObservationService) afterTransition(
	ctx context.Context,
	p authz.Principal,
	t workflow.Transition,
	targets []*objects.Observation,
	entries []audittrail.Entry,
	comment string,
) {
	metrics.RecordTransition(ctx, string(t), len(targets))
	s.record(ctx, entries...)

	if !t.Notifies() {
		return
	}

	event := notify.EventObservationApproved
	if t == workflow.Reject {
		event = notify.EventObservationRejected
	}

	for _, o := range targets {
		s.notify(ctx, o.ID, notify.Payload{
			Event:      event,
			EntityType: audittrail.EntityObservation,
			ActorID:    p.UserID,
			Recipients: lo.Compact([]string{o.CreatedBy}),
			Data: map[string]any{
				"auditId":        o.AuditID,
				"approvalStatus": o.ApprovalStatus,
				"comment":        comment,
			},
		})
	}
}
