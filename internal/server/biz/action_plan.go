package biz

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/looplj/auditflow/internal/audittrail"
	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/fields"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
	"github.com/looplj/auditflow/internal/workflow"
)

type ActionPlanServiceParams struct {
	fx.In

	AbstractService    *AbstractService
	ObservationService *ObservationService
}

type ActionPlanService struct {
	*AbstractService

	observations *ObservationService
}

func NewActionPlanService(params ActionPlanServiceParams) *ActionPlanService {
	return &ActionPlanService{
		AbstractService: params.AbstractService,
		observations:    params.ObservationService,
	}
}

// ActionPlanInput carries the attributes to set, nil leaves an attribute unchanged.
// An empty TargetDate clears it.
type ActionPlanInput struct {
	Plan       *string               `json:"plan"`
	Owner      *string               `json:"owner"`
	TargetDate *string               `json:"targetDate"`
	Status     *string               `json:"status"`
	Retest     *objects.RetestStatus `json:"retest"`
}

func (s *ActionPlanService) CreateActionPlan(ctx context.Context, observationID string, input ActionPlanInput) (*objects.ActionPlan, error) {
	p, err := s.writer(ctx)
	if err != nil {
		return nil, err
	}

	if input.Plan == nil || strings.TrimSpace(*input.Plan) == "" {
		return nil, xerrors.Validation("plan is required")
	}

	plan := &objects.ActionPlan{
		ID:            uuid.NewString(),
		ObservationID: observationID,
		CreatedBy:     p.UserID,
	}

	if _, err := applyActionPlanInput(p, plan, input); err != nil {
		return nil, err
	}

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.gate(ctx, p, observationID); err != nil {
			return err
		}

		return s.repo.CreateActionPlan(ctx, plan)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, audittrail.NewEntry(ctx, audittrail.EntityActionPlan, plan.ID, "action_plan.create", plan))

	return plan, nil
}

func (s *ActionPlanService) UpdateActionPlan(ctx context.Context, id string, input ActionPlanInput) (*objects.ActionPlan, error) {
	p, err := s.writer(ctx)
	if err != nil {
		return nil, err
	}

	var (
		plan *objects.ActionPlan
		diff map[string]fields.Change
	)

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		found, err := s.repo.FindActionPlan(ctx, id)
		if err != nil {
			return notFound(err, "action_plan", id)
		}

		if err := s.gate(ctx, p, found.ObservationID); err != nil {
			return err
		}

		before := *found

		columns, err := applyActionPlanInput(p, found, input)
		if err != nil {
			return err
		}

		if len(columns) == 0 {
			return xerrors.Validation("nothing to update")
		}

		if err := s.repo.UpdateActionPlan(ctx, id, columns); err != nil {
			return notFound(err, "action_plan", id)
		}

		plan, diff = found, actionPlanDiff(&before, found)

		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(diff) > 0 {
		s.record(ctx, audittrail.NewEntry(ctx, audittrail.EntityActionPlan, id, "action_plan.update", diff))
	}

	return plan, nil
}

func (s *ActionPlanService) ListActionPlans(ctx context.Context, observationID string) ([]*objects.ActionPlan, error) {
	if _, err := s.observations.GetObservation(ctx, observationID); err != nil {
		return nil, err
	}

	return s.repo.ListActionPlans(ctx, observationID)
}

func (s *ActionPlanService) writer(ctx context.Context) (authz.Principal, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return p, err
	}

	if !authz.CanAuthorObservations(p.Role) && !authz.IsAuditee(p.Role) {
		return p, xerrors.Forbidden("role %s is not allowed to write action plans", p.Role)
	}

	return p, nil
}

// gate checks that the observation is visible to p and its audit is not locked.
func (s *ActionPlanService) gate(ctx context.Context, p authz.Principal, observationID string) error {
	obs, err := s.observations.loadVisible(ctx, p, observationID)
	if err != nil {
		return err
	}

	audit, err := s.repo.FindAudit(ctx, obs.AuditID)
	if err != nil {
		return notFound(err, "audit", obs.AuditID)
	}

	return workflow.CheckLock(p, audit)
}

// applyActionPlanInput sets input on plan and returns the changed columns.
// Completing a plan without an explicit retest value makes a retest due,
// replacing any earlier result.
func applyActionPlanInput(p authz.Principal, plan *objects.ActionPlan, input ActionPlanInput) (map[string]any, error) {
	columns := map[string]any{}

	if input.Plan != nil {
		if strings.TrimSpace(*input.Plan) == "" {
			return nil, xerrors.Validation("plan is required")
		}

		plan.Plan = *input.Plan
		columns["plan"] = plan.Plan
	}

	if input.Owner != nil {
		plan.Owner = *input.Owner
		columns["owner"] = plan.Owner
	}

	if input.TargetDate != nil {
		date, err := fields.Set(*input.TargetDate).Date()
		if err != nil {
			return nil, xerrors.Validation("invalid targetDate: %v", err)
		}

		plan.TargetDate = date
		columns["target_date"] = date
	}

	if input.Status != nil {
		plan.Status = *input.Status
		columns["status"] = plan.Status
	}

	switch {
	case input.Retest != nil:
		retest := *input.Retest
		if !retest.Valid() {
			return nil, xerrors.Validation("invalid retest %q", retest)
		}

		if (retest == objects.RetestPass || retest == objects.RetestFail) && !authz.CanAuthorObservations(p.Role) {
			return nil, xerrors.Forbidden("role %s is not allowed to record retest results", p.Role)
		}

		plan.Retest = retest
		columns["retest"] = string(retest)
	case input.Status != nil && strings.EqualFold(*input.Status, objects.ActionPlanCompleted):
		plan.Retest = objects.RetestDue
		columns["retest"] = string(objects.RetestDue)
	}

	return columns, nil
}

func actionPlanDiff(before, after *objects.ActionPlan) map[string]fields.Change {
	diff := map[string]fields.Change{}

	add := func(key string, b, a any) {
		if b != a {
			diff[key] = fields.Change{Before: b, After: a}
		}
	}

	add("plan", before.Plan, after.Plan)
	add("owner", before.Owner, after.Owner)
	add("status", before.Status, after.Status)
	add("retest", before.Retest, after.Retest)

	if !sameDate(before.TargetDate, after.TargetDate) {
		diff["targetDate"] = fields.Change{Before: before.TargetDate, After: after.TargetDate}
	}

	return diff
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return a.Equal(*b)
}
