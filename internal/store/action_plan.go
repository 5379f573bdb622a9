package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/looplj/auditflow/internal/objects"
)

var actionPlanColumns = []string{
	"id", "observation_id", "plan", "owner", "target_date", "status", "retest", "created_by", "created_at", "updated_at",
}

type actionPlanRow struct {
	ID            string `sql:"id"`
	ObservationID string `sql:"observation_id"`
	Plan          string `sql:"plan"`
	Owner         string `sql:"owner"`
	TargetDate    string `sql:"target_date"`
	Status        string `sql:"status"`
	Retest        string `sql:"retest"`
	CreatedBy     string `sql:"created_by"`
	CreatedAt     string `sql:"created_at"`
	UpdatedAt     string `sql:"updated_at"`
}

func (r actionPlanRow) toObject() *objects.ActionPlan {
	return &objects.ActionPlan{
		ID:            r.ID,
		ObservationID: r.ObservationID,
		Plan:          r.Plan,
		Owner:         r.Owner,
		TargetDate:    parseTimePtr(r.TargetDate),
		Status:        r.Status,
		Retest:        objects.RetestStatus(r.Retest),
		CreatedBy:     r.CreatedBy,
		CreatedAt:     parseTime(r.CreatedAt),
		UpdatedAt:     parseTime(r.UpdatedAt),
	}
}

func (s *Store) CreateActionPlan(ctx context.Context, p *objects.ActionPlan) error {
	now := s.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	query, args := s.builder().Insert("action_plans").
		Columns(actionPlanColumns...).
		Values(p.ID, p.ObservationID, p.Plan, p.Owner, formatTimePtr(p.TargetDate), p.Status, string(p.Retest),
			p.CreatedBy, formatTime(now), formatTime(now)).
		Query()

	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("insert action plan: %w", err)
	}

	return nil
}

func (s *Store) FindActionPlan(ctx context.Context, id string) (*objects.ActionPlan, error) {
	plans, err := s.queryActionPlans(ctx, entsql.EQ("id", id))
	if err != nil {
		return nil, err
	}

	if len(plans) == 0 {
		return nil, ErrNotFound
	}

	return plans[0], nil
}

func (s *Store) ListActionPlans(ctx context.Context, observationID string) ([]*objects.ActionPlan, error) {
	return s.queryActionPlans(ctx, entsql.EQ("observation_id", observationID))
}

func (s *Store) queryActionPlans(ctx context.Context, where *entsql.Predicate) ([]*objects.ActionPlan, error) {
	query, args := s.builder().Select(actionPlanColumns...).
		From(s.builder().Table("action_plans")).
		Where(where).
		OrderBy("created_at", "id").
		Query()

	var rows []actionPlanRow
	if err := s.queryRows(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query action plans: %w", err)
	}

	return lo.Map(rows, func(r actionPlanRow, _ int) *objects.ActionPlan { return r.toObject() }), nil
}

func (s *Store) UpdateActionPlan(ctx context.Context, id string, columns map[string]any) error {
	n, err := s.update(ctx, "action_plans", columns, entsql.EQ("id", id), true)
	if err != nil {
		return fmt.Errorf("update action plan %s: %w", id, err)
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}
