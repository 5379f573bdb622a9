package store

import (
	"context"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/scopes"
)

var observationColumns = []string{
	"id", "audit_id", "plant_id",
	"observation_text", "risk_category", "likely_impact", "concerned_process", "auditor_person_id",
	"auditee_feedback", "action_plan_text", "target_date", "responsible_person", "current_status",
	"approval_status", "is_published", "locked_fields",
	"created_by", "created_at", "updated_at",
}

type observationRow struct {
	ID                string `sql:"id"`
	AuditID           string `sql:"audit_id"`
	PlantID           string `sql:"plant_id"`
	ObservationText   string `sql:"observation_text"`
	RiskCategory      string `sql:"risk_category"`
	LikelyImpact      string `sql:"likely_impact"`
	ConcernedProcess  string `sql:"concerned_process"`
	AuditorPersonID   string `sql:"auditor_person_id"`
	AuditeeFeedback   string `sql:"auditee_feedback"`
	ActionPlanText    string `sql:"action_plan_text"`
	TargetDate        string `sql:"target_date"`
	ResponsiblePerson string `sql:"responsible_person"`
	CurrentStatus     string `sql:"current_status"`
	ApprovalStatus    string `sql:"approval_status"`
	IsPublished       bool   `sql:"is_published"`
	LockedFields      string `sql:"locked_fields"`
	CreatedBy         string `sql:"created_by"`
	CreatedAt         string `sql:"created_at"`
	UpdatedAt         string `sql:"updated_at"`
}

func (r observationRow) toObject() *objects.Observation {
	var locked []string
	if r.LockedFields != "" {
		_ = json.Unmarshal([]byte(r.LockedFields), &locked)
	}

	return &objects.Observation{
		ID:                r.ID,
		AuditID:           r.AuditID,
		PlantID:           r.PlantID,
		ObservationText:   r.ObservationText,
		RiskCategory:      objects.RiskCategory(r.RiskCategory),
		LikelyImpact:      r.LikelyImpact,
		ConcernedProcess:  r.ConcernedProcess,
		AuditorPersonID:   r.AuditorPersonID,
		AuditeeFeedback:   r.AuditeeFeedback,
		ActionPlanText:    r.ActionPlanText,
		TargetDate:        parseTimePtr(r.TargetDate),
		ResponsiblePerson: r.ResponsiblePerson,
		CurrentStatus:     objects.CurrentStatus(r.CurrentStatus),
		ApprovalStatus:    objects.ApprovalStatus(r.ApprovalStatus),
		IsPublished:       r.IsPublished,
		LockedFields:      locked,
		CreatedBy:         r.CreatedBy,
		CreatedAt:         parseTime(r.CreatedAt),
		UpdatedAt:         parseTime(r.UpdatedAt),
	}
}

// EncodeLockedFields is the stored form of Observation.LockedFields.
func EncodeLockedFields(fields []string) string {
	if len(fields) == 0 {
		return "[]"
	}

	data, _ := json.Marshal(fields)

	return string(data)
}

func (s *Store) CreateObservation(ctx context.Context, o *objects.Observation) error {
	now := s.now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now

	if o.ApprovalStatus == "" {
		o.ApprovalStatus = objects.ApprovalDraft
	}

	if o.CurrentStatus == "" {
		o.CurrentStatus = objects.CurrentPending
	}

	query, args := s.builder().Insert("observations").
		Columns(observationColumns...).
		Values(o.ID, o.AuditID, o.PlantID,
			o.ObservationText, string(o.RiskCategory), o.LikelyImpact, o.ConcernedProcess, o.AuditorPersonID,
			o.AuditeeFeedback, o.ActionPlanText, formatTimePtr(o.TargetDate), o.ResponsiblePerson, string(o.CurrentStatus),
			string(o.ApprovalStatus), o.IsPublished, EncodeLockedFields(o.LockedFields),
			o.CreatedBy, formatTime(now), formatTime(now)).
		Query()

	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}

	return nil
}

func (s *Store) FindObservation(ctx context.Context, id string) (*objects.Observation, error) {
	found, err := s.FindObservations(ctx, []string{id})
	if err != nil {
		return nil, err
	}

	if len(found) == 0 {
		return nil, ErrNotFound
	}

	return found[0], nil
}

// FindObservations returns the existing observations among ids, in no particular order.
func (s *Store) FindObservations(ctx context.Context, ids []string) ([]*objects.Observation, error) {
	query, args := s.builder().Select(observationColumns...).
		From(s.builder().Table("observations")).
		Where(entsql.In("id", toArgs(ids)...)).
		Query()

	return s.scanObservations(ctx, query, args)
}

// ListObservations lists observations matching filter. A non nil visibility restricts the
// result to published approved observations and those inside the scope filter.
func (s *Store) ListObservations(ctx context.Context, filter objects.ObservationFilter, visibility *scopes.Filter) ([]*objects.Observation, error) {
	sel := s.builder().Select(observationColumns...).
		From(s.builder().Table("observations")).
		OrderBy(entsql.Desc("created_at"), "id")

	if filter.AuditID != "" {
		sel.Where(entsql.EQ("audit_id", filter.AuditID))
	}

	if filter.ApprovalStatus != "" {
		sel.Where(entsql.EQ("approval_status", string(filter.ApprovalStatus)))
	}

	if filter.IsPublished != nil {
		sel.Where(entsql.EQ("is_published", *filter.IsPublished))
	}

	if visibility != nil {
		sel.Where(visibilityPredicate(*visibility))
	}

	if filter.Limit > 0 {
		sel.Limit(filter.Limit)
	}

	if filter.Offset > 0 {
		sel.Offset(filter.Offset)
	}

	query, args := sel.Query()

	return s.scanObservations(ctx, query, args)
}

func visibilityPredicate(scope scopes.Filter) *entsql.Predicate {
	published := entsql.And(
		entsql.EQ("approval_status", string(objects.ApprovalApproved)),
		entsql.EQ("is_published", true),
	)

	if p := scope.Predicate("id", "audit_id"); p != nil {
		return entsql.Or(published, p)
	}

	return published
}

// VisibleAuditIDs returns the audits holding at least one observation visible under scope.
func (s *Store) VisibleAuditIDs(ctx context.Context, scope scopes.Filter) ([]string, error) {
	query, args := s.builder().Select("audit_id").
		Distinct().
		From(s.builder().Table("observations")).
		Where(visibilityPredicate(scope)).
		Query()

	var rows []auditIDRow
	if err := s.queryRows(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query visible audits: %w", err)
	}

	return lo.Map(rows, func(r auditIDRow, _ int) string { return r.AuditID }), nil
}

type auditIDRow struct {
	AuditID string `sql:"audit_id"`
}

func (s *Store) scanObservations(ctx context.Context, query string, args []any) ([]*objects.Observation, error) {
	var rows []observationRow
	if err := s.queryRows(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}

	return lo.Map(rows, func(r observationRow, _ int) *objects.Observation { return r.toObject() }), nil
}

// UpdateObservation applies columns to the observation.
func (s *Store) UpdateObservation(ctx context.Context, id string, columns map[string]any) error {
	n, err := s.update(ctx, "observations", columns, entsql.EQ("id", id), true)
	if err != nil {
		return fmt.Errorf("update observation %s: %w", id, err)
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// TransitionGuard is the precondition of a conditional multi row update.
type TransitionGuard struct {
	ApprovalStatuses []objects.ApprovalStatus
	IsPublished      *bool
}

// TransitionObservations updates every id whose row still satisfies guard and
// returns how many rows changed. Callers compare it with len(ids) to detect
// concurrent transitions.
func (s *Store) TransitionObservations(ctx context.Context, ids []string, guard TransitionGuard, columns map[string]any) (int64, error) {
	preds := []*entsql.Predicate{entsql.In("id", toArgs(ids)...)}

	if len(guard.ApprovalStatuses) > 0 {
		preds = append(preds, entsql.In("approval_status", toArgs(guard.ApprovalStatuses)...))
	}

	if guard.IsPublished != nil {
		preds = append(preds, entsql.EQ("is_published", *guard.IsPublished))
	}

	n, err := s.update(ctx, "observations", columns, entsql.And(preds...), true)
	if err != nil {
		return 0, fmt.Errorf("transition observations: %w", err)
	}

	return n, nil
}
