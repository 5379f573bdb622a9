package store

import (
	"context"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/looplj/auditflow/internal/objects"
)

var changeRequestColumns = []string{
	"id", "observation_id", "requester_id", "requester_role", "patch", "reason", "status",
	"decided_by", "decided_at", "decision_comment", "diff", "created_at",
}

type changeRequestRow struct {
	ID              string `sql:"id"`
	ObservationID   string `sql:"observation_id"`
	RequesterID     string `sql:"requester_id"`
	RequesterRole   string `sql:"requester_role"`
	Patch           string `sql:"patch"`
	Reason          string `sql:"reason"`
	Status          string `sql:"status"`
	DecidedBy       string `sql:"decided_by"`
	DecidedAt       string `sql:"decided_at"`
	DecisionComment string `sql:"decision_comment"`
	Diff            string `sql:"diff"`
	CreatedAt       string `sql:"created_at"`
}

func (r changeRequestRow) toObject() *objects.ChangeRequest {
	cr := &objects.ChangeRequest{
		ID:              r.ID,
		ObservationID:   r.ObservationID,
		RequesterID:     r.RequesterID,
		RequesterRole:   r.RequesterRole,
		Patch:           json.RawMessage(r.Patch),
		Reason:          r.Reason,
		Status:          objects.ChangeRequestStatus(r.Status),
		DecidedBy:       r.DecidedBy,
		DecidedAt:       parseTimePtr(r.DecidedAt),
		DecisionComment: r.DecisionComment,
		CreatedAt:       parseTime(r.CreatedAt),
	}

	if r.Diff != "" {
		cr.Diff = json.RawMessage(r.Diff)
	}

	return cr
}

func (s *Store) CreateChangeRequest(ctx context.Context, cr *objects.ChangeRequest) error {
	now := s.now().UTC()
	cr.CreatedAt = now

	if cr.Status == "" {
		cr.Status = objects.ChangeRequestPending
	}

	query, args := s.builder().Insert("change_requests").
		Columns(changeRequestColumns...).
		Values(cr.ID, cr.ObservationID, cr.RequesterID, cr.RequesterRole, string(cr.Patch), cr.Reason, string(cr.Status),
			cr.DecidedBy, formatTimePtr(cr.DecidedAt), cr.DecisionComment, nullableJSON(cr.Diff), formatTime(now)).
		Query()

	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("insert change request: %w", err)
	}

	return nil
}

func (s *Store) FindChangeRequest(ctx context.Context, id string) (*objects.ChangeRequest, error) {
	found, err := s.queryChangeRequests(ctx, entsql.EQ("id", id))
	if err != nil {
		return nil, err
	}

	if len(found) == 0 {
		return nil, ErrNotFound
	}

	return found[0], nil
}

// ListChangeRequests lists the requests of an observation, an empty status lists all of them.
func (s *Store) ListChangeRequests(ctx context.Context, observationID string, status objects.ChangeRequestStatus) ([]*objects.ChangeRequest, error) {
	where := entsql.EQ("observation_id", observationID)
	if status != "" {
		where = entsql.And(where, entsql.EQ("status", string(status)))
	}

	return s.queryChangeRequests(ctx, where)
}

func (s *Store) queryChangeRequests(ctx context.Context, where *entsql.Predicate) ([]*objects.ChangeRequest, error) {
	query, args := s.builder().Select(changeRequestColumns...).
		From(s.builder().Table("change_requests")).
		Where(where).
		OrderBy("created_at", "id").
		Query()

	var rows []changeRequestRow
	if err := s.queryRows(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query change requests: %w", err)
	}

	return lo.Map(rows, func(r changeRequestRow, _ int) *objects.ChangeRequest { return r.toObject() }), nil
}

// DecideChangeRequest records the decision, it reports false when the request is no longer pending.
func (s *Store) DecideChangeRequest(ctx context.Context, cr *objects.ChangeRequest) (bool, error) {
	columns := map[string]any{
		"status":           string(cr.Status),
		"decided_by":       cr.DecidedBy,
		"decided_at":       cr.DecidedAt,
		"decision_comment": cr.DecisionComment,
		"diff":             nullableJSON(cr.Diff),
	}

	n, err := s.update(ctx, "change_requests", columns,
		entsql.And(entsql.EQ("id", cr.ID), entsql.EQ("status", string(objects.ChangeRequestPending))), false)
	if err != nil {
		return false, fmt.Errorf("decide change request %s: %w", cr.ID, err)
	}

	return n == 1, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	return string(raw)
}
