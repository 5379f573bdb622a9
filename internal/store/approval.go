package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/looplj/auditflow/internal/objects"
)

type approvalRow struct {
	ID            string `sql:"id"`
	ObservationID string `sql:"observation_id"`
	Status        string `sql:"status"`
	ActorID       string `sql:"actor_id"`
	Comment       string `sql:"comment"`
	CreatedAt     string `sql:"created_at"`
}

// CreateApprovals appends rows to the approval history in one statement.
func (s *Store) CreateApprovals(ctx context.Context, approvals ...*objects.Approval) error {
	if len(approvals) == 0 {
		return nil
	}

	now := s.now().UTC()
	insert := s.builder().Insert("approvals").
		Columns("id", "observation_id", "status", "actor_id", "comment", "created_at")

	for _, a := range approvals {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}

		insert.Values(a.ID, a.ObservationID, string(a.Status), a.ActorID, a.Comment, formatTime(a.CreatedAt))
	}

	query, args := insert.Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("insert approvals: %w", err)
	}

	return nil
}

// ListApprovals returns the approval history of an observation, oldest first.
func (s *Store) ListApprovals(ctx context.Context, observationID string) ([]*objects.Approval, error) {
	query, args := s.builder().Select("id", "observation_id", "status", "actor_id", "comment", "created_at").
		From(s.builder().Table("approvals")).
		Where(entsql.EQ("observation_id", observationID)).
		OrderBy("created_at", "id").
		Query()

	var rows []approvalRow
	if err := s.queryRows(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}

	return lo.Map(rows, func(r approvalRow, _ int) *objects.Approval {
		return &objects.Approval{
			ID:            r.ID,
			ObservationID: r.ObservationID,
			Status:        objects.ApprovalStatus(r.Status),
			ActorID:       r.ActorID,
			Comment:       r.Comment,
			CreatedAt:     parseTime(r.CreatedAt),
		}
	}), nil
}
