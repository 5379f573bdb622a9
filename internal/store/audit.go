package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/looplj/auditflow/internal/objects"
)

var auditColumns = []string{
	"id", "title", "plant_id", "audit_head_id", "is_locked", "locked_at", "locked_by",
	"completed_at", "completed_by", "created_by", "created_at", "updated_at",
}

type auditRow struct {
	ID          string `sql:"id"`
	Title       string `sql:"title"`
	PlantID     string `sql:"plant_id"`
	AuditHeadID string `sql:"audit_head_id"`
	IsLocked    bool   `sql:"is_locked"`
	LockedAt    string `sql:"locked_at"`
	LockedBy    string `sql:"locked_by"`
	CompletedAt string `sql:"completed_at"`
	CompletedBy string `sql:"completed_by"`
	CreatedBy   string `sql:"created_by"`
	CreatedAt   string `sql:"created_at"`
	UpdatedAt   string `sql:"updated_at"`
}

func (r auditRow) toObject() *objects.Audit {
	return &objects.Audit{
		ID:          r.ID,
		Title:       r.Title,
		PlantID:     r.PlantID,
		AuditHeadID: r.AuditHeadID,
		IsLocked:    r.IsLocked,
		LockedAt:    parseTimePtr(r.LockedAt),
		LockedBy:    r.LockedBy,
		CompletedAt: parseTimePtr(r.CompletedAt),
		CompletedBy: r.CompletedBy,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
}

// AuditFilter narrows ListAudits, nil IDs means every audit.
type AuditFilter struct {
	IDs    []string
	Limit  int
	Offset int
}

func (s *Store) CreateAudit(ctx context.Context, a *objects.Audit) error {
	now := s.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	query, args := s.builder().Insert("audits").
		Columns(auditColumns...).
		Values(a.ID, a.Title, a.PlantID, a.AuditHeadID, a.IsLocked, formatTimePtr(a.LockedAt), a.LockedBy,
			formatTimePtr(a.CompletedAt), a.CompletedBy, a.CreatedBy, formatTime(now), formatTime(now)).
		Query()

	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}

	return nil
}

func (s *Store) FindAudit(ctx context.Context, id string) (*objects.Audit, error) {
	audits, err := s.FindAuditsByID(ctx, []string{id})
	if err != nil {
		return nil, err
	}

	audit, ok := audits[id]
	if !ok {
		return nil, ErrNotFound
	}

	return audit, nil
}

func (s *Store) FindAuditsByID(ctx context.Context, ids []string) (map[string]*objects.Audit, error) {
	query, args := s.builder().Select(auditColumns...).
		From(s.builder().Table("audits")).
		Where(entsql.In("id", toArgs(ids)...)).
		Query()

	var rows []auditRow
	if err := s.queryRows(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query audits: %w", err)
	}

	out := make(map[string]*objects.Audit, len(rows))
	for _, r := range rows {
		out[r.ID] = r.toObject()
	}

	return out, nil
}

func (s *Store) ListAudits(ctx context.Context, filter AuditFilter) ([]*objects.Audit, error) {
	sel := s.builder().Select(auditColumns...).
		From(s.builder().Table("audits")).
		OrderBy(entsql.Desc("created_at"), "id")

	if filter.IDs != nil {
		sel.Where(entsql.In("id", toArgs(filter.IDs)...))
	}

	if filter.Limit > 0 {
		sel.Limit(filter.Limit)
	}

	if filter.Offset > 0 {
		sel.Offset(filter.Offset)
	}

	query, args := sel.Query()

	var rows []auditRow
	if err := s.queryRows(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}

	out := make([]*objects.Audit, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toObject())
	}

	return out, nil
}

// UpdateAudit applies columns to the audit.
func (s *Store) UpdateAudit(ctx context.Context, id string, columns map[string]any) error {
	n, err := s.update(ctx, "audits", columns, entsql.EQ("id", id), true)
	if err != nil {
		return fmt.Errorf("update audit %s: %w", id, err)
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// SetAuditLock flips the lock flag, it reports false when the audit was already in that state.
func (s *Store) SetAuditLock(ctx context.Context, id string, locked bool, actorID string, at time.Time) (bool, error) {
	columns := map[string]any{"is_locked": locked}
	if locked {
		columns["locked_at"] = at
		columns["locked_by"] = actorID
	} else {
		columns["locked_at"] = nil
		columns["locked_by"] = ""
	}

	n, err := s.update(ctx, "audits", columns, entsql.And(entsql.EQ("id", id), entsql.EQ("is_locked", !locked)), true)
	if err != nil {
		return false, fmt.Errorf("set lock of audit %s: %w", id, err)
	}

	return n == 1, nil
}

// CompleteAudit marks the audit completed and locks it in the same statement.
func (s *Store) CompleteAudit(ctx context.Context, id, actorID string, at time.Time, keepLockedAt bool) (bool, error) {
	columns := map[string]any{
		"completed_at": at,
		"completed_by": actorID,
		"is_locked":    true,
	}
	if !keepLockedAt {
		columns["locked_at"] = at
		columns["locked_by"] = actorID
	}

	n, err := s.update(ctx, "audits", columns, entsql.And(entsql.EQ("id", id), entsql.IsNull("completed_at")), true)
	if err != nil {
		return false, fmt.Errorf("complete audit %s: %w", id, err)
	}

	return n == 1, nil
}
