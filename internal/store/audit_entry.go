package store

import (
	"context"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/looplj/auditflow/internal/audittrail"
)

const defaultAuditEntryLimit = 100

type auditEntryRow struct {
	ID         string `sql:"id"`
	EntityType string `sql:"entity_type"`
	EntityID   string `sql:"entity_id"`
	Action     string `sql:"action"`
	ActorID    string `sql:"actor_id"`
	Diff       string `sql:"diff"`
	CreatedAt  string `sql:"created_at"`
}

// AuditEntries adapts the store to the audit trail writer and reader.
type AuditEntries struct {
	store *Store
}

func (s *Store) AuditEntries() *AuditEntries {
	return &AuditEntries{store: s}
}

// Write never joins the caller's transaction, entries are written after commit.
func (a *AuditEntries) Write(ctx context.Context, entry audittrail.Entry) error {
	s := a.store

	query, args := s.builder().Insert("audit_entries").
		Columns("id", "entity_type", "entity_id", "action", "actor_id", "diff", "created_at").
		Values(entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.ActorID, nullableJSON(entry.Diff), formatTime(entry.CreatedAt)).
		Query()

	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

func (a *AuditEntries) QueryEntries(ctx context.Context, filter audittrail.Filter) ([]audittrail.Entry, error) {
	s := a.store

	sel := s.builder().Select("id", "entity_type", "entity_id", "action", "actor_id", "diff", "created_at").
		From(s.builder().Table("audit_entries")).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))

	for _, eq := range []struct{ column, value string }{
		{"entity_type", filter.EntityType},
		{"entity_id", filter.EntityID},
		{"actor_id", filter.ActorID},
		{"action", filter.Action},
	} {
		if eq.value != "" {
			sel.Where(entsql.EQ(eq.column, eq.value))
		}
	}

	if filter.Since != nil {
		sel.Where(entsql.GTE("created_at", formatTime(*filter.Since)))
	}

	if filter.Until != nil {
		sel.Where(entsql.LTE("created_at", formatTime(*filter.Until)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditEntryLimit
	}

	query, args := sel.Limit(limit).Query()

	var rows []auditEntryRow
	if err := s.queryRows(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}

	return lo.Map(rows, func(r auditEntryRow, _ int) audittrail.Entry {
		entry := audittrail.Entry{
			ID:         r.ID,
			EntityType: r.EntityType,
			EntityID:   r.EntityID,
			Action:     r.Action,
			ActorID:    r.ActorID,
			CreatedAt:  parseTime(r.CreatedAt),
		}
		if r.Diff != "" {
			entry.Diff = json.RawMessage(r.Diff)
		}

		return entry
	}), nil
}
