// Package audittrail records every mutation in an append-only log.
//
// Writers may fail. Services only talk to a Sink, whose Record never returns an
// error: BestEffort turns a Writer into a Sink by logging failures and recovering
// from panics, so a broken trail never rolls back or fails a committed mutation.
package audittrail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/log"
	"github.com/looplj/auditflow/internal/metrics"
)

const (
	EntityObservation   = "observation"
	EntityAudit         = "audit"
	EntityActionPlan    = "action_plan"
	EntityChangeRequest = "change_request"
	EntityInvite        = "invite"
)

// Entry is one audit trail row.
type Entry struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Action     string          `json:"action"`
	ActorID    string          `json:"actorId"`
	Diff       json.RawMessage `json:"diff,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// NewEntry builds an entry for the principal of ctx, diff is marshalled unless it is already JSON.
func NewEntry(ctx context.Context, entityType, entityID, action string, diff any) Entry {
	entry := Entry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
	}

	if p, ok := authz.GetPrincipal(ctx); ok {
		entry.ActorID = p.UserID
	}

	switch d := diff.(type) {
	case nil:
	case json.RawMessage:
		entry.Diff = d
	case []byte:
		entry.Diff = d
	default:
		data, err := json.Marshal(d)
		if err != nil {
			log.Warn(ctx, "failed to marshal audit trail diff", log.String("action", action), log.Cause(err))
		} else {
			entry.Diff = data
		}
	}

	return entry
}

// Writer persists entries.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
}

// Sink records entries and never fails.
type Sink interface {
	Record(ctx context.Context, entries ...Entry)
}

// Filter narrows audit trail queries.
type Filter struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     string
	Since      *time.Time
	Until      *time.Time
	Limit      int
}

// Reader queries entries, newest first.
type Reader interface {
	QueryEntries(ctx context.Context, filter Filter) ([]Entry, error)
}

type BestEffort struct {
	writer Writer
	now    func() time.Time
}

func NewBestEffort(writer Writer) *BestEffort {
	return &BestEffort{writer: writer, now: time.Now}
}

// Record writes every entry independently, a failing entry does not stop the others.
func (s *BestEffort) Record(ctx context.Context, entries ...Entry) {
	for _, entry := range entries {
		s.record(ctx, entry)
	}
}

func (s *BestEffort) record(ctx context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, entry, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := s.writer.Write(ctx, entry); err != nil {
		s.fail(ctx, entry, err)
	}
}

func (s *BestEffort) fail(ctx context.Context, entry Entry, err error) {
	metrics.RecordAuditTrailError(ctx, entry.Action)
	log.Error(ctx, "failed to write audit trail entry",
		log.String("entity_type", entry.EntityType),
		log.String("entity_id", entry.EntityID),
		log.String("action", entry.Action),
		log.Cause(err),
	)
}

// Discard drops every entry.
type Discard struct{}

func (Discard) Record(context.Context, ...Entry) {}
