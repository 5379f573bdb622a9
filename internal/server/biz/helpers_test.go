package biz

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/looplj/auditflow/internal/audittrail"
	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/notify"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/scopes"
	"github.com/looplj/auditflow/internal/server/db"
	"github.com/looplj/auditflow/internal/store"
)

const (
	cfoID     = "cfo-1"
	cxoID     = "cxo-1"
	headID    = "head-1"
	auditorID = "auditor-1"
	auditeeID = "auditee-1"
	guestID   = "guest-1"
)

type capturedNotification struct {
	EntityID string
	Payload  notify.Payload
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []capturedNotification
}

func (n *captureNotifier) Notify(_ context.Context, entityID string, payload notify.Payload) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, capturedNotification{EntityID: entityID, Payload: payload})
}

func (n *captureNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Payload.Event)
	}

	return out
}

type testEnv struct {
	store    *store.Store
	entries  *store.AuditEntries
	notifier *captureNotifier

	observations   *ObservationService
	audits         *AuditService
	changeRequests *ChangeRequestService
	actionPlans    *ActionPlanService
	invites        *InviteService
	auditTrail     *AuditTrailService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	drv, err := db.NewDriver(db.Config{Dialect: "sqlite", DSN: "file:" + uuid.NewString() + "?mode=memory&_pragma=foreign_keys(1)"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })

	st := store.New(drv)
	entries := st.AuditEntries()
	notifier := &captureNotifier{}
	resolver := scopes.NewResolver(st, nil)

	abstract := NewAbstractService(AbstractServiceParams{
		Repository: st,
		Trail:      audittrail.NewBestEffort(entries),
		Notifier:   notifier,
	})

	observations := NewObservationService(ObservationServiceParams{AbstractService: abstract, Resolver: resolver})

	return &testEnv{
		store:          st,
		entries:        entries,
		notifier:       notifier,
		observations:   observations,
		audits:         NewAuditService(AuditServiceParams{AbstractService: abstract, Resolver: resolver}),
		changeRequests: NewChangeRequestService(ChangeRequestServiceParams{AbstractService: abstract}),
		actionPlans:    NewActionPlanService(ActionPlanServiceParams{AbstractService: abstract, ObservationService: observations}),
		invites:        NewInviteService(InviteServiceParams{AbstractService: abstract, Resolver: resolver}),
		auditTrail:     NewAuditTrailService(AuditTrailServiceParams{Reader: entries}),
	}
}

func as(userID string, role authz.Role) context.Context {
	return authz.NewUserContext(context.Background(), userID, role)
}

func (e *testEnv) seedAudit(t *testing.T, id string, locked bool) *objects.Audit {
	t.Helper()

	audit := &objects.Audit{ID: id, Title: "Audit " + id, PlantID: "plant-1", AuditHeadID: headID, IsLocked: locked, CreatedBy: cfoID}
	require.NoError(t, e.store.CreateAudit(context.Background(), audit))

	return audit
}

func (e *testEnv) seedObservation(t *testing.T, id, auditID string, status objects.ApprovalStatus, published bool) *objects.Observation {
	t.Helper()

	obs := &objects.Observation{
		ID:              id,
		AuditID:         auditID,
		PlantID:         "plant-1",
		ObservationText: "finding " + id,
		ApprovalStatus:  status,
		IsPublished:     published,
		CreatedBy:       auditorID,
	}
	require.NoError(t, e.store.CreateObservation(context.Background(), obs))

	return obs
}

func (e *testEnv) reload(t *testing.T, id string) *objects.Observation {
	t.Helper()

	obs, err := e.store.FindObservation(context.Background(), id)
	require.NoError(t, err)

	return obs
}

func (e *testEnv) trail(t *testing.T, entityID string) []string {
	t.Helper()

	entries, err := e.entries.QueryEntries(context.Background(), audittrail.Filter{EntityID: entityID})
	require.NoError(t, err)

	return lo.Map(entries, func(entry audittrail.Entry, _ int) string { return entry.Action })
}
