package biz

import (
	"context"
	"time"

	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/scopes"
	"github.com/looplj/auditflow/internal/store"
)

// Repository is the storage the services run on. Every method joins the
// transaction carried by ctx when RunInTransaction started one.
type Repository interface {
	RunInTransaction(ctx context.Context, fn func(context.Context) error) error

	CreateAudit(ctx context.Context, audit *objects.Audit) error
	FindAudit(ctx context.Context, id string) (*objects.Audit, error)
	FindAuditsByID(ctx context.Context, ids []string) (map[string]*objects.Audit, error)
	ListAudits(ctx context.Context, filter store.AuditFilter) ([]*objects.Audit, error)
	UpdateAudit(ctx context.Context, id string, columns map[string]any) error
	SetAuditLock(ctx context.Context, id string, locked bool, actorID string, at time.Time) (bool, error)
	CompleteAudit(ctx context.Context, id, actorID string, at time.Time, keepLockedAt bool) (bool, error)

	CreateObservation(ctx context.Context, obs *objects.Observation) error
	FindObservation(ctx context.Context, id string) (*objects.Observation, error)
	FindObservations(ctx context.Context, ids []string) ([]*objects.Observation, error)
	ListObservations(ctx context.Context, filter objects.ObservationFilter, visibility *scopes.Filter) ([]*objects.Observation, error)
	VisibleAuditIDs(ctx context.Context, scope scopes.Filter) ([]string, error)
	UpdateObservation(ctx context.Context, id string, columns map[string]any) error
	TransitionObservations(ctx context.Context, ids []string, guard store.TransitionGuard, columns map[string]any) (int64, error)

	CreateApprovals(ctx context.Context, approvals ...*objects.Approval) error
	ListApprovals(ctx context.Context, observationID string) ([]*objects.Approval, error)

	CreateActionPlan(ctx context.Context, plan *objects.ActionPlan) error
	FindActionPlan(ctx context.Context, id string) (*objects.ActionPlan, error)
	ListActionPlans(ctx context.Context, observationID string) ([]*objects.ActionPlan, error)
	UpdateActionPlan(ctx context.Context, id string, columns map[string]any) error

	CreateChangeRequest(ctx context.Context, cr *objects.ChangeRequest) error
	FindChangeRequest(ctx context.Context, id string) (*objects.ChangeRequest, error)
	ListChangeRequests(ctx context.Context, observationID string, status objects.ChangeRequestStatus) ([]*objects.ChangeRequest, error)
	DecideChangeRequest(ctx context.Context, cr *objects.ChangeRequest) (bool, error)

	CreateInvite(ctx context.Context, invite *objects.Invite) error
	FindInviteByToken(ctx context.Context, token string) (*objects.Invite, error)
	RedeemInvite(ctx context.Context, id, userID string, at time.Time) (bool, error)
}

var _ Repository = (*store.Store)(nil)
