package biz

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/fx"

	"github.com/looplj/auditflow/internal/audittrail"
	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/fields"
	"github.com/looplj/auditflow/internal/log"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
	"github.com/looplj/auditflow/internal/scopes"
	"github.com/looplj/auditflow/internal/store"
	"github.com/looplj/auditflow/internal/workflow"
)

type AuditServiceParams struct {
	fx.In

	AbstractService *AbstractService
	Resolver        *scopes.Resolver
}

type AuditService struct {
	*AbstractService

	resolver *scopes.Resolver
}

func NewAuditService(params AuditServiceParams) *AuditService {
	return &AuditService{
		AbstractService: params.AbstractService,
		resolver:        params.Resolver,
	}
}

type CreateAuditInput struct {
	Title       string `json:"title" binding:"required"`
	PlantID     string `json:"plantId"`
	AuditHeadID string `json:"auditHeadId"`
}

type UpdateAuditInput struct {
	Title   *string `json:"title"`
	PlantID *string `json:"plantId"`
}

type ListAuditsInput struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

func (s *AuditService) CreateAudit(ctx context.Context, input CreateAuditInput) (*objects.Audit, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	if err := authz.AssertCFOOrCXOTeam(p, "create audits"); err != nil {
		return nil, err
	}

	if input.Title == "" {
		return nil, xerrors.Validation("audit title is required")
	}

	audit := &objects.Audit{
		ID:          uuid.NewString(),
		Title:       input.Title,
		PlantID:     input.PlantID,
		AuditHeadID: input.AuditHeadID,
		CreatedBy:   p.UserID,
	}

	if err := s.repo.CreateAudit(ctx, audit); err != nil {
		return nil, err
	}

	s.record(ctx, audittrail.NewEntry(ctx, audittrail.EntityAudit, audit.ID, "audit.create", audit))

	return audit, nil
}

// UpdateAudit changes the audit attributes, it is blocked for non-CFO principals while the audit is locked.
func (s *AuditService) UpdateAudit(ctx context.Context, id string, input UpdateAuditInput) (*objects.Audit, error) {
	columns := map[string]any{}
	if input.Title != nil {
		if *input.Title == "" {
			return nil, xerrors.Validation("audit title is required")
		}

		columns["title"] = *input.Title
	}

	if input.PlantID != nil {
		columns["plant_id"] = *input.PlantID
	}

	if len(columns) == 0 {
		return nil, xerrors.Validation("nothing to update")
	}

	return s.mutate(ctx, id, "audit.update", "update audits", columns)
}

// SetAuditHead designates the user allowed to approve and reject the audit's observations.
func (s *AuditService) SetAuditHead(ctx context.Context, id, userID string) (*objects.Audit, error) {
	return s.mutate(ctx, id, "audit.set_head", "assign audit heads", map[string]any{"audit_head_id": userID})
}

func (s *AuditService) mutate(ctx context.Context, id, action, capability string, columns map[string]any) (*objects.Audit, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	if err := authz.AssertCFOOrCXOTeam(p, capability); err != nil {
		return nil, err
	}

	var before, after *objects.Audit

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		audit, err := s.repo.FindAudit(ctx, id)
		if err != nil {
			return notFound(err, "audit", id)
		}

		if err := workflow.CheckLock(p, audit); err != nil {
			return err
		}

		if err := s.repo.UpdateAudit(ctx, id, columns); err != nil {
			return notFound(err, "audit", id)
		}

		before = audit
		after, err = s.repo.FindAudit(ctx, id)

		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, audittrail.NewEntry(ctx, audittrail.EntityAudit, id, action, auditDiff(before, after)))

	return after, nil
}

func (s *AuditService) LockAudit(ctx context.Context, id string) (*objects.Audit, error) {
	return s.operate(ctx, workflow.LockAudit, id)
}

func (s *AuditService) UnlockAudit(ctx context.Context, id string) (*objects.Audit, error) {
	return s.operate(ctx, workflow.UnlockAudit, id)
}

// CompleteAudit marks the audit completed and locks it in the same statement.
func (s *AuditService) CompleteAudit(ctx context.Context, id string) (*objects.Audit, error) {
	return s.operate(ctx, workflow.CompleteAudit, id)
}

func (s *AuditService) operate(ctx context.Context, op workflow.AuditOperation, id string) (*objects.Audit, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	var (
		before, after *objects.Audit
		warn          bool
	)

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		audit, err := s.repo.FindAudit(ctx, id)
		if err != nil {
			return notFound(err, "audit", id)
		}

		warn, err = workflow.CheckAuditOperation(p, op, audit)
		if err != nil {
			return err
		}

		now := s.nowUTC()

		var changed bool

		switch op {
		case workflow.LockAudit:
			changed, err = s.repo.SetAuditLock(ctx, id, true, p.UserID, now)
		case workflow.UnlockAudit:
			changed, err = s.repo.SetAuditLock(ctx, id, false, p.UserID, now)
		case workflow.CompleteAudit:
			changed, err = s.repo.CompleteAudit(ctx, id, p.UserID, now, audit.IsLocked)
		}

		if err != nil {
			return err
		}

		if !changed {
			return xerrors.AlreadyInState("audit %s changed concurrently", id)
		}

		before = audit
		after, err = s.repo.FindAudit(ctx, id)

		return err
	})
	if err != nil {
		return nil, err
	}

	if warn {
		log.Warn(ctx, "completed audit unlocked by CXO team",
			log.String("audit_id", id),
			log.String("principal", p.String()),
		)
	}

	s.record(ctx, audittrail.NewEntry(ctx, audittrail.EntityAudit, id, op.Action(), auditDiff(before, after)))

	return after, nil
}

// ListAudits lists every audit for unrestricted principals. Restricted ones see
// the audits of their grant and the audits holding an observation they can read.
func (s *AuditService) ListAudits(ctx context.Context, input ListAuditsInput) ([]*objects.Audit, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	filter := store.AuditFilter{Limit: input.Limit, Offset: input.Offset}

	if authz.IsRestricted(p.Role) {
		filter.IDs, err = s.visibleAuditIDs(ctx, p)
		if err != nil {
			return nil, err
		}
	}

	return s.repo.ListAudits(ctx, filter)
}

func (s *AuditService) GetAudit(ctx context.Context, id string) (*objects.Audit, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	if authz.IsRestricted(p.Role) {
		visible, err := s.visibleAuditIDs(ctx, p)
		if err != nil {
			return nil, err
		}

		if !lo.Contains(visible, id) {
			return nil, xerrors.NotFound("audit", id)
		}
	}

	audit, err := s.repo.FindAudit(ctx, id)
	if err != nil {
		return nil, notFound(err, "audit", id)
	}

	return audit, nil
}

func (s *AuditService) visibleAuditIDs(ctx context.Context, p authz.Principal) ([]string, error) {
	grant, err := s.resolver.Resolve(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	ids, err := s.repo.VisibleAuditIDs(ctx, scopes.BuildFilter(grant))
	if err != nil {
		return nil, err
	}

	if grant != nil {
		ids = append(ids, grant.AuditIDs...)
	}

	return append([]string{}, lo.Uniq(ids)...), nil
}

func auditDiff(before, after *objects.Audit) map[string]fields.Change {
	diff := map[string]fields.Change{}

	add := func(key string, b, a any) {
		if b != a {
			diff[key] = fields.Change{Before: b, After: a}
		}
	}

	add("title", before.Title, after.Title)
	add("plantId", before.PlantID, after.PlantID)
	add("auditHeadId", before.AuditHeadID, after.AuditHeadID)
	add("isLocked", before.IsLocked, after.IsLocked)
	add("completed", before.IsCompleted(), after.IsCompleted())

	return diff
}
