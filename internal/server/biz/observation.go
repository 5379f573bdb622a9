package biz

import (
	"context"
	"encoding/json"
	"strings"

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

type ObservationServiceParams struct {
	fx.In

	AbstractService *AbstractService
	Resolver        *scopes.Resolver
}

type ObservationService struct {
	*AbstractService

	resolver *scopes.Resolver
}

func NewObservationService(params ObservationServiceParams) *ObservationService {
	return &ObservationService{
		AbstractService: params.AbstractService,
		resolver:        params.Resolver,
	}
}

type CreateObservationInput struct {
	AuditID string          `json:"auditId" binding:"required"`
	Fields  json.RawMessage `json:"fields,omitempty"`
}

// FieldUpdate is the result of a direct edit, Dropped lists the keys outside the writer's partition.
type FieldUpdate struct {
	Observation *objects.Observation `json:"observation"`
	Dropped     []fields.Field       `json:"dropped,omitempty"`
}

// CreateObservation creates a DRAFT observation in an audit.
// The initial fields go through the same partition as a direct edit.
func (s *ObservationService) CreateObservation(ctx context.Context, input CreateObservationInput) (*FieldUpdate, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	if err := authz.AssertCanAuthorObservations(p, "create observations"); err != nil {
		return nil, err
	}

	var (
		patch   fields.Patch
		dropped []fields.Field
	)

	if len(input.Fields) > 0 {
		patch, err = fields.ParsePatch(input.Fields)
		if err != nil {
			return nil, err
		}

		if len(patch) > 0 {
			patch, dropped, err = fields.Partition(p.Role, patch)
			if err != nil {
				return nil, err
			}
		}
	}

	obs := &objects.Observation{
		ID:             uuid.NewString(),
		AuditID:        input.AuditID,
		ApprovalStatus: objects.ApprovalDraft,
		CurrentStatus:  objects.CurrentPending,
		CreatedBy:      p.UserID,
	}

	var diff fields.Diff

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		audit, err := s.repo.FindAudit(ctx, input.AuditID)
		if err != nil {
			return notFound(err, "audit", input.AuditID)
		}

		if err := workflow.CheckLock(p, audit); err != nil {
			return err
		}

		obs.PlantID = audit.PlantID

		result, err := fields.Apply(obs, patch)
		if err != nil {
			return err
		}

		diff = result.Diff

		return s.repo.CreateObservation(ctx, obs)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, audittrail.NewEntry(ctx, audittrail.EntityObservation, obs.ID, "observation.create", diffJSON(diff)))

	return &FieldUpdate{Observation: obs, Dropped: dropped}, nil
}

// GetObservation returns NotFound for observations the principal cannot read.
func (s *ObservationService) GetObservation(ctx context.Context, id string) (*objects.Observation, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	return s.loadVisible(ctx, p, id)
}

func (s *ObservationService) ListObservations(ctx context.Context, filter objects.ObservationFilter) ([]*objects.Observation, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	visibility, err := s.visibility(ctx, p)
	if err != nil {
		return nil, err
	}

	return s.repo.ListObservations(ctx, filter, visibility)
}

// History returns the approval history of an observation, oldest first.
func (s *ObservationService) History(ctx context.Context, id string) ([]*objects.Approval, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.loadVisible(ctx, p, id); err != nil {
		return nil, err
	}

	return s.repo.ListApprovals(ctx, id)
}

// UpdateFields applies the part of raw the principal owns. Keys outside the
// partition are dropped, locked fields and the audit lock reject the whole edit.
func (s *ObservationService) UpdateFields(ctx context.Context, id string, raw json.RawMessage) (*FieldUpdate, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	patch, err := fields.ParsePatch(raw)
	if err != nil {
		return nil, err
	}

	var (
		update = &FieldUpdate{}
		diff   fields.Diff
	)

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		obs, err := s.loadVisible(ctx, p, id)
		if err != nil {
			return err
		}

		audit, err := s.repo.FindAudit(ctx, obs.AuditID)
		if err != nil {
			return notFound(err, "audit", obs.AuditID)
		}

		if err := workflow.CheckEdit(p, obs, audit); err != nil {
			return err
		}

		allowed, dropped, err := fields.Partition(p.Role, patch)
		if err != nil {
			return err
		}

		if locked := fields.LockedIn(allowed, obs.LockedFields); len(locked) > 0 {
			return xerrors.Forbidden("fields are locked: %s", joinFields(locked))
		}

		result, err := fields.Apply(obs, allowed)
		if err != nil {
			return err
		}

		if err := s.repo.UpdateObservation(ctx, obs.ID, result.Columns); err != nil {
			return notFound(err, "observation", obs.ID)
		}

		update.Observation, update.Dropped, diff = obs, dropped, result.Diff

		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(update.Dropped) > 0 {
		log.Debug(ctx, "dropped fields outside the writer's partition",
			log.String("observation_id", id),
			log.String("role", p.Role.String()),
			log.String("fields", joinFields(update.Dropped)),
		)
	}

	if len(diff) > 0 {
		s.record(ctx, audittrail.NewEntry(ctx, audittrail.EntityObservation, id, "observation.update", diff.JSON()))
	}

	return update, nil
}

// SetLockedFields replaces the per-observation field lock list.
func (s *ObservationService) SetLockedFields(ctx context.Context, id string, names []string) (*objects.Observation, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	if err := authz.AssertCFO(p, "lock observation fields"); err != nil {
		return nil, err
	}

	known, unknown := fields.ParseList(names)
	if len(unknown) > 0 {
		return nil, xerrors.Validation("unknown fields: %s", strings.Join(unknown, ", "))
	}

	locked := lo.Map(known, func(f fields.Field, _ int) string { return string(f) })

	var (
		obs    *objects.Observation
		before []string
	)

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.FindObservation(ctx, id)
		if err != nil {
			return notFound(err, "observation", id)
		}

		if err := s.repo.UpdateObservation(ctx, id, map[string]any{"locked_fields": store.EncodeLockedFields(locked)}); err != nil {
			return notFound(err, "observation", id)
		}

		before, o.LockedFields = o.LockedFields, locked
		obs = o

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, audittrail.NewEntry(ctx, audittrail.EntityObservation, id, "observation.lock_fields",
		map[string]fields.Change{"lockedFields": {Before: before, After: locked}}))

	return obs, nil
}

// loadVisible loads an observation, restricted principals get NotFound for
// observations outside the publish rule and their grant.
func (s *ObservationService) loadVisible(ctx context.Context, p authz.Principal, id string) (*objects.Observation, error) {
	obs, err := s.repo.FindObservation(ctx, id)
	if err != nil {
		return nil, notFound(err, "observation", id)
	}

	if !authz.IsRestricted(p.Role) {
		return obs, nil
	}

	grant, err := s.resolver.Resolve(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	if !scopes.CanRead(p.Role, obs, grant) {
		return nil, xerrors.NotFound("observation", id)
	}

	return obs, nil
}

// visibility returns the read filter of restricted principals, nil for everyone else.
func (s *ObservationService) visibility(ctx context.Context, p authz.Principal) (*scopes.Filter, error) {
	if !authz.IsRestricted(p.Role) {
		return nil, nil
	}

	grant, err := s.resolver.Resolve(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	filter := scopes.BuildFilter(grant)

	return &filter, nil
}

func joinFields(list []fields.Field) string {
	return strings.Join(lo.Map(list, func(f fields.Field, _ int) string { return string(f) }), ", ")
}

func diffJSON(diff fields.Diff) []byte {
	if len(diff) == 0 {
		return nil
	}

	return diff.JSON()
}
