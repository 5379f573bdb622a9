package biz

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/looplj/auditflow/internal/audittrail"
	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/fields"
	"github.com/looplj/auditflow/internal/notify"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

// BypassChangeRequestApply is the lock bypass reason of applying an approved change request.
const BypassChangeRequestApply = "change-request-apply"

type ChangeRequestServiceParams struct {
	fx.In

	AbstractService *AbstractService
}

type ChangeRequestService struct {
	*AbstractService
}

func NewChangeRequestService(params ChangeRequestServiceParams) *ChangeRequestService {
	return &ChangeRequestService{
		AbstractService: params.AbstractService,
	}
}

type CreateChangeRequestInput struct {
	Patch  json.RawMessage `json:"patch" binding:"required"`
	Reason string          `json:"reason"`
}

// CreateChangeRequest proposes a patch against an observation. Auditors may only
// propose auditor fields on approved observations. Other authors may propose any
// patch, approval applies only its known fields.
func (s *ChangeRequestService) CreateChangeRequest(ctx context.Context, observationID string, input CreateChangeRequestInput) (*objects.ChangeRequest, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	if err := authz.AssertCanAuthorObservations(p, "request observation changes"); err != nil {
		return nil, err
	}

	patch, err := fields.ParsePatch(input.Patch)
	if err != nil {
		return nil, err
	}

	if len(patch) == 0 {
		return nil, xerrors.Validation("patch is empty")
	}

	if authz.IsAuditor(p.Role) {
		if err := fields.RequireSubset(patch, fields.AuditorFields()); err != nil {
			return nil, err
		}
	}

	obs, err := s.repo.FindObservation(ctx, observationID)
	if err != nil {
		return nil, notFound(err, "observation", observationID)
	}

	if authz.IsAuditor(p.Role) && obs.ApprovalStatus != objects.ApprovalApproved {
		return nil, xerrors.Validation("auditors can only request changes to approved observations")
	}

	// Values are validated now so a broken patch never waits for a decision.
	preview := *obs
	if _, err := fields.Apply(&preview, patch.Only(fields.AllFields())); err != nil {
		return nil, err
	}

	normalized, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}

	cr := &objects.ChangeRequest{
		ID:            uuid.NewString(),
		ObservationID: obs.ID,
		RequesterID:   p.UserID,
		RequesterRole: p.Role.String(),
		Patch:         normalized,
		Reason:        input.Reason,
		Status:        objects.ChangeRequestPending,
	}

	if err := s.repo.CreateChangeRequest(ctx, cr); err != nil {
		return nil, err
	}

	s.record(ctx, audittrail.NewEntry(ctx, audittrail.EntityChangeRequest, cr.ID, "change_request.create", cr.Patch))
	s.notify(ctx, cr.ID, notify.Payload{
		Event:      notify.EventChangeRequestCreated,
		EntityType: audittrail.EntityChangeRequest,
		ActorID:    p.UserID,
		Data:       map[string]any{"observationId": obs.ID, "reason": cr.Reason},
	})

	return cr, nil
}

// ApproveChangeRequest applies the request's patch to the observation, ignoring
// the audit lock and the observation's locked fields.
func (s *ChangeRequestService) ApproveChangeRequest(ctx context.Context, id, comment string) (*objects.ChangeRequest, error) {
	return s.decide(ctx, id, comment, true)
}

// DenyChangeRequest closes the request without touching the observation.
func (s *ChangeRequestService) DenyChangeRequest(ctx context.Context, id, comment string) (*objects.ChangeRequest, error) {
	return s.decide(ctx, id, comment, false)
}

func (s *ChangeRequestService) decide(ctx context.Context, id, comment string, approve bool) (*objects.ChangeRequest, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	if err := authz.AssertCFO(p, "decide change requests"); err != nil {
		return nil, err
	}

	var (
		cr   *objects.ChangeRequest
		diff fields.Diff
	)

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		found, err := s.repo.FindChangeRequest(ctx, id)
		if err != nil {
			return notFound(err, "change_request", id)
		}

		if found.Status != objects.ChangeRequestPending {
			return xerrors.AlreadyInState("change request %s is already %s", id, strings.ToLower(string(found.Status)))
		}

		now := s.nowUTC()
		found.DecidedBy = p.UserID
		found.DecidedAt = &now
		found.DecisionComment = comment
		found.Status = objects.ChangeRequestDenied

		if approve {
			result, err := authz.RunWithLockBypass(ctx, BypassChangeRequestApply, func(ctx context.Context) (*fields.Result, error) {
				return s.applyPatch(ctx, found)
			})
			if err != nil {
				return err
			}

			diff = result.Diff
			found.Diff = diff.JSON()
			found.Status = objects.ChangeRequestApproved
		}

		decided, err := s.repo.DecideChangeRequest(ctx, found)
		if err != nil {
			return err
		}

		if !decided {
			return xerrors.AlreadyInState("change request %s was decided concurrently", id)
		}

		cr = found

		return nil
	})
	if err != nil {
		return nil, err
	}

	action, event := "change_request.deny", notify.EventChangeRequestDenied
	if approve {
		action, event = "change_request.approve", notify.EventChangeRequestApproved
	}

	entries := []audittrail.Entry{audittrail.NewEntry(ctx, audittrail.EntityChangeRequest, cr.ID, action, cr.Diff)}
	if len(diff) > 0 {
		entries = append(entries, audittrail.NewEntry(ctx, audittrail.EntityObservation, cr.ObservationID, "observation.change_request_applied", diff.JSON()))
	}

	s.record(ctx, entries...)
	s.notify(ctx, cr.ID, notify.Payload{
		Event:      event,
		EntityType: audittrail.EntityChangeRequest,
		ActorID:    p.UserID,
		Recipients: []string{cr.RequesterID},
		Data:       map[string]any{"observationId": cr.ObservationID, "comment": comment},
	})

	return cr, nil
}

// applyPatch writes the allow-listed keys of the request verbatim, other keys are ignored.
// Neither the audit lock nor the locked fields are checked, the caller records the bypass.
func (s *ChangeRequestService) applyPatch(ctx context.Context, cr *objects.ChangeRequest) (*fields.Result, error) {
	obs, err := s.repo.FindObservation(ctx, cr.ObservationID)
	if err != nil {
		return nil, notFound(err, "observation", cr.ObservationID)
	}

	patch, err := fields.ParsePatch(cr.Patch)
	if err != nil {
		return nil, err
	}

	result, err := fields.Apply(obs, patch.Only(fields.AllFields()))
	if err != nil {
		return nil, err
	}

	if len(result.Columns) == 0 {
		return result, nil
	}

	if err := s.repo.UpdateObservation(ctx, obs.ID, result.Columns); err != nil {
		return nil, notFound(err, "observation", obs.ID)
	}

	return result, nil
}

func (s *ChangeRequestService) GetChangeRequest(ctx context.Context, id string) (*objects.ChangeRequest, error) {
	if err := s.assertReader(ctx); err != nil {
		return nil, err
	}

	cr, err := s.repo.FindChangeRequest(ctx, id)
	if err != nil {
		return nil, notFound(err, "change_request", id)
	}

	return cr, nil
}

// ListChangeRequests lists the requests of an observation, an empty status lists all of them.
func (s *ChangeRequestService) ListChangeRequests(ctx context.Context, observationID string, status objects.ChangeRequestStatus) ([]*objects.ChangeRequest, error) {
	if err := s.assertReader(ctx); err != nil {
		return nil, err
	}

	return s.repo.ListChangeRequests(ctx, observationID, status)
}

func (s *ChangeRequestService) assertReader(ctx context.Context) error {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return err
	}

	return authz.AssertNotRestricted(p, "read change requests")
}
