package biz

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/looplj/auditflow/internal/audittrail"
	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
	"github.com/looplj/auditflow/internal/scopes"
)

type InviteServiceParams struct {
	fx.In

	AbstractService *AbstractService
	Resolver        *scopes.Resolver
}

type InviteService struct {
	*AbstractService

	resolver *scopes.Resolver
}

func NewInviteService(params InviteServiceParams) *InviteService {
	return &InviteService{
		AbstractService: params.AbstractService,
		resolver:        params.Resolver,
	}
}

type IssueInviteInput struct {
	Email     string          `json:"email"`
	Role      string          `json:"role" binding:"required"`
	Scope     json.RawMessage `json:"scope"`
	ExpiresAt *time.Time      `json:"expiresAt"`
}

// IssueInvite creates an invite for a restricted role. The scope is validated
// now, a malformed grant is never stored.
func (s *InviteService) IssueInvite(ctx context.Context, input IssueInviteInput) (*objects.Invite, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	if err := authz.AssertCFOOrCXOTeam(p, "issue invites"); err != nil {
		return nil, err
	}

	role, err := authz.ParseRole(input.Role)
	if err != nil {
		return nil, err
	}

	if !authz.IsRestricted(role) {
		return nil, xerrors.Validation("invites can only grant restricted roles, got %s", role)
	}

	raw := input.Scope
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	grant, err := scopes.ParseGrant(raw)
	if err != nil {
		return nil, xerrors.Validation("invalid scope: %v", err)
	}

	if input.ExpiresAt != nil && !input.ExpiresAt.After(s.nowUTC()) {
		return nil, xerrors.Validation("expiresAt must be in the future")
	}

	invite := &objects.Invite{
		ID:        uuid.NewString(),
		Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		Email:     input.Email,
		Role:      role.String(),
		Scope:     grant.JSON(),
		CreatedBy: p.UserID,
		ExpiresAt: input.ExpiresAt,
	}

	if err := s.repo.CreateInvite(ctx, invite); err != nil {
		return nil, err
	}

	s.record(ctx, audittrail.NewEntry(ctx, audittrail.EntityInvite, invite.ID, "invite.issue", map[string]any{
		"email": invite.Email,
		"role":  invite.Role,
		"scope": invite.Scope,
	}))

	return invite, nil
}

// RedeemInvite binds the invite to the calling user, its scope becomes the user's grant.
func (s *InviteService) RedeemInvite(ctx context.Context, token string) (*objects.Invite, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	var invite *objects.Invite

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		found, err := s.repo.FindInviteByToken(ctx, token)
		if err != nil {
			return notFound(err, "invite", "")
		}

		now := s.nowUTC()

		if found.IsRedeemed() {
			return xerrors.AlreadyInState("invite is already redeemed")
		}

		if found.IsExpired(now) {
			return xerrors.Validation("invite has expired")
		}

		if found.Role != p.Role.String() {
			return xerrors.Forbidden("invite is for role %s, caller is %s", found.Role, p.Role)
		}

		redeemed, err := s.repo.RedeemInvite(ctx, found.ID, p.UserID, now)
		if err != nil {
			return err
		}

		if !redeemed {
			return xerrors.AlreadyInState("invite is already redeemed")
		}

		found.RedeemedBy, found.RedeemedAt = p.UserID, &now
		invite = found

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.resolver.Invalidate(ctx, p.UserID)
	s.record(ctx, audittrail.NewEntry(ctx, audittrail.EntityInvite, invite.ID, "invite.redeem", nil))

	invite.Token = ""

	return invite, nil
}
