package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/looplj/auditflow/internal/objects"
)

var inviteColumns = []string{
	"id", "token", "email", "role", "scope", "created_by", "created_at", "expires_at", "redeemed_by", "redeemed_at",
}

type inviteRow struct {
	ID         string `sql:"id"`
	Token      string `sql:"token"`
	Email      string `sql:"email"`
	Role       string `sql:"role"`
	Scope      string `sql:"scope"`
	CreatedBy  string `sql:"created_by"`
	CreatedAt  string `sql:"created_at"`
	ExpiresAt  string `sql:"expires_at"`
	RedeemedBy string `sql:"redeemed_by"`
	RedeemedAt string `sql:"redeemed_at"`
}

func (r inviteRow) toObject() *objects.Invite {
	return &objects.Invite{
		ID:         r.ID,
		Token:      r.Token,
		Email:      r.Email,
		Role:       r.Role,
		Scope:      json.RawMessage(r.Scope),
		CreatedBy:  r.CreatedBy,
		CreatedAt:  parseTime(r.CreatedAt),
		ExpiresAt:  parseTimePtr(r.ExpiresAt),
		RedeemedBy: r.RedeemedBy,
		RedeemedAt: parseTimePtr(r.RedeemedAt),
	}
}

func (s *Store) CreateInvite(ctx context.Context, inv *objects.Invite) error {
	now := s.now().UTC()
	inv.CreatedAt = now

	scope := string(inv.Scope)
	if scope == "" {
		scope = "{}"
	}

	query, args := s.builder().Insert("invites").
		Columns(inviteColumns...).
		Values(inv.ID, inv.Token, inv.Email, inv.Role, scope, inv.CreatedBy, formatTime(now),
			formatTimePtr(inv.ExpiresAt), inv.RedeemedBy, formatTimePtr(inv.RedeemedAt)).
		Query()

	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("insert invite: %w", err)
	}

	return nil
}

func (s *Store) FindInviteByToken(ctx context.Context, token string) (*objects.Invite, error) {
	query, args := s.builder().Select(inviteColumns...).
		From(s.builder().Table("invites")).
		Where(entsql.EQ("token", token)).
		Query()

	var rows []inviteRow
	if err := s.queryRows(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query invite: %w", err)
	}

	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	return rows[0].toObject(), nil
}

// RedeemInvite marks the invite redeemed by userID, it reports false when it was redeemed already.
func (s *Store) RedeemInvite(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	n, err := s.update(ctx, "invites",
		map[string]any{"redeemed_by": userID, "redeemed_at": at},
		entsql.And(entsql.EQ("id", id), entsql.EQ("redeemed_by", "")), false)
	if err != nil {
		return false, fmt.Errorf("redeem invite %s: %w", id, err)
	}

	return n == 1, nil
}

// LatestRedeemedScope returns the scope of the invite userID redeemed last.
func (s *Store) LatestRedeemedScope(ctx context.Context, userID string) ([]byte, bool, error) {
	query, args := s.builder().Select("scope").
		From(s.builder().Table("invites")).
		Where(entsql.And(entsql.EQ("redeemed_by", userID), entsql.NotNull("redeemed_at"))).
		OrderBy(entsql.Desc("redeemed_at"), entsql.Desc("id")).
		Limit(1).
		Query()

	var rows []scopeRow
	if err := s.queryRows(ctx, query, args, &rows); err != nil {
		return nil, false, fmt.Errorf("query redeemed invite: %w", err)
	}

	if len(rows) == 0 {
		return nil, false, nil
	}

	return []byte(rows[0].Scope), true, nil
}

type scopeRow struct {
	Scope string `sql:"scope"`
}
