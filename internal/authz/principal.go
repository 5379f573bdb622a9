package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

// Role is the fixed set of organization roles.
type Role string

const (
	RoleCFO       Role = "CFO"
	RoleCXOTeam   Role = "CXO_TEAM"
	RoleAuditHead Role = "AUDIT_HEAD"
	RoleAuditor   Role = "AUDITOR"
	RoleAuditee   Role = "AUDITEE"
	RoleGuest     Role = "GUEST"
	// RoleAdmin is the legacy name of CFO, every check treats both the same.
	RoleAdmin Role = "ADMIN"
)

var allRoles = []Role{RoleCFO, RoleCXOTeam, RoleAuditHead, RoleAuditor, RoleAuditee, RoleGuest, RoleAdmin}

func (r Role) String() string {
	return string(r)
}

func (r Role) Valid() bool {
	for _, role := range allRoles {
		if r == role {
			return true
		}
	}

	return false
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", xerrors.Validation("unknown role %q", s)
	}

	return role, nil
}

// Principal is the already authenticated caller.
// Each request can only have one Principal, guaranteed by WithPrincipal's set-once semantics.
type Principal struct {
	UserID string
	Role   Role
}

// String returns string representation of Principal (for audit logs).
func (p Principal) String() string {
	return fmt.Sprintf("%s:%s", p.Role, p.UserID)
}

// principalKey is an unexported key type to prevent external forgery.
type principalKey struct{}

// WithPrincipal sets Principal, returns error if a different one already exists.
func WithPrincipal(ctx context.Context, p Principal) (context.Context, error) {
	if p.UserID == "" || !p.Role.Valid() {
		return ctx, xerrors.Unauthenticated("authz: invalid principal %s", p.String())
	}

	if existing, ok := GetPrincipal(ctx); ok {
		if existing != p {
			return ctx, fmt.Errorf("authz: principal conflict: existing=%s, new=%s", existing.String(), p.String())
		}

		return ctx, nil // Same principal, idempotent
	}

	return context.WithValue(ctx, principalKey{}, p), nil
}

// GetPrincipal reads Principal.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}

	p, ok := ctx.Value(principalKey{}).(Principal)

	return p, ok
}

// MustGetPrincipal reads Principal, panics if not exists (used in chains where principal is confirmed).
func MustGetPrincipal(ctx context.Context) Principal {
	p, ok := GetPrincipal(ctx)
	if !ok {
		panic("authz: no principal in context")
	}

	return p
}

// RequirePrincipal returns the principal or an Unauthenticated error.
func RequirePrincipal(ctx context.Context) (Principal, error) {
	p, ok := GetPrincipal(ctx)
	if !ok {
		return Principal{}, xerrors.Unauthenticated("authz: no principal in context")
	}

	return p, nil
}

// NewUserContext creates context with the given user principal, replacing any existing one.
func NewUserContext(ctx context.Context, userID string, role Role) context.Context {
	return context.WithValue(ctx, principalKey{}, Principal{UserID: userID, Role: role})
}
