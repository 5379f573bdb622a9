package authz

import (
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

// IsCFO reports the superuser role, the legacy ADMIN role included.
func IsCFO(r Role) bool {
	return r == RoleCFO || r == RoleAdmin
}

func IsCXOTeam(r Role) bool {
	return r == RoleCXOTeam
}

func IsAuditHead(r Role) bool {
	return r == RoleAuditHead
}

func IsAuditor(r Role) bool {
	return r == RoleAuditor
}

func IsAuditee(r Role) bool {
	return r == RoleAuditee
}

func IsGuest(r Role) bool {
	return r == RoleGuest
}

// IsRestricted reports roles whose reads go through the publish rule and scope grants.
func IsRestricted(r Role) bool {
	return IsAuditee(r) || IsGuest(r)
}

// IsAuditorLike reports auditors and audit heads.
func IsAuditorLike(r Role) bool {
	return IsAuditor(r) || IsAuditHead(r)
}

func IsCFOOrCXOTeam(r Role) bool {
	return IsCFO(r) || IsCXOTeam(r)
}

// CanAuthorObservations reports roles that may write auditor content.
func CanAuthorObservations(r Role) bool {
	return IsCFO(r) || IsAuditorLike(r)
}

// IsAdminOrAuditor is the legacy name of CanAuthorObservations.
func IsAdminOrAuditor(r Role) bool {
	return CanAuthorObservations(r)
}

func require(p Principal, ok func(Role) bool, capability string) error {
	if ok(p.Role) {
		return nil
	}

	return xerrors.Forbidden("role %s is not allowed to %s", p.Role, capability)
}

// AssertCFO returns Forbidden unless p is CFO-equivalent.
func AssertCFO(p Principal, capability string) error {
	return require(p, IsCFO, capability)
}

func AssertCFOOrCXOTeam(p Principal, capability string) error {
	return require(p, IsCFOOrCXOTeam, capability)
}

func AssertCanAuthorObservations(p Principal, capability string) error {
	return require(p, CanAuthorObservations, capability)
}

func AssertAdminOrAuditor(p Principal, capability string) error {
	return require(p, IsAdminOrAuditor, capability)
}

// AssertNotRestricted rejects auditees and guests.
func AssertNotRestricted(p Principal, capability string) error {
	return require(p, func(r Role) bool { return !IsRestricted(r) }, capability)
}
