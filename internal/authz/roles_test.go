package authz

import (
	"testing"

	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

func TestRolePredicates(t *testing.T) {
	type expect struct {
		cfo, cxo, restricted, auditorLike, cfoOrCXO, author bool
	}

	tests := []struct {
		role Role
		want expect
	}{
		{RoleCFO, expect{cfo: true, cfoOrCXO: true, author: true}},
		{RoleAdmin, expect{cfo: true, cfoOrCXO: true, author: true}},
		{RoleCXOTeam, expect{cxo: true, cfoOrCXO: true}},
		{RoleAuditHead, expect{auditorLike: true, author: true}},
		{RoleAuditor, expect{auditorLike: true, author: true}},
		{RoleAuditee, expect{restricted: true}},
		{RoleGuest, expect{restricted: true}},
	}
	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			got := expect{
				cfo:         IsCFO(tt.role),
				cxo:         IsCXOTeam(tt.role),
				restricted:  IsRestricted(tt.role),
				auditorLike: IsAuditorLike(tt.role),
				cfoOrCXO:    IsCFOOrCXOTeam(tt.role),
				author:      CanAuthorObservations(tt.role),
			}
			if got != tt.want {
				t.Errorf("predicates(%s) = %+v, want %+v", tt.role, got, tt.want)
			}

			if IsAdminOrAuditor(tt.role) != CanAuthorObservations(tt.role) {
				t.Errorf("IsAdminOrAuditor(%s) differs from CanAuthorObservations", tt.role)
			}
		})
	}
}

func TestSingleRolePredicates(t *testing.T) {
	if !IsAuditHead(RoleAuditHead) || IsAuditHead(RoleAuditor) {
		t.Error("IsAuditHead mismatch")
	}

	if !IsAuditor(RoleAuditor) || IsAuditor(RoleAuditHead) {
		t.Error("IsAuditor mismatch")
	}

	if !IsAuditee(RoleAuditee) || IsAuditee(RoleGuest) {
		t.Error("IsAuditee mismatch")
	}

	if !IsGuest(RoleGuest) || IsGuest(RoleAuditee) {
		t.Error("IsGuest mismatch")
	}
}

func TestAsserts(t *testing.T) {
	auditor := Principal{UserID: "u-1", Role: RoleAuditor}
	cfo := Principal{UserID: "u-2", Role: RoleCFO}
	guest := Principal{UserID: "u-3", Role: RoleGuest}

	if err := AssertCFO(auditor, "decide change requests"); !xerrors.IsForbidden(err) {
		t.Errorf("AssertCFO(auditor) = %v, want forbidden", err)
	}

	if err := AssertCFO(cfo, "decide change requests"); err != nil {
		t.Errorf("AssertCFO(cfo) = %v", err)
	}

	if err := AssertCFOOrCXOTeam(auditor, "lock audits"); err == nil || err.Error() != "role AUDITOR is not allowed to lock audits" {
		t.Errorf("AssertCFOOrCXOTeam(auditor) = %v", err)
	}

	if err := AssertCanAuthorObservations(auditor, "create observations"); err != nil {
		t.Errorf("AssertCanAuthorObservations(auditor) = %v", err)
	}

	if err := AssertAdminOrAuditor(guest, "create observations"); !xerrors.IsForbidden(err) {
		t.Errorf("AssertAdminOrAuditor(guest) = %v, want forbidden", err)
	}

	if err := AssertNotRestricted(guest, "query the audit trail"); !xerrors.IsForbidden(err) {
		t.Errorf("AssertNotRestricted(guest) = %v, want forbidden", err)
	}
}
