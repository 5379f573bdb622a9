package workflow

import (
	"strings"

	"github.com/samber/lo"

	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

var editWindows = map[authz.Role][]objects.ApprovalStatus{
	authz.RoleAuditor:   {objects.ApprovalDraft, objects.ApprovalRejected},
	authz.RoleAuditHead: {objects.ApprovalDraft, objects.ApprovalRejected, objects.ApprovalSubmitted},
}

// CheckEdit gates direct field edits of obs. Auditees are not bound to an approval
// status, their visibility is checked by the caller.
func CheckEdit(p authz.Principal, obs *objects.Observation, audit *objects.Audit) error {
	if authz.IsCFO(p.Role) {
		return nil
	}

	if err := CheckLock(p, audit); err != nil {
		return err
	}

	if authz.IsAuditee(p.Role) {
		return nil
	}

	window, ok := editWindows[p.Role]
	if !ok {
		return xerrors.Forbidden("role %s is not allowed to edit observations", p.Role)
	}

	if !lo.Contains(window, obs.ApprovalStatus) {
		return xerrors.Forbidden("role %s cannot edit a %s observation", p.Role, strings.ToLower(string(obs.ApprovalStatus)))
	}

	return nil
}
