package workflow

import (
	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

// CheckLock denies every non-CFO mutation of a locked audit or of its observations.
func CheckLock(p authz.Principal, audit *objects.Audit) error {
	if audit == nil || !audit.IsLocked {
		return nil
	}

	if authz.IsCFO(p.Role) {
		return nil
	}

	return xerrors.Forbidden("audit %s is locked", audit.ID)
}

// AuditOperation is a lock gate operation on an audit.
type AuditOperation string

const (
	LockAudit     AuditOperation = "lock"
	UnlockAudit   AuditOperation = "unlock"
	CompleteAudit AuditOperation = "complete"
)

// Action is the audit trail action name of the operation.
func (op AuditOperation) Action() string {
	return "audit." + string(op)
}

// CheckAuditOperation validates lock, unlock and complete.
// It returns warn=true when a CXO unlocks a completed audit, which is allowed but
// has to be logged.
func CheckAuditOperation(p authz.Principal, op AuditOperation, audit *objects.Audit) (warn bool, err error) {
	if err := authz.AssertCFOOrCXOTeam(p, string(op)+" audits"); err != nil {
		return false, err
	}

	switch op {
	case LockAudit:
		if audit.IsLocked {
			return false, xerrors.AlreadyInState("audit %s is already locked", audit.ID)
		}
	case UnlockAudit:
		if !audit.IsLocked {
			return false, xerrors.AlreadyInState("audit %s is not locked", audit.ID)
		}

		return audit.IsCompleted() && authz.IsCXOTeam(p.Role), nil
	case CompleteAudit:
		if audit.IsCompleted() {
			return false, xerrors.AlreadyInState("audit %s is already completed", audit.ID)
		}
	default:
		return false, xerrors.Validation("unknown audit operation %q", op)
	}

	return false, nil
}
