package workflow

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

// Check decides whether p may apply t to obs, audit is the parent of obs.
// The CFO only has to satisfy the source state. Everybody else goes through
// the actor rule, then the lock gate, then the source state.
func Check(p authz.Principal, t Transition, obs *objects.Observation, audit *objects.Audit) error {
	r, ok := rules[t]
	if !ok {
		return xerrors.Validation("unknown transition %q", t)
	}

	if authz.IsCFO(p.Role) {
		return checkSource(t, r, obs)
	}

	if err := r.actor(p, audit); err != nil {
		return err
	}

	if r.lockGated {
		if err := CheckLock(p, audit); err != nil {
			return err
		}
	}

	return checkSource(t, r, obs)
}

func checkSource(t Transition, r rule, obs *objects.Observation) error {
	status := obs.ApprovalStatus

	if !lo.Contains(r.sources, status) {
		return sourceError(t, status)
	}

	if want, ok := t.Published(); ok && obs.IsPublished == want {
		if want {
			return xerrors.AlreadyInState("observation %s is already published", obs.ID)
		}

		return xerrors.AlreadyInState("observation %s is not published", obs.ID)
	}

	return nil
}

func sourceError(t Transition, status objects.ApprovalStatus) error {
	if status == rules[t].target {
		return xerrors.AlreadyInState("observation is already %s", strings.ToLower(string(status)))
	}

	subject := fmt.Sprintf("cannot %s %s %s observation", t, article(status), strings.ToLower(string(status)))

	switch t {
	case Approve, Reject:
		if status == objects.ApprovalDraft {
			return xerrors.Validation("%s: not yet submitted", subject)
		}

		return xerrors.Validation("%s: already decided", subject)
	case Submit:
		return xerrors.Validation("%s: already decided", subject)
	default:
		return xerrors.Validation("%s: not yet approved", subject)
	}
}

func article(status objects.ApprovalStatus) string {
	if status == objects.ApprovalApproved {
		return "an"
	}

	return "a"
}
