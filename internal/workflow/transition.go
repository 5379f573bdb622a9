// Package workflow holds the approval state machine of observations and the audit lock gate.
//
// The transition table below is the only place the legal source states, the actor rule
// and the lock gate of each transition are declared. Services call Check before they
// persist anything and use Sources to build the conditional update that guards
// against concurrent transitions.
package workflow

import (
	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

type Transition string

const (
	Submit    Transition = "submit"
	Approve   Transition = "approve"
	Reject    Transition = "reject"
	Publish   Transition = "publish"
	Unpublish Transition = "unpublish"
)

type actorRule func(p authz.Principal, audit *objects.Audit) error

type rule struct {
	sources []objects.ApprovalStatus
	// target is empty for transitions that only flip the publish flag.
	target    objects.ApprovalStatus
	published *bool
	lockGated bool
	notifies  bool
	actor     actorRule
}

var (
	published   = true
	unpublished = false
)

var rules = map[Transition]rule{
	Submit: {
		sources:   []objects.ApprovalStatus{objects.ApprovalDraft, objects.ApprovalRejected},
		target:    objects.ApprovalSubmitted,
		lockGated: true,
		actor: func(p authz.Principal, _ *objects.Audit) error {
			if authz.IsAuditorLike(p.Role) {
				return nil
			}

			return xerrors.Forbidden("role %s is not allowed to submit observations", p.Role)
		},
	},
	Approve: {
		sources:   []objects.ApprovalStatus{objects.ApprovalSubmitted},
		target:    objects.ApprovalApproved,
		lockGated: true,
		notifies:  true,
		actor:     auditHeadOnly("approve"),
	},
	Reject: {
		sources:   []objects.ApprovalStatus{objects.ApprovalSubmitted},
		target:    objects.ApprovalRejected,
		lockGated: true,
		notifies:  true,
		actor:     auditHeadOnly("reject"),
	},
	Publish: {
		sources:   []objects.ApprovalStatus{objects.ApprovalApproved},
		published: &published,
		actor:     cfoOrCXO("publish"),
	},
	Unpublish: {
		sources:   []objects.ApprovalStatus{objects.ApprovalApproved},
		published: &unpublished,
		actor:     cfoOrCXO("unpublish"),
	},
}

func auditHeadOnly(verb string) actorRule {
	return func(p authz.Principal, audit *objects.Audit) error {
		if audit == nil || audit.AuditHeadID == "" {
			return xerrors.Forbidden("audit has no designated audit head, only the CFO may %s", verb)
		}

		if p.UserID != audit.AuditHeadID {
			return xerrors.Forbidden("only the audit head of audit %s may %s its observations", audit.ID, verb)
		}

		return nil
	}
}

func cfoOrCXO(verb string) actorRule {
	return func(p authz.Principal, _ *objects.Audit) error {
		return authz.AssertCFOOrCXOTeam(p, verb+" observations")
	}
}

func (t Transition) Valid() bool {
	_, ok := rules[t]
	return ok
}

// Sources returns the approval statuses the transition may start from.
func (t Transition) Sources() []objects.ApprovalStatus {
	return rules[t].sources
}

// Target returns the resulting approval status, empty for publish and unpublish.
func (t Transition) Target() objects.ApprovalStatus {
	return rules[t].target
}

// Published returns the resulting publish flag for publish and unpublish.
func (t Transition) Published() (bool, bool) {
	r := rules[t]
	if r.published == nil {
		return false, false
	}

	return *r.published, true
}

// RecordsApproval reports transitions that append a row to the approval history.
func (t Transition) RecordsApproval() bool {
	return rules[t].target != ""
}

func (t Transition) LockGated() bool {
	return rules[t].lockGated
}

func (t Transition) Notifies() bool {
	return rules[t].notifies
}

// Action is the audit trail action name of the transition.
func (t Transition) Action() string {
	return "observation." + string(t)
}
