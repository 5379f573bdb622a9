package workflow

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

var (
	cfo     = authz.Principal{UserID: "cfo-1", Role: authz.RoleCFO}
	admin   = authz.Principal{UserID: "admin-1", Role: authz.RoleAdmin}
	cxo     = authz.Principal{UserID: "cxo-1", Role: authz.RoleCXOTeam}
	head    = authz.Principal{UserID: "head-1", Role: authz.RoleAuditHead}
	other   = authz.Principal{UserID: "head-2", Role: authz.RoleAuditHead}
	auditor = authz.Principal{UserID: "auditor-1", Role: authz.RoleAuditor}
	auditee = authz.Principal{UserID: "auditee-1", Role: authz.RoleAuditee}
	guest   = authz.Principal{UserID: "guest-1", Role: authz.RoleGuest}
)

func newAudit(locked bool) *objects.Audit {
	return &objects.Audit{ID: "audit-x", AuditHeadID: head.UserID, IsLocked: locked}
}

func newObservation(status objects.ApprovalStatus, published bool) *objects.Observation {
	return &objects.Observation{ID: "obs-1", AuditID: "audit-x", ApprovalStatus: status, IsPublished: published}
}

func TestTransitionTable(t *testing.T) {
	assert.Equal(t, []objects.ApprovalStatus{objects.ApprovalDraft, objects.ApprovalRejected}, Submit.Sources())
	assert.Equal(t, objects.ApprovalApproved, Approve.Target())
	assert.Equal(t, objects.ApprovalStatus(""), Publish.Target())

	p, ok := Unpublish.Published()
	assert.True(t, ok)
	assert.False(t, p)

	_, ok = Approve.Published()
	assert.False(t, ok)

	assert.True(t, Reject.RecordsApproval())
	assert.False(t, Publish.RecordsApproval())
	assert.True(t, Submit.LockGated())
	assert.False(t, Publish.LockGated())
	assert.True(t, Approve.Notifies())
	assert.False(t, Submit.Notifies())
	assert.Equal(t, "observation.approve", Approve.Action())
	assert.False(t, Transition("close").Valid())
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		principal  authz.Principal
		transition Transition
		obs        *objects.Observation
		audit      *objects.Audit
		wantCode   string
		wantMsg    string
	}{
		{name: "auditor submits draft", principal: auditor, transition: Submit, obs: newObservation(objects.ApprovalDraft, false), audit: newAudit(false)},
		{name: "auditor resubmits rejected", principal: auditor, transition: Submit, obs: newObservation(objects.ApprovalRejected, false), audit: newAudit(false)},
		{name: "audit head submits", principal: head, transition: Submit, obs: newObservation(objects.ApprovalDraft, false), audit: newAudit(false)},
		{name: "auditee cannot submit", principal: auditee, transition: Submit, obs: newObservation(objects.ApprovalDraft, false), audit: newAudit(false), wantCode: xerrors.CodeForbidden},
		{name: "cxo cannot submit", principal: cxo, transition: Submit, obs: newObservation(objects.ApprovalDraft, false), audit: newAudit(false), wantCode: xerrors.CodeForbidden},
		{name: "submit twice", principal: auditor, transition: Submit, obs: newObservation(objects.ApprovalSubmitted, false), audit: newAudit(false), wantCode: xerrors.CodeAlreadyInState},
		{name: "submit approved", principal: auditor, transition: Submit, obs: newObservation(objects.ApprovalApproved, false), audit: newAudit(false), wantCode: xerrors.CodeValidation, wantMsg: "already decided"},
		{name: "auditor submit on locked audit", principal: auditor, transition: Submit, obs: newObservation(objects.ApprovalDraft, false), audit: newAudit(true), wantCode: xerrors.CodeForbidden, wantMsg: "locked"},

		{name: "audit head approves", principal: head, transition: Approve, obs: newObservation(objects.ApprovalSubmitted, false), audit: newAudit(false)},
		{name: "other audit head cannot approve", principal: other, transition: Approve, obs: newObservation(objects.ApprovalSubmitted, false), audit: newAudit(false), wantCode: xerrors.CodeForbidden},
		{name: "auditor cannot approve", principal: auditor, transition: Approve, obs: newObservation(objects.ApprovalSubmitted, false), audit: newAudit(false), wantCode: xerrors.CodeForbidden},
		{name: "cxo cannot approve", principal: cxo, transition: Approve, obs: newObservation(objects.ApprovalSubmitted, false), audit: newAudit(false), wantCode: xerrors.CodeForbidden},
		{name: "no audit head", principal: head, transition: Approve, obs: newObservation(objects.ApprovalSubmitted, false), audit: &objects.Audit{ID: "audit-x"}, wantCode: xerrors.CodeForbidden},
		{name: "approve draft", principal: head, transition: Approve, obs: newObservation(objects.ApprovalDraft, false), audit: newAudit(false), wantCode: xerrors.CodeValidation, wantMsg: "cannot approve a draft observation: not yet submitted"},
		{name: "approve rejected", principal: head, transition: Approve, obs: newObservation(objects.ApprovalRejected, false), audit: newAudit(false), wantCode: xerrors.CodeValidation, wantMsg: "already decided"},
		{name: "approve approved", principal: head, transition: Approve, obs: newObservation(objects.ApprovalApproved, false), audit: newAudit(false), wantCode: xerrors.CodeAlreadyInState},
		{name: "audit head approve on locked audit", principal: head, transition: Approve, obs: newObservation(objects.ApprovalSubmitted, false), audit: newAudit(true), wantCode: xerrors.CodeForbidden},

		{name: "audit head rejects", principal: head, transition: Reject, obs: newObservation(objects.ApprovalSubmitted, false), audit: newAudit(false)},
		{name: "reject draft", principal: head, transition: Reject, obs: newObservation(objects.ApprovalDraft, false), audit: newAudit(false), wantCode: xerrors.CodeValidation, wantMsg: "not yet submitted"},
		{name: "reject approved", principal: head, transition: Reject, obs: newObservation(objects.ApprovalApproved, false), audit: newAudit(false), wantCode: xerrors.CodeValidation, wantMsg: "cannot reject an approved observation: already decided"},
		{name: "reject rejected", principal: head, transition: Reject, obs: newObservation(objects.ApprovalRejected, false), audit: newAudit(false), wantCode: xerrors.CodeAlreadyInState},

		{name: "cfo approves on locked audit without being audit head", principal: cfo, transition: Approve, obs: newObservation(objects.ApprovalSubmitted, false), audit: newAudit(true)},
		{name: "admin is cfo equivalent", principal: admin, transition: Reject, obs: newObservation(objects.ApprovalSubmitted, false), audit: newAudit(true)},
		{name: "cfo still needs the source state", principal: cfo, transition: Approve, obs: newObservation(objects.ApprovalDraft, false), audit: newAudit(false), wantCode: xerrors.CodeValidation},
		{name: "cfo submits on locked audit", principal: cfo, transition: Submit, obs: newObservation(objects.ApprovalDraft, false), audit: newAudit(true)},

		{name: "cxo publishes on locked audit", principal: cxo, transition: Publish, obs: newObservation(objects.ApprovalApproved, false), audit: newAudit(true)},
		{name: "cfo publishes", principal: cfo, transition: Publish, obs: newObservation(objects.ApprovalApproved, false), audit: newAudit(false)},
		{name: "audit head cannot publish", principal: head, transition: Publish, obs: newObservation(objects.ApprovalApproved, false), audit: newAudit(false), wantCode: xerrors.CodeForbidden},
		{name: "publish submitted", principal: cxo, transition: Publish, obs: newObservation(objects.ApprovalSubmitted, false), audit: newAudit(false), wantCode: xerrors.CodeValidation, wantMsg: "not yet approved"},
		{name: "publish published", principal: cxo, transition: Publish, obs: newObservation(objects.ApprovalApproved, true), audit: newAudit(false), wantCode: xerrors.CodeAlreadyInState},
		{name: "unpublish published", principal: cxo, transition: Unpublish, obs: newObservation(objects.ApprovalApproved, true), audit: newAudit(false)},
		{name: "unpublish unpublished", principal: cfo, transition: Unpublish, obs: newObservation(objects.ApprovalApproved, false), audit: newAudit(false), wantCode: xerrors.CodeAlreadyInState},
		{name: "guest cannot unpublish", principal: guest, transition: Unpublish, obs: newObservation(objects.ApprovalApproved, true), audit: newAudit(false), wantCode: xerrors.CodeForbidden},

		{name: "unknown transition", principal: cfo, transition: "close", obs: newObservation(objects.ApprovalDraft, false), audit: newAudit(false), wantCode: xerrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := *tt.obs

			err := Check(tt.principal, tt.transition, tt.obs, tt.audit)
			if tt.wantCode == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, xerrors.CodeOf(err))

				if tt.wantMsg != "" {
					assert.Contains(t, err.Error(), tt.wantMsg)
				}
			}

			assert.Equal(t, before, *tt.obs, "check must not mutate the observation")
		})
	}
}

func TestApproveRejectOnlyFromSubmitted(t *testing.T) {
	for _, transition := range []Transition{Approve, Reject} {
		for _, status := range []objects.ApprovalStatus{objects.ApprovalDraft, objects.ApprovalSubmitted, objects.ApprovalApproved, objects.ApprovalRejected} {
			for _, p := range []authz.Principal{cfo, head} {
				err := Check(p, transition, newObservation(status, false), newAudit(false))
				if status == objects.ApprovalSubmitted {
					assert.NoError(t, err, "%s %s by %s", transition, status, p)
				} else {
					assert.True(t, xerrors.IsValidation(err), "%s %s by %s: %v", transition, status, p, err)
				}
			}
		}
	}
}

func TestCheckLock(t *testing.T) {
	assert.NoError(t, CheckLock(auditor, nil))
	assert.NoError(t, CheckLock(auditor, newAudit(false)))
	assert.NoError(t, CheckLock(cfo, newAudit(true)))
	assert.NoError(t, CheckLock(admin, newAudit(true)))

	for _, p := range []authz.Principal{cxo, head, auditor, auditee, guest} {
		err := CheckLock(p, newAudit(true))
		assert.True(t, xerrors.IsForbidden(err), "role %s", p.Role)
	}
}

func TestCheckAuditOperation(t *testing.T) {
	now := time.Now()
	completed := &objects.Audit{ID: "audit-x", IsLocked: true, CompletedAt: &now}

	tests := []struct {
		name      string
		principal authz.Principal
		op        AuditOperation
		audit     *objects.Audit
		wantWarn  bool
		wantCode  string
	}{
		{name: "cfo locks", principal: cfo, op: LockAudit, audit: newAudit(false)},
		{name: "cxo locks", principal: cxo, op: LockAudit, audit: newAudit(false)},
		{name: "audit head cannot lock", principal: head, op: LockAudit, audit: newAudit(false), wantCode: xerrors.CodeForbidden},
		{name: "lock locked", principal: cfo, op: LockAudit, audit: newAudit(true), wantCode: xerrors.CodeAlreadyInState},
		{name: "unlock", principal: cxo, op: UnlockAudit, audit: newAudit(true)},
		{name: "unlock unlocked", principal: cxo, op: UnlockAudit, audit: newAudit(false), wantCode: xerrors.CodeAlreadyInState},
		{name: "cxo unlocks completed audit with a warning", principal: cxo, op: UnlockAudit, audit: completed, wantWarn: true},
		{name: "cfo unlocks completed audit", principal: cfo, op: UnlockAudit, audit: completed},
		{name: "complete", principal: cfo, op: CompleteAudit, audit: newAudit(false)},
		{name: "complete twice", principal: cxo, op: CompleteAudit, audit: completed, wantCode: xerrors.CodeAlreadyInState},
		{name: "auditor cannot complete", principal: auditor, op: CompleteAudit, audit: newAudit(false), wantCode: xerrors.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warn, err := CheckAuditOperation(tt.principal, tt.op, tt.audit)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, xerrors.CodeOf(err))

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantWarn, warn)
		})
	}
}

func TestCheckEdit(t *testing.T) {
	tests := []struct {
		name      string
		principal authz.Principal
		status    objects.ApprovalStatus
		locked    bool
		wantErr   bool
	}{
		{"auditor edits draft", auditor, objects.ApprovalDraft, false, false},
		{"auditor edits rejected", auditor, objects.ApprovalRejected, false, false},
		{"auditor cannot edit submitted", auditor, objects.ApprovalSubmitted, false, true},
		{"auditor cannot edit approved", auditor, objects.ApprovalApproved, false, true},
		{"audit head edits submitted", head, objects.ApprovalSubmitted, false, false},
		{"audit head cannot edit approved", head, objects.ApprovalApproved, false, true},
		{"auditee edits approved", auditee, objects.ApprovalApproved, false, false},
		{"auditee blocked by lock", auditee, objects.ApprovalApproved, true, true},
		{"auditor blocked by lock", auditor, objects.ApprovalDraft, true, true},
		{"cfo edits approved on locked audit", cfo, objects.ApprovalApproved, true, false},
		{"cxo cannot edit", cxo, objects.ApprovalDraft, false, true},
		{"guest cannot edit", guest, objects.ApprovalApproved, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckEdit(tt.principal, newObservation(tt.status, false), newAudit(tt.locked))
			if tt.wantErr {
				assert.True(t, xerrors.IsForbidden(err), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckAll(t *testing.T) {
	audit := newAudit(false)
	o1 := &objects.Observation{ID: "O1", AuditID: audit.ID, ApprovalStatus: objects.ApprovalSubmitted}
	o2 := &objects.Observation{ID: "O2", AuditID: audit.ID, ApprovalStatus: objects.ApprovalDraft}

	t.Run("one draft fails the batch", func(t *testing.T) {
		err := CheckAll(head, Approve, []Target{
			{ID: "O1", Observation: o1, Audit: audit},
			{ID: "O2", Observation: o2, Audit: audit},
		})
		require.Error(t, err)

		bulkErr, ok := xerrors.AsBulk(err)
		require.True(t, ok)
		require.Len(t, bulkErr.Failures, 1)
		assert.Equal(t, "O2", bulkErr.Failures[0].ID)
		assert.Contains(t, bulkErr.Failures[0].Reason, "cannot approve a draft observation")
		assert.Equal(t, objects.ApprovalSubmitted, o1.ApprovalStatus)
	})

	t.Run("every failure is reported", func(t *testing.T) {
		err := CheckAll(head, Approve, []Target{
			{ID: "O2", Observation: o2, Audit: audit},
			{ID: "missing"},
			{ID: "O1", Observation: o1, Audit: audit},
			{ID: "O1", Observation: o1, Audit: audit},
		})
		bulkErr, ok := xerrors.AsBulk(err)
		require.True(t, ok)
		assert.Equal(t, []string{"O2", "missing", "O1"}, lo.Map(bulkErr.Failures, func(f xerrors.TargetFailure, _ int) string { return f.ID }))
		assert.Equal(t, xerrors.CodeNotFound, bulkErr.Failures[1].Code)
	})

	t.Run("all valid", func(t *testing.T) {
		require.NoError(t, CheckAll(head, Approve, []Target{{ID: "O1", Observation: o1, Audit: audit}}))
	})

	t.Run("empty batch", func(t *testing.T) {
		err := CheckAll(head, Approve, nil)
		assert.True(t, xerrors.IsValidation(err))
	})
}
