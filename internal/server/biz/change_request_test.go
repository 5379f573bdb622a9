package biz

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/notify"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

func TestChangeRequestService_Create(t *testing.T) {
	env := newTestEnv(t)
	env.seedAudit(t, "X", false)
	env.seedObservation(t, "draft", "X", objects.ApprovalDraft, false)
	env.seedObservation(t, "approved", "X", objects.ApprovalApproved, false)

	auditor := as(auditorID, authz.RoleAuditor)

	tests := []struct {
		name  string
		ctx   context.Context
		obsID string
		patch string
		check func(t *testing.T, err error)
	}{
		{
			name:  "auditee cannot request changes",
			ctx:   as(auditeeID, authz.RoleAuditee),
			obsID: "approved",
			patch: `{"auditeeFeedback":"x"}`,
			check: func(t *testing.T, err error) { assert.True(t, xerrors.IsForbidden(err)) },
		},
		{
			name:  "auditor on a draft",
			obsID: "draft",
			patch: `{"riskCategory":"C"}`,
			check: func(t *testing.T, err error) {
				require.True(t, xerrors.IsValidation(err))
				assert.Contains(t, err.Error(), "approved observations")
			},
		},
		{
			name:  "auditor with an auditee field",
			obsID: "approved",
			patch: `{"riskCategory":"C","auditeeFeedback":"x"}`,
			check: func(t *testing.T, err error) {
				require.True(t, xerrors.IsValidation(err))
				assert.Contains(t, err.Error(), "auditeeFeedback")
			},
		},
		{
			name:  "invalid value",
			obsID: "approved",
			patch: `{"riskCategory":"Z"}`,
			check: func(t *testing.T, err error) { assert.True(t, xerrors.IsValidation(err)) },
		},
		{
			name:  "empty patch",
			obsID: "approved",
			patch: `{}`,
			check: func(t *testing.T, err error) { assert.True(t, xerrors.IsValidation(err)) },
		},
		{
			name:  "missing observation",
			obsID: "missing",
			patch: `{"riskCategory":"C"}`,
			check: func(t *testing.T, err error) { assert.True(t, xerrors.IsNotFound(err)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.ctx
			if ctx == nil {
				ctx = auditor
			}

			_, err := env.changeRequests.CreateChangeRequest(ctx, tt.obsID, CreateChangeRequestInput{Patch: json.RawMessage(tt.patch)})
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	t.Run("audit head may propose any field on a draft", func(t *testing.T) {
		cr, err := env.changeRequests.CreateChangeRequest(as(headID, authz.RoleAuditHead), "draft", CreateChangeRequestInput{
			Patch:  json.RawMessage(`{"auditeeFeedback":"noted","targetDate":"2026-01-15"}`),
			Reason: "follow up",
		})
		require.NoError(t, err)
		assert.Equal(t, objects.ChangeRequestPending, cr.Status)
		assert.Equal(t, "AUDIT_HEAD", cr.RequesterRole)
		assert.JSONEq(t, `{"auditeeFeedback":"noted","targetDate":"2026-01-15"}`, string(cr.Patch))
	})
}

func TestChangeRequestService_ApproveAppliesKnownFieldsOnly(t *testing.T) {
	env := newTestEnv(t)
	env.seedAudit(t, "Y", false)
	env.seedObservation(t, "A", "Y", objects.ApprovalApproved, false)

	cr, err := env.changeRequests.CreateChangeRequest(as(headID, authz.RoleAuditHead), "A", CreateChangeRequestInput{
		Patch: json.RawMessage(`{"observationText":"fixed","approvalStatus":"DRAFT"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, objects.ChangeRequestPending, cr.Status)
	assert.JSONEq(t, `{"observationText":"fixed","approvalStatus":"DRAFT"}`, string(cr.Patch))

	approved, err := env.changeRequests.ApproveChangeRequest(as(cfoID, authz.RoleCFO), cr.ID, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"observationText":{"before":"finding A","after":"fixed"}}`, string(approved.Diff))

	obs := env.reload(t, "A")
	assert.Equal(t, "fixed", obs.ObservationText)
	assert.Equal(t, objects.ApprovalApproved, obs.ApprovalStatus)

	t.Run("invalid known value is still rejected", func(t *testing.T) {
		_, err := env.changeRequests.CreateChangeRequest(as(cfoID, authz.RoleCFO), "A", CreateChangeRequestInput{
			Patch: json.RawMessage(`{"riskCategory":"Z","status":"x"}`),
		})
		assert.True(t, xerrors.IsValidation(err))
	})
}

func TestChangeRequestService_Decide(t *testing.T) {
	env := newTestEnv(t)
	env.seedAudit(t, "L", true)
	env.seedObservation(t, "O", "L", objects.ApprovalApproved, true)

	auditor := as(auditorID, authz.RoleAuditor)
	cfo := as(cfoID, authz.RoleCFO)

	_, err := env.observations.SetLockedFields(cfo, "O", []string{"riskCategory"})
	require.NoError(t, err)

	// The audit lock does not block proposing a change.
	cr, err := env.changeRequests.CreateChangeRequest(auditor, "O", CreateChangeRequestInput{
		Patch:  json.RawMessage(`{"riskCategory":"C","likelyImpact":"material"}`),
		Reason: "re-rated after walkthrough",
	})
	require.NoError(t, err)

	_, err = env.changeRequests.ApproveChangeRequest(as(headID, authz.RoleAuditHead), cr.ID, "")
	require.True(t, xerrors.IsForbidden(err))

	_, err = env.changeRequests.ApproveChangeRequest(as(cxoID, authz.RoleCXOTeam), cr.ID, "")
	require.True(t, xerrors.IsForbidden(err))

	approved, err := env.changeRequests.ApproveChangeRequest(cfo, cr.ID, "ok")
	require.NoError(t, err)
	assert.Equal(t, objects.ChangeRequestApproved, approved.Status)
	assert.Equal(t, cfoID, approved.DecidedBy)
	assert.NotNil(t, approved.DecidedAt)
	assert.JSONEq(t, `{
		"likelyImpact":{"before":"","after":"material"},
		"riskCategory":{"before":"","after":"C"}
	}`, string(approved.Diff))

	obs := env.reload(t, "O")
	assert.Equal(t, objects.RiskC, obs.RiskCategory, "applied despite the audit lock and the field lock")
	assert.Equal(t, "material", obs.LikelyImpact)
	assert.Equal(t, []string{"riskCategory"}, obs.LockedFields)

	_, err = env.changeRequests.ApproveChangeRequest(cfo, cr.ID, "")
	require.True(t, xerrors.IsAlreadyInState(err))

	_, err = env.changeRequests.DenyChangeRequest(cfo, cr.ID, "")
	require.True(t, xerrors.IsAlreadyInState(err))

	// The bypass does not leak into a direct edit.
	_, err = env.observations.UpdateFields(cfo, "O", json.RawMessage(`{"riskCategory":"A"}`))
	require.True(t, xerrors.IsForbidden(err))

	bypassCtx, err := authz.WithLockBypass(cfo, BypassChangeRequestApply)
	require.NoError(t, err)

	_, err = env.observations.UpdateFields(bypassCtx, "O", json.RawMessage(`{"riskCategory":"A"}`))
	require.True(t, xerrors.IsForbidden(err), "locked fields hold on the direct edit path even under a bypass")

	second, err := env.changeRequests.CreateChangeRequest(auditor, "O", CreateChangeRequestInput{
		Patch: json.RawMessage(`{"observationText":"rewritten"}`),
	})
	require.NoError(t, err)

	denied, err := env.changeRequests.DenyChangeRequest(cfo, second.ID, "not needed")
	require.NoError(t, err)
	assert.Equal(t, objects.ChangeRequestDenied, denied.Status)
	assert.Equal(t, "not needed", denied.DecisionComment)
	assert.Empty(t, denied.Diff)
	assert.Equal(t, "finding O", env.reload(t, "O").ObservationText)

	assert.Equal(t, []string{
		notify.EventChangeRequestCreated,
		notify.EventChangeRequestApproved,
		notify.EventChangeRequestCreated,
		notify.EventChangeRequestDenied,
	}, env.notifier.events())

	assert.Contains(t, env.trail(t, "O"), "observation.change_request_applied")
	assert.ElementsMatch(t, []string{"change_request.create", "change_request.approve"}, env.trail(t, cr.ID))

	t.Run("read access", func(t *testing.T) {
		_, err := env.changeRequests.GetChangeRequest(as(guestID, authz.RoleGuest), cr.ID)
		assert.True(t, xerrors.IsForbidden(err))

		found, err := env.changeRequests.GetChangeRequest(auditor, cr.ID)
		require.NoError(t, err)
		assert.Equal(t, objects.ChangeRequestApproved, found.Status)

		_, err = env.changeRequests.GetChangeRequest(auditor, "missing")
		assert.True(t, xerrors.IsNotFound(err))

		all, err := env.changeRequests.ListChangeRequests(cfo, "O", "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		pending, err := env.changeRequests.ListChangeRequests(cfo, "O", objects.ChangeRequestPending)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}
