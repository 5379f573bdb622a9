package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/auditflow/internal/audittrail"
	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

func TestAuditTrailService_QueryEntries(t *testing.T) {
	env := newTestEnv(t)
	env.seedAudit(t, "X", false)
	env.seedObservation(t, "O", "X", objects.ApprovalDraft, false)

	_, err := env.observations.Submit(as(auditorID, authz.RoleAuditor), "O", "")
	require.NoError(t, err)

	_, err = env.audits.LockAudit(as(cxoID, authz.RoleCXOTeam), "X")
	require.NoError(t, err)

	for _, role := range []authz.Role{authz.RoleAuditHead, authz.RoleAuditor, authz.RoleAuditee, authz.RoleGuest} {
		_, err := env.auditTrail.QueryEntries(as("someone", role), audittrail.Filter{})
		assert.True(t, xerrors.IsForbidden(err), role)
	}

	entries, err := env.auditTrail.QueryEntries(as(cfoID, authz.RoleCFO), audittrail.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = env.auditTrail.QueryEntries(as(cxoID, authz.RoleCXOTeam), audittrail.Filter{ActorID: auditorID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "observation.submit", entries[0].Action)
	assert.Equal(t, audittrail.EntityObservation, entries[0].EntityType)
	assert.JSONEq(t, `{"approvalStatus":{"before":"DRAFT","after":"SUBMITTED"}}`, string(entries[0].Diff))

	entries, err = env.auditTrail.QueryEntries(as(cfoID, authz.RoleCFO), audittrail.Filter{EntityType: audittrail.EntityAudit})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "audit.lock", entries[0].Action)
}
