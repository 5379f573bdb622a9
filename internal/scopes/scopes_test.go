package scopes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/watcher"
	"github.com/looplj/auditflow/internal/pkg/xcache"
)

func TestParseGrant(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *Grant
		wantErr string
	}{
		{
			name: "both lists",
			raw:  `{"observationIds":["o-1","o-1","o-2"],"auditIds":["a-1"]}`,
			want: &Grant{ObservationIDs: []string{"o-1", "o-2"}, AuditIDs: []string{"a-1"}},
		},
		{
			name: "empty object",
			raw:  `{}`,
			want: &Grant{},
		},
		{
			name: "null list",
			raw:  `{"auditIds":null}`,
			want: &Grant{},
		},
		{name: "array", raw: `["o-1"]`, wantErr: "must be an object"},
		{name: "invalid json", raw: `{"auditIds":[`, wantErr: "not valid JSON"},
		{name: "unknown key", raw: `{"plantIds":["p-1"]}`, wantErr: "unknown scope grant key"},
		{name: "string instead of list", raw: `{"auditIds":"a-1"}`, wantErr: "must be an array"},
		{name: "number id", raw: `{"observationIds":[1]}`, wantErr: "non-empty strings"},
		{name: "empty id", raw: `{"observationIds":[""]}`, wantErr: "non-empty strings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGrant([]byte(tt.raw))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContainsAndCanRead(t *testing.T) {
	grant := &Grant{ObservationIDs: []string{"A"}}

	a := &objects.Observation{ID: "A", AuditID: "x", ApprovalStatus: objects.ApprovalDraft}
	b := &objects.Observation{ID: "B", AuditID: "x", ApprovalStatus: objects.ApprovalDraft}
	c := &objects.Observation{ID: "C", AuditID: "y", ApprovalStatus: objects.ApprovalApproved, IsPublished: true}
	d := &objects.Observation{ID: "D", AuditID: "y", ApprovalStatus: objects.ApprovalApproved}

	assert.True(t, Contains(a, grant))
	assert.False(t, Contains(b, grant))
	assert.False(t, Contains(a, nil))
	assert.True(t, Contains(b, &Grant{AuditIDs: []string{"x"}}))

	tests := []struct {
		name  string
		role  authz.Role
		obs   *objects.Observation
		grant *Grant
		want  bool
	}{
		{"guest reads granted draft", authz.RoleGuest, a, grant, true},
		{"guest cannot read unrelated draft", authz.RoleGuest, b, grant, false},
		{"guest reads published approved", authz.RoleGuest, c, grant, true},
		{"guest cannot read unpublished approved", authz.RoleGuest, d, nil, false},
		{"auditee without grant", authz.RoleAuditee, c, nil, true},
		{"auditor reads everything", authz.RoleAuditor, b, nil, true},
		{"cxo reads everything", authz.RoleCXOTeam, d, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanRead(tt.role, tt.obs, tt.grant))
		})
	}
}

func TestBuildFilter(t *testing.T) {
	assert.True(t, BuildFilter(nil).Empty())
	assert.True(t, BuildFilter(&Grant{}).Empty())
	assert.Nil(t, BuildFilter(nil).Predicate("id", "audit_id"))

	render := func(p *entsql.Predicate) (string, []any) {
		return entsql.Select("*").From(entsql.Table("observations")).Where(p).Query()
	}

	query, args := render(BuildFilter(&Grant{ObservationIDs: []string{"o-1"}, AuditIDs: []string{"a-1", "a-2"}}).Predicate("id", "audit_id"))
	assert.Equal(t, "SELECT * FROM `observations` WHERE `id` IN (?) OR `audit_id` IN (?, ?)", query)
	assert.Equal(t, []any{"o-1", "a-1", "a-2"}, args)

	query, args = render(BuildFilter(&Grant{AuditIDs: []string{"a-1"}}).Predicate("id", "audit_id"))
	assert.Equal(t, "SELECT * FROM `observations` WHERE `audit_id` IN (?)", query)
	assert.Equal(t, []any{"a-1"}, args)
}

type fakeSource struct {
	raw   map[string]string
	err   error
	calls int
}

func (f *fakeSource) LatestRedeemedScope(ctx context.Context, userID string) ([]byte, bool, error) {
	f.calls++
	if f.err != nil {
		return nil, false, f.err
	}

	raw, ok := f.raw[userID]

	return []byte(raw), ok, nil
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{raw: map[string]string{
		"guest-1": `{"observationIds":["A"]}`,
		"guest-2": `{"observationIds":"A"}`,
	}}
	resolver := NewResolver(source, xcache.NewMemoryWithOptions[CacheEntry](time.Minute, time.Minute))

	grant, err := resolver.Resolve(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, &Grant{ObservationIDs: []string{"A"}}, grant)

	t.Run("cached", func(t *testing.T) {
		calls := source.calls

		grant, err := resolver.Resolve(ctx, "guest-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, grant.ObservationIDs)
		assert.Equal(t, calls, source.calls)
	})

	t.Run("invalidate reloads", func(t *testing.T) {
		source.raw["guest-1"] = `{"auditIds":["X"]}`
		resolver.Invalidate(ctx, "guest-1")

		grant, err := resolver.Resolve(ctx, "guest-1")
		require.NoError(t, err)
		assert.Equal(t, &Grant{AuditIDs: []string{"X"}}, grant)
	})

	t.Run("malformed resolves to nil", func(t *testing.T) {
		grant, err := resolver.Resolve(ctx, "guest-2")
		require.NoError(t, err)
		assert.Nil(t, grant)
	})

	t.Run("absent resolves to nil", func(t *testing.T) {
		grant, err := resolver.Resolve(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, grant)
	})

	t.Run("source errors propagate", func(t *testing.T) {
		failing := NewResolver(&fakeSource{err: errors.New("db down")}, nil)

		_, err := failing.Resolve(ctx, "guest-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})

	t.Run("resolution does not mutate the grant source", func(t *testing.T) {
		before := source.raw["guest-1"]
		_, err := resolver.Resolve(ctx, "guest-1")
		require.NoError(t, err)
		assert.Equal(t, before, source.raw["guest-1"])
	})
}

func TestResolver_InvalidationAcrossInstances(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{raw: map[string]string{"guest-1": `{"observationIds":["A"]}`}}
	bus := watcher.NewMemory[string](watcher.Options{Buffer: 8})

	first := NewResolver(source, xcache.NewMemoryWithOptions[CacheEntry](time.Minute, time.Minute))
	second := NewResolver(source, xcache.NewMemoryWithOptions[CacheEntry](time.Minute, time.Minute))

	stopFirst := first.Listen(bus)
	defer stopFirst()

	stopSecond := second.Listen(bus)
	defer stopSecond()

	_, err := second.Resolve(ctx, "guest-1")
	require.NoError(t, err)

	source.raw["guest-1"] = `{"auditIds":["X"]}`
	first.Invalidate(ctx, "guest-1")

	require.Eventually(t, func() bool {
		_, err := second.cache.Get(ctx, cacheKey("guest-1"))
		return err != nil
	}, time.Second, 10*time.Millisecond)

	grant, err := second.Resolve(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, &Grant{AuditIDs: []string{"X"}}, grant)
}
