package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	entsql "entgo.io/ent/dialect/sql"
)

func TestNewDriver(t *testing.T) {
	drv, err := NewDriver(Config{Dialect: "sqlite", DSN: "file:db_test?mode=memory&_pragma=foreign_keys(1)"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })

	ctx := context.Background()

	var rows entsql.Rows
	require.NoError(t, drv.Query(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name", []any{}, &rows))

	var names []string
	require.NoError(t, entsql.ScanSlice(&rows, &names))
	require.NoError(t, rows.Close())

	assert.Equal(t, []string{"action_plans", "approvals", "audit_entries", "audits", "change_requests", "invites", "observations"}, names)

	// Migrating twice is a no-op.
	require.NoError(t, Migrate(ctx, drv))
}

func TestNewDriver_InvalidDialect(t *testing.T) {
	_, err := NewDriver(Config{Dialect: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid dialect")
}

func TestTypeReplacer(t *testing.T) {
	assert.Equal(t, "is_locked BOOLEAN NOT NULL DEFAULT FALSE", typeReplacer("postgres").Replace("is_locked {{bool}} NOT NULL DEFAULT {{false}}"))
	assert.Equal(t, "is_locked INTEGER NOT NULL DEFAULT 0", typeReplacer("sqlite3").Replace("is_locked {{bool}} NOT NULL DEFAULT {{false}}"))
}
