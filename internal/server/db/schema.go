package db

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
)

// Times are stored as fixed width UTC text so they sort and compare the same way on every dialect.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

var tables = []string{
	`CREATE TABLE IF NOT EXISTS audits (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	plant_id TEXT NOT NULL DEFAULT '',
	audit_head_id TEXT NOT NULL DEFAULT '',
	is_locked {{bool}} NOT NULL DEFAULT {{false}},
	locked_at TEXT,
	locked_by TEXT NOT NULL DEFAULT '',
	completed_at TEXT,
	completed_by TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS observations (
	id TEXT PRIMARY KEY,
	audit_id TEXT NOT NULL REFERENCES audits(id),
	plant_id TEXT NOT NULL DEFAULT '',
	observation_text TEXT NOT NULL DEFAULT '',
	risk_category TEXT NOT NULL DEFAULT '',
	likely_impact TEXT NOT NULL DEFAULT '',
	concerned_process TEXT NOT NULL DEFAULT '',
	auditor_person_id TEXT NOT NULL DEFAULT '',
	auditee_feedback TEXT NOT NULL DEFAULT '',
	action_plan_text TEXT NOT NULL DEFAULT '',
	target_date TEXT,
	responsible_person TEXT NOT NULL DEFAULT '',
	current_status TEXT NOT NULL DEFAULT 'PENDING',
	approval_status TEXT NOT NULL DEFAULT 'DRAFT',
	is_published {{bool}} NOT NULL DEFAULT {{false}},
	locked_fields TEXT NOT NULL DEFAULT '[]',
	created_by TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS observations_audit_id ON observations (audit_id)`,
	`CREATE TABLE IF NOT EXISTS approvals (
	id TEXT PRIMARY KEY,
	observation_id TEXT NOT NULL REFERENCES observations(id),
	status TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	comment TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS approvals_observation_id ON approvals (observation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS action_plans (
	id TEXT PRIMARY KEY,
	observation_id TEXT NOT NULL REFERENCES observations(id),
	plan TEXT NOT NULL DEFAULT '',
	owner TEXT NOT NULL DEFAULT '',
	target_date TEXT,
	status TEXT NOT NULL DEFAULT '',
	retest TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS action_plans_observation_id ON action_plans (observation_id)`,
	`CREATE TABLE IF NOT EXISTS change_requests (
	id TEXT PRIMARY KEY,
	observation_id TEXT NOT NULL REFERENCES observations(id),
	requester_id TEXT NOT NULL,
	requester_role TEXT NOT NULL,
	patch TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'PENDING',
	decided_by TEXT NOT NULL DEFAULT '',
	decided_at TEXT,
	decision_comment TEXT NOT NULL DEFAULT '',
	diff TEXT,
	created_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS change_requests_observation_id ON change_requests (observation_id)`,
	`CREATE TABLE IF NOT EXISTS invites (
	id TEXT PRIMARY KEY,
	token TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	scope TEXT NOT NULL DEFAULT '{}',
	created_by TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	expires_at TEXT,
	redeemed_by TEXT NOT NULL DEFAULT '',
	redeemed_at TEXT
)`,
	`CREATE INDEX IF NOT EXISTS invites_redeemed_by ON invites (redeemed_by, redeemed_at)`,
	`CREATE TABLE IF NOT EXISTS audit_entries (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	action TEXT NOT NULL,
	actor_id TEXT NOT NULL DEFAULT '',
	diff TEXT,
	created_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS audit_entries_entity ON audit_entries (entity_type, entity_id, created_at)`,
}

// Migrate creates the tables that do not exist yet.
func Migrate(ctx context.Context, drv dialect.Driver) error {
	replacer := typeReplacer(drv.Dialect())

	for _, stmt := range tables {
		if err := drv.Exec(ctx, replacer.Replace(stmt), []any{}, nil); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}

func typeReplacer(name string) *strings.Replacer {
	if name == dialect.Postgres {
		return strings.NewReplacer("{{bool}}", "BOOLEAN", "{{false}}", "FALSE")
	}

	return strings.NewReplacer("{{bool}}", "INTEGER", "{{false}}", "0")
}
