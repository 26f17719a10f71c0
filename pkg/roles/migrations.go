package roles

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the permission-core schema migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create workspace_roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspace_roles (
					id UUID PRIMARY KEY,
					workspace_id VARCHAR(64) NOT NULL,
					name VARCHAR(64) NOT NULL,
					display_name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					color VARCHAR(16) NOT NULL DEFAULT '',
					base_role VARCHAR(16),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					priority INTEGER NOT NULL DEFAULT 0,
					template_id VARCHAR(64),
					created_by VARCHAR(64),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(workspace_id, name)
				);

				CREATE INDEX IF NOT EXISTS idx_workspace_roles_workspace_id ON workspace_roles(workspace_id);
				CREATE INDEX IF NOT EXISTS idx_workspace_roles_priority ON workspace_roles(workspace_id, priority);
			`,
		},
		{
			Version:     2,
			Description: "Create role_permission_overrides table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_permission_overrides (
					role_id UUID NOT NULL REFERENCES workspace_roles(id) ON DELETE CASCADE,
					resource_type VARCHAR(32) NOT NULL,
					permission VARCHAR(32) NOT NULL,
					granted BOOLEAN NOT NULL,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY(role_id, resource_type, permission)
				);

				CREATE INDEX IF NOT EXISTS idx_role_overrides_role_id ON role_permission_overrides(role_id);
			`,
		},
		{
			Version:     3,
			Description: "Create workspace_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspace_members (
					workspace_id VARCHAR(64) NOT NULL,
					user_id VARCHAR(64) NOT NULL,
					system_role VARCHAR(16) NOT NULL,
					custom_role_id UUID REFERENCES workspace_roles(id) ON DELETE RESTRICT,
					joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY(workspace_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_workspace_members_custom_role ON workspace_members(custom_role_id);
				CREATE INDEX IF NOT EXISTS idx_workspace_members_system_role ON workspace_members(workspace_id, system_role);
			`,
		},
		{
			Version:     4,
			Description: "Create audit_log and permission_audit_log tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_log (
					id BIGSERIAL PRIMARY KEY,
					timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					workspace_id VARCHAR(64) NOT NULL,
					actor_id VARCHAR(64) NOT NULL,
					action VARCHAR(64) NOT NULL,
					entity_type VARCHAR(32) NOT NULL,
					entity_id VARCHAR(64) NOT NULL,
					details JSONB NOT NULL DEFAULT '{}'
				);

				CREATE INDEX IF NOT EXISTS idx_audit_log_workspace ON audit_log(workspace_id, timestamp);

				CREATE TABLE IF NOT EXISTS permission_audit_log (
					id BIGSERIAL PRIMARY KEY,
					timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					workspace_id VARCHAR(64) NOT NULL,
					event_type VARCHAR(64) NOT NULL,
					actor_id VARCHAR(64) NOT NULL,
					target_role_id VARCHAR(64) NOT NULL,
					before_state JSONB,
					after_state JSONB
				);

				CREATE INDEX IF NOT EXISTS idx_permission_audit_workspace ON permission_audit_log(workspace_id, timestamp);
			`,
		},
	}
}

// RunMigrations applies all pending migrations, tracking progress in a
// schema_migrations table.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range GetMigrations() {
		var applied bool
		if err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&applied); err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`, m.Version, m.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}
