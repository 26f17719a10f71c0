package roles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/gatehouse/pkg/catalog"
	"github.com/platinummonkey/gatehouse/pkg/gherr"
)

// Store handles role and override persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a new role store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const roleColumns = `id, workspace_id, name, display_name, description, color, base_role, is_active, priority, template_id, created_by, created_at, updated_at`

// CreateRole inserts a custom role. The count check, priority assignment,
// and insert run in one transaction under a per-workspace advisory lock, so
// two concurrent creations cannot both observe a sub-limit count.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.prepareInsert(ctx, tx, role); err != nil {
		return err
	}
	if err := s.insertRole(ctx, tx, role); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role creation: %w", err)
	}
	return nil
}

// CloneRole inserts a copy of source's display fields plus every override
// row, inside the same atomic count-check transaction as CreateRole.
func (s *Store) CloneRole(ctx context.Context, sourceRoleID string, role *Role) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.prepareInsert(ctx, tx, role); err != nil {
		return err
	}
	if err := s.insertRole(ctx, tx, role); err != nil {
		return err
	}

	copyQuery := `
		INSERT INTO role_permission_overrides (role_id, resource_type, permission, granted, updated_at)
		SELECT $1, resource_type, permission, granted, $2
		FROM role_permission_overrides
		WHERE role_id = $3
	`
	if _, err := tx.ExecContext(ctx, copyQuery, role.ID, role.CreatedAt, sourceRoleID); err != nil {
		return fmt.Errorf("failed to copy permission overrides: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role clone: %w", err)
	}
	return nil
}

// prepareInsert takes the per-workspace advisory lock, re-checks the role
// cap, and assigns the next priority.
func (s *Store) prepareInsert(ctx context.Context, tx *sql.Tx, role *Role) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, role.WorkspaceID); err != nil {
		return fmt.Errorf("failed to acquire workspace lock: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM workspace_roles WHERE workspace_id = $1`, role.WorkspaceID).Scan(&count); err != nil {
		return fmt.Errorf("failed to count workspace roles: %w", err)
	}
	if count >= MaxCustomRolesPerWorkspace {
		return gherr.BadRequest("workspace already has the maximum of %d custom roles", MaxCustomRolesPerWorkspace)
	}

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(priority) + 1, 0) FROM workspace_roles WHERE workspace_id = $1`, role.WorkspaceID).Scan(&next); err != nil {
		return fmt.Errorf("failed to compute role priority: %w", err)
	}
	role.Priority = next
	return nil
}

func (s *Store) insertRole(ctx context.Context, tx *sql.Tx, role *Role) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now
	role.IsActive = true

	query := `
		INSERT INTO workspace_roles (id, workspace_id, name, display_name, description, color, base_role, is_active, priority, template_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := tx.ExecContext(ctx, query,
		role.ID,
		role.WorkspaceID,
		role.Name,
		role.DisplayName,
		role.Description,
		role.Color,
		baseRoleValue(role.BaseRole),
		role.IsActive,
		role.Priority,
		role.TemplateID,
		role.CreatedBy,
		role.CreatedAt,
		role.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return gherr.Conflict("role name %q already exists in workspace", role.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to insert role: %w", err)
	}
	return nil
}

// GetRole retrieves a custom role scoped to a workspace.
func (s *Store) GetRole(ctx context.Context, workspaceID, roleID string) (*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM workspace_roles WHERE workspace_id = $1 AND id = $2`

	role, err := scanRole(s.db.QueryRowContext(ctx, query, workspaceID, roleID))
	if err == sql.ErrNoRows {
		return nil, gherr.NotFound("role %s not found in workspace %s", roleID, workspaceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// ListRoles lists a workspace's custom roles ordered by priority.
func (s *Store) ListRoles(ctx context.Context, workspaceID string) ([]Role, error) {
	query := `SELECT ` + roleColumns + ` FROM workspace_roles WHERE workspace_id = $1 ORDER BY priority ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		out = append(out, *role)
	}
	return out, rows.Err()
}

// ListRoleNames returns every custom role name in a workspace. Used for
// template name deduplication with a single query.
func (s *Store) ListRoleNames(ctx context.Context, workspaceID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM workspace_roles WHERE workspace_id = $1`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan role name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RoleNameExists reports whether a name is taken in the workspace, optionally
// excluding one role (for rename checks).
func (s *Store) RoleNameExists(ctx context.Context, workspaceID, name, excludeRoleID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM workspace_roles WHERE workspace_id = $1 AND name = $2 AND id <> $3)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, workspaceID, name, excludeRoleID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check role name: %w", err)
	}
	return exists, nil
}

// UpdateRole persists mutable role fields.
func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	role.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE workspace_roles
		SET name = $1, display_name = $2, description = $3, color = $4, base_role = $5, is_active = $6, updated_at = $7
		WHERE workspace_id = $8 AND id = $9
	`
	result, err := s.db.ExecContext(ctx, query,
		role.Name,
		role.DisplayName,
		role.Description,
		role.Color,
		baseRoleValue(role.BaseRole),
		role.IsActive,
		role.UpdatedAt,
		role.WorkspaceID,
		role.ID,
	)
	if isUniqueViolation(err) {
		return gherr.Conflict("role name %q already exists in workspace", role.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return gherr.NotFound("role %s not found in workspace %s", role.ID, role.WorkspaceID)
	}
	return nil
}

// DeleteRole removes a role. Override rows cascade.
func (s *Store) DeleteRole(ctx context.Context, workspaceID, roleID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM workspace_roles WHERE workspace_id = $1 AND id = $2`, workspaceID, roleID)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return gherr.NotFound("role %s not found in workspace %s", roleID, workspaceID)
	}
	return nil
}

// ReorderRoles sets priority = positional index for each role id, in one
// transaction. An id outside the workspace aborts the whole reorder.
func (s *Store) ReorderRoles(ctx context.Context, workspaceID string, roleIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for position, roleID := range roleIDs {
		result, err := tx.ExecContext(ctx,
			`UPDATE workspace_roles SET priority = $1, updated_at = $2 WHERE workspace_id = $3 AND id = $4`,
			position, now, workspaceID, roleID,
		)
		if err != nil {
			return fmt.Errorf("failed to reorder role %s: %w", roleID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return gherr.BadRequest("role %s does not belong to workspace %s", roleID, workspaceID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}
	return nil
}

const overrideColumns = `role_id, resource_type, permission, granted, updated_at`

// GetOverride returns one override row, or nil when no explicit override
// exists for the pair.
func (s *Store) GetOverride(ctx context.Context, roleID string, resource catalog.ResourceType, permission catalog.Permission) (*PermissionOverride, error) {
	query := `SELECT ` + overrideColumns + ` FROM role_permission_overrides WHERE role_id = $1 AND resource_type = $2 AND permission = $3`

	var ov PermissionOverride
	err := s.db.QueryRowContext(ctx, query, roleID, resource, permission).Scan(
		&ov.RoleID, &ov.ResourceType, &ov.Permission, &ov.Granted, &ov.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get override: %w", err)
	}
	return &ov, nil
}

// ListOverrides returns every override row for a role.
func (s *Store) ListOverrides(ctx context.Context, roleID string) ([]PermissionOverride, error) {
	query := `SELECT ` + overrideColumns + ` FROM role_permission_overrides WHERE role_id = $1 ORDER BY resource_type, permission`

	rows, err := s.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	defer rows.Close()

	var out []PermissionOverride
	for rows.Next() {
		var ov PermissionOverride
		if err := rows.Scan(&ov.RoleID, &ov.ResourceType, &ov.Permission, &ov.Granted, &ov.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		out = append(out, ov)
	}
	return out, rows.Err()
}

// ListOverridesForResource returns the override rows for one resource type,
// loaded in a single query.
func (s *Store) ListOverridesForResource(ctx context.Context, roleID string, resource catalog.ResourceType) ([]PermissionOverride, error) {
	query := `SELECT ` + overrideColumns + ` FROM role_permission_overrides WHERE role_id = $1 AND resource_type = $2 ORDER BY permission`

	rows, err := s.db.QueryContext(ctx, query, roleID, resource)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides for resource: %w", err)
	}
	defer rows.Close()

	var out []PermissionOverride
	for rows.Next() {
		var ov PermissionOverride
		if err := rows.Scan(&ov.RoleID, &ov.ResourceType, &ov.Permission, &ov.Granted, &ov.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		out = append(out, ov)
	}
	return out, rows.Err()
}

const upsertOverrideQuery = `
	INSERT INTO role_permission_overrides (role_id, resource_type, permission, granted, updated_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (role_id, resource_type, permission)
	DO UPDATE SET granted = EXCLUDED.granted, updated_at = EXCLUDED.updated_at
`

// UpsertOverride inserts or updates one override row.
func (s *Store) UpsertOverride(ctx context.Context, ov *PermissionOverride) error {
	ov.UpdatedAt = time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, upsertOverrideQuery, ov.RoleID, ov.ResourceType, ov.Permission, ov.Granted, ov.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert override: %w", err)
	}
	return nil
}

// UpsertOverridesBulk upserts every row in one transaction, all-or-nothing.
func (s *Store) UpsertOverridesBulk(ctx context.Context, overrides []PermissionOverride) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertOverridesTx(ctx, tx, overrides); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bulk override update: %w", err)
	}
	return nil
}

// DeleteOverrides removes a role's explicit overrides, optionally scoped to
// one resource type. Returns the number of rows removed.
func (s *Store) DeleteOverrides(ctx context.Context, roleID string, resource *catalog.ResourceType) (int64, error) {
	var result sql.Result
	var err error
	if resource != nil {
		result, err = s.db.ExecContext(ctx, `DELETE FROM role_permission_overrides WHERE role_id = $1 AND resource_type = $2`, roleID, *resource)
	} else {
		result, err = s.db.ExecContext(ctx, `DELETE FROM role_permission_overrides WHERE role_id = $1`, roleID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to delete overrides: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// ReplaceOverrides deletes all of a role's overrides and inserts the given
// set, atomically. Used by template resets.
func (s *Store) ReplaceOverrides(ctx context.Context, roleID string, overrides []PermissionOverride) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permission_overrides WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to clear overrides: %w", err)
	}
	if err := upsertOverridesTx(ctx, tx, overrides); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit override replacement: %w", err)
	}
	return nil
}

func upsertOverridesTx(ctx context.Context, tx *sql.Tx, overrides []PermissionOverride) error {
	now := time.Now().UTC()
	for i := range overrides {
		ov := &overrides[i]
		ov.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, upsertOverrideQuery, ov.RoleID, ov.ResourceType, ov.Permission, ov.Granted, ov.UpdatedAt); err != nil {
			return fmt.Errorf("failed to upsert override %s:%s: %w", ov.ResourceType, ov.Permission, err)
		}
	}
	return nil
}

// scanRole scans a role from a row or rows cursor.
func scanRole(scanner interface{ Scan(dest ...interface{}) error }) (*Role, error) {
	var role Role
	var baseRole sql.NullString
	var templateID sql.NullString
	var createdBy sql.NullString

	err := scanner.Scan(
		&role.ID,
		&role.WorkspaceID,
		&role.Name,
		&role.DisplayName,
		&role.Description,
		&role.Color,
		&baseRole,
		&role.IsActive,
		&role.Priority,
		&templateID,
		&createdBy,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if baseRole.Valid {
		b := catalog.BaseRole(baseRole.String)
		role.BaseRole = &b
	}
	if templateID.Valid {
		id := templateID.String
		role.TemplateID = &id
	}
	if createdBy.Valid {
		role.CreatedBy = createdBy.String
	}
	return &role, nil
}

func baseRoleValue(b *catalog.BaseRole) interface{} {
	if b == nil || *b == catalog.BaseRoleNone {
		return nil
	}
	return string(*b)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
