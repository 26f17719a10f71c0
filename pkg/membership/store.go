package membership

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/gatehouse/pkg/catalog"
	"github.com/platinummonkey/gatehouse/pkg/gherr"
)

// Store reads membership from PostgreSQL. It implements Reader.
type Store struct {
	db *sql.DB
}

// NewStore creates a membership store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetMember returns the membership record for (workspace, user).
func (s *Store) GetMember(ctx context.Context, workspaceID, userID string) (*Member, error) {
	query := `
		SELECT workspace_id, user_id, system_role, custom_role_id, joined_at
		FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2
	`

	var m Member
	var customRoleID sql.NullString

	err := s.db.QueryRowContext(ctx, query, workspaceID, userID).Scan(
		&m.WorkspaceID,
		&m.UserID,
		&m.SystemRole,
		&customRoleID,
		&m.JoinedAt,
	)
	if err == sql.ErrNoRows {
		return nil, gherr.NotFound("user %s is not a member of workspace %s", userID, workspaceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	if customRoleID.Valid {
		id := customRoleID.String
		m.CustomRoleID = &id
	}

	return &m, nil
}

// CountRoleMembers returns how many members reference a custom role.
func (s *Store) CountRoleMembers(ctx context.Context, roleID string) (int, error) {
	query := `SELECT COUNT(*) FROM workspace_members WHERE custom_role_id = $1`

	var count int
	if err := s.db.QueryRowContext(ctx, query, roleID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count role members: %w", err)
	}
	return count, nil
}

// CountSystemRoleMembers returns how many members of a workspace hold a
// system role directly.
func (s *Store) CountSystemRoleMembers(ctx context.Context, workspaceID string, base catalog.BaseRole) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM workspace_members
		WHERE workspace_id = $1 AND system_role = $2 AND custom_role_id IS NULL
	`

	var count int
	if err := s.db.QueryRowContext(ctx, query, workspaceID, base).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count system role members: %w", err)
	}
	return count, nil
}

// ListRoleMembers returns the members of a workspace referencing a custom
// role, oldest first.
func (s *Store) ListRoleMembers(ctx context.Context, workspaceID, roleID string) ([]Member, error) {
	query := `
		SELECT workspace_id, user_id, system_role, custom_role_id, joined_at
		FROM workspace_members
		WHERE workspace_id = $1 AND custom_role_id = $2
		ORDER BY joined_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, workspaceID, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		var customRoleID sql.NullString

		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.SystemRole, &customRoleID, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if customRoleID.Valid {
			id := customRoleID.String
			m.CustomRoleID = &id
		}
		members = append(members, m)
	}

	return members, rows.Err()
}
