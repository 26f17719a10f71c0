package membership

import (
	"context"
	"time"

	"github.com/platinummonkey/gatehouse/pkg/catalog"
)

// Member maps a (workspace, user) pair to its membership role. A member
// either holds a system role directly or points at a custom role; when
// CustomRoleID is set the system role records how the member joined but
// permission resolution goes through the custom role.
type Member struct {
	WorkspaceID  string            `json:"workspace_id"`
	UserID       string            `json:"user_id"`
	SystemRole   catalog.BaseRole  `json:"system_role"`
	CustomRoleID *string           `json:"custom_role_id,omitempty"`
	JoinedAt     time.Time         `json:"joined_at"`
}

// Reader is the read-only membership contract consumed by the permission
// core.
type Reader interface {
	// GetMember returns the membership record for (workspace, user).
	GetMember(ctx context.Context, workspaceID, userID string) (*Member, error)

	// CountRoleMembers returns how many members reference a custom role.
	CountRoleMembers(ctx context.Context, roleID string) (int, error)

	// CountSystemRoleMembers returns how many members of a workspace hold a
	// system role directly (no custom role).
	CountSystemRoleMembers(ctx context.Context, workspaceID string, base catalog.BaseRole) (int, error)

	// ListRoleMembers returns the members of a workspace referencing a
	// custom role.
	ListRoleMembers(ctx context.Context, workspaceID, roleID string) ([]Member, error)
}
