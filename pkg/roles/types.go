package roles

import (
	"regexp"
	"time"

	"github.com/platinummonkey/gatehouse/pkg/catalog"
	"github.com/platinummonkey/gatehouse/pkg/gherr"
)

// MaxCustomRolesPerWorkspace caps how many custom roles a workspace may hold.
const MaxCustomRolesPerWorkspace = 20

// roleNamePattern: lowercase slug, 2-50 characters, starts with a letter.
var roleNamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]{1,49}$`)

// Role is a workspace-scoped role. System roles carry IsSystem=true, a nil
// ID-backed row never exists for them.
type Role struct {
	ID          string            `json:"id"`
	WorkspaceID string            `json:"workspace_id"`
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Description string            `json:"description"`
	Color       string            `json:"color,omitempty"`
	BaseRole    *catalog.BaseRole `json:"base_role,omitempty"`
	IsSystem    bool              `json:"is_system"`
	IsActive    bool              `json:"is_active"`
	Priority    int               `json:"priority"`
	TemplateID  *string           `json:"template_id,omitempty"`
	CreatedBy   string            `json:"created_by,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	// MemberCount is populated on list/get reads, never stored.
	MemberCount int `json:"member_count"`
}

// PermissionOverride is one explicit (role, resource, permission) grant or
// denial. Presence always wins over base-role inheritance.
type PermissionOverride struct {
	RoleID       string               `json:"role_id"`
	ResourceType catalog.ResourceType `json:"resource_type"`
	Permission   catalog.Permission   `json:"permission"`
	Granted      bool                 `json:"granted"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// CreateRoleRequest carries the caller-supplied fields for a new role.
type CreateRoleRequest struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Description string            `json:"description"`
	Color       string            `json:"color"`
	BaseRole    *catalog.BaseRole `json:"base_role"`
	TemplateID  *string           `json:"template_id"`
	CreatedBy   string            `json:"created_by"`
}

// UpdateRoleRequest carries partial updates; nil fields are left unchanged.
type UpdateRoleRequest struct {
	Name        *string           `json:"name"`
	DisplayName *string           `json:"display_name"`
	Description *string           `json:"description"`
	Color       *string           `json:"color"`
	BaseRole    *catalog.BaseRole `json:"base_role"`
	IsActive    *bool             `json:"is_active"`
}

// ValidateRoleName checks the slug pattern, length bounds, and the reserved
// set. It does not check workspace uniqueness; that happens in the store.
func ValidateRoleName(name string) error {
	if !roleNamePattern.MatchString(name) {
		return gherr.BadRequest("role name %q must be a lowercase slug of 2-50 characters starting with a letter", name)
	}
	if catalog.ReservedRoleName(name) {
		return gherr.BadRequest("role name %q is reserved", name)
	}
	return nil
}

// IsSystemRoleName reports whether name addresses a synthetic system role.
// System roles are not stored, so any operation that reaches the store with
// one of these names is rejected up front.
func IsSystemRoleName(name string) bool {
	switch catalog.BaseRole(name) {
	case catalog.BaseRoleOwner, catalog.BaseRoleAdmin, catalog.BaseRoleDeveloper, catalog.BaseRoleViewer:
		return true
	}
	return false
}
