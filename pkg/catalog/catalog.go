package catalog

// ResourceType is a coarse resource domain with its own permission vocabulary.
type ResourceType string

const (
	ResourceProjects       ResourceType = "projects"
	ResourceAgents         ResourceType = "agents"
	ResourceStories        ResourceType = "stories"
	ResourceDeployments    ResourceType = "deployments"
	ResourceSecrets        ResourceType = "secrets"
	ResourceIntegrations   ResourceType = "integrations"
	ResourceWorkspace      ResourceType = "workspace"
	ResourceCostManagement ResourceType = "cost_management"
)

// Permission is a named action scoped to a resource type.
type Permission string

const (
	PermView    Permission = "view"
	PermCreate  Permission = "create"
	PermEdit    Permission = "edit"
	PermDelete  Permission = "delete"
	PermArchive Permission = "archive"

	PermExecute Permission = "execute"

	PermAssign  Permission = "assign"
	PermApprove Permission = "approve"

	PermPromote  Permission = "promote"
	PermRollback Permission = "rollback"

	PermReveal Permission = "reveal"

	PermConnect    Permission = "connect"
	PermConfigure  Permission = "configure"
	PermDisconnect Permission = "disconnect"

	PermEditSettings  Permission = "edit_settings"
	PermManageMembers Permission = "manage_members"
	PermManageRoles   Permission = "manage_roles"
	PermManageBilling Permission = "manage_billing"

	PermSetBudgets Permission = "set_budgets"
	PermExport     Permission = "export"
)

// resourcePermissions enumerates the permission vocabulary per resource type.
// Order is the canonical display order.
var resourcePermissions = map[ResourceType][]Permission{
	ResourceProjects:       {PermView, PermCreate, PermEdit, PermDelete, PermArchive},
	ResourceAgents:         {PermView, PermCreate, PermEdit, PermDelete, PermExecute},
	ResourceStories:        {PermView, PermCreate, PermEdit, PermDelete, PermAssign, PermApprove},
	ResourceDeployments:    {PermView, PermCreate, PermPromote, PermRollback, PermDelete},
	ResourceSecrets:        {PermView, PermCreate, PermEdit, PermDelete, PermReveal},
	ResourceIntegrations:   {PermView, PermConnect, PermConfigure, PermDisconnect},
	ResourceWorkspace:      {PermView, PermEditSettings, PermManageMembers, PermManageRoles, PermManageBilling, PermDelete},
	ResourceCostManagement: {PermView, PermSetBudgets, PermExport},
}

// resourceOrder is the canonical ordering of resource types.
var resourceOrder = []ResourceType{
	ResourceProjects,
	ResourceAgents,
	ResourceStories,
	ResourceDeployments,
	ResourceSecrets,
	ResourceIntegrations,
	ResourceWorkspace,
	ResourceCostManagement,
}

// ResourceTypes returns the resource types in canonical order.
func ResourceTypes() []ResourceType {
	out := make([]ResourceType, len(resourceOrder))
	copy(out, resourceOrder)
	return out
}

// Permissions returns the permission names for a resource type in canonical
// order, or nil for an unknown resource type.
func Permissions(resource ResourceType) []Permission {
	perms, ok := resourcePermissions[resource]
	if !ok {
		return nil
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// ValidResource reports whether the resource type is in the catalog.
func ValidResource(resource ResourceType) bool {
	_, ok := resourcePermissions[resource]
	return ok
}

// ValidPermission reports whether (resource, permission) is in the catalog.
func ValidPermission(resource ResourceType, permission Permission) bool {
	for _, p := range resourcePermissions[resource] {
		if p == permission {
			return true
		}
	}
	return false
}

// PermissionCount returns the total number of (resource, permission) pairs.
func PermissionCount() int {
	n := 0
	for _, perms := range resourcePermissions {
		n += len(perms)
	}
	return n
}

// FullMap returns a complete permission map covering every catalog pair, with
// every value set to granted.
func FullMap(granted bool) map[ResourceType]map[Permission]bool {
	out := make(map[ResourceType]map[Permission]bool, len(resourcePermissions))
	for resource, perms := range resourcePermissions {
		m := make(map[Permission]bool, len(perms))
		for _, p := range perms {
			m[p] = granted
		}
		out[resource] = m
	}
	return out
}
