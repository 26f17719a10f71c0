package catalog

// BaseRole is a system membership role. Custom roles may name one as their
// inheritance source.
type BaseRole string

const (
	BaseRoleOwner     BaseRole = "owner"
	BaseRoleAdmin     BaseRole = "admin"
	BaseRoleDeveloper BaseRole = "developer"
	BaseRoleViewer    BaseRole = "viewer"
	BaseRoleNone      BaseRole = "none"
)

// SystemRoleDefinition describes a synthetic system role. System roles are
// computed on read, never stored.
type SystemRoleDefinition struct {
	Name        BaseRole
	DisplayName string
	Description string
	Color       string
	Priority    int
}

var systemRoleDefinitions = []SystemRoleDefinition{
	{Name: BaseRoleOwner, DisplayName: "Owner", Description: "Full control of the workspace, including deletion and billing", Color: "#7C3AED", Priority: 0},
	{Name: BaseRoleAdmin, DisplayName: "Admin", Description: "Manages members, roles, and all workspace resources", Color: "#2563EB", Priority: 1},
	{Name: BaseRoleDeveloper, DisplayName: "Developer", Description: "Builds and runs projects, agents, and deployments", Color: "#059669", Priority: 2},
	{Name: BaseRoleViewer, DisplayName: "Viewer", Description: "Read-only access to workspace resources", Color: "#6B7280", Priority: 3},
}

// SystemRoles returns the system role definitions in priority order.
func SystemRoles() []SystemRoleDefinition {
	out := make([]SystemRoleDefinition, len(systemRoleDefinitions))
	copy(out, systemRoleDefinitions)
	return out
}

// ValidBaseRole reports whether b can be used as an inheritance source.
// BaseRoleNone is valid and means "inherit nothing, deny by default".
func ValidBaseRole(b BaseRole) bool {
	switch b {
	case BaseRoleOwner, BaseRoleAdmin, BaseRoleDeveloper, BaseRoleViewer, BaseRoleNone:
		return true
	}
	return false
}

// baseRoleDefaults is the inherited grant table. A pair absent from a base
// role's map is denied. Owner is included for completeness even though the
// matrix engine short-circuits owner checks.
var baseRoleDefaults = map[BaseRole]map[ResourceType]map[Permission]bool{
	BaseRoleOwner: fullGrant(),
	BaseRoleAdmin: {
		ResourceProjects:       {PermView: true, PermCreate: true, PermEdit: true, PermDelete: true, PermArchive: true},
		ResourceAgents:         {PermView: true, PermCreate: true, PermEdit: true, PermDelete: true, PermExecute: true},
		ResourceStories:        {PermView: true, PermCreate: true, PermEdit: true, PermDelete: true, PermAssign: true, PermApprove: true},
		ResourceDeployments:    {PermView: true, PermCreate: true, PermPromote: true, PermRollback: true, PermDelete: true},
		ResourceSecrets:        {PermView: true, PermCreate: true, PermEdit: true, PermDelete: true, PermReveal: true},
		ResourceIntegrations:   {PermView: true, PermConnect: true, PermConfigure: true, PermDisconnect: true},
		ResourceWorkspace:      {PermView: true, PermEditSettings: true, PermManageMembers: true, PermManageRoles: true, PermManageBilling: false, PermDelete: false},
		ResourceCostManagement: {PermView: true, PermSetBudgets: true, PermExport: true},
	},
	BaseRoleDeveloper: {
		ResourceProjects:       {PermView: true, PermCreate: true, PermEdit: true, PermDelete: false, PermArchive: true},
		ResourceAgents:         {PermView: true, PermCreate: true, PermEdit: true, PermDelete: false, PermExecute: true},
		ResourceStories:        {PermView: true, PermCreate: true, PermEdit: true, PermDelete: true, PermAssign: true, PermApprove: false},
		ResourceDeployments:    {PermView: true, PermCreate: true, PermPromote: false, PermRollback: false, PermDelete: false},
		ResourceSecrets:        {PermView: true, PermCreate: false, PermEdit: false, PermDelete: false, PermReveal: false},
		ResourceIntegrations:   {PermView: true, PermConnect: false, PermConfigure: false, PermDisconnect: false},
		ResourceWorkspace:      {PermView: true, PermEditSettings: false, PermManageMembers: false, PermManageRoles: false, PermManageBilling: false, PermDelete: false},
		ResourceCostManagement: {PermView: false, PermSetBudgets: false, PermExport: false},
	},
	BaseRoleViewer: {
		ResourceProjects:       {PermView: true},
		ResourceAgents:         {PermView: true},
		ResourceStories:        {PermView: true},
		ResourceDeployments:    {PermView: true},
		ResourceIntegrations:   {PermView: true},
		ResourceWorkspace:      {PermView: true},
		ResourceCostManagement: {},
		ResourceSecrets:        {},
	},
	BaseRoleNone: {},
}

func fullGrant() map[ResourceType]map[Permission]bool {
	out := make(map[ResourceType]map[Permission]bool, len(resourcePermissions))
	for resource, perms := range resourcePermissions {
		m := make(map[Permission]bool, len(perms))
		for _, p := range perms {
			m[p] = true
		}
		out[resource] = m
	}
	return out
}

// BaseRoleDefault resolves the inherited value for one pair. The second
// return is false when the base role defines no entry for the pair, which
// the matrix engine treats as deny-not-inherited.
func BaseRoleDefault(base BaseRole, resource ResourceType, permission Permission) (granted bool, defined bool) {
	byResource, ok := baseRoleDefaults[base]
	if !ok {
		return false, false
	}
	perms, ok := byResource[resource]
	if !ok {
		return false, false
	}
	granted, defined = perms[permission]
	return granted, defined
}

// BaseRoleDefaults returns a deep copy of the full default map for a base
// role. Unknown base roles yield an empty map.
func BaseRoleDefaults(base BaseRole) map[ResourceType]map[Permission]bool {
	src := baseRoleDefaults[base]
	out := make(map[ResourceType]map[Permission]bool, len(src))
	for resource, perms := range src {
		m := make(map[Permission]bool, len(perms))
		for p, granted := range perms {
			m[p] = granted
		}
		out[resource] = m
	}
	return out
}

// reservedRoleNames cannot be used for custom roles. The set covers the
// system role names plus names users commonly expect to mean something.
var reservedRoleNames = map[string]struct{}{
	"owner": {}, "admin": {}, "administrator": {}, "developer": {},
	"viewer": {}, "member": {}, "guest": {}, "system": {}, "root": {},
	"everyone": {}, "anyone": {}, "none": {},
}

// ReservedRoleName reports whether name is reserved.
func ReservedRoleName(name string) bool {
	_, ok := reservedRoleNames[name]
	return ok
}
