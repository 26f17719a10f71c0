// Package templates holds the fixed role archetype catalog and the service
// that stamps workspace roles out of it. Templates are static: they live in
// code, not the database, and a created role records only its diff against
// the template's base-role defaults.
package templates

import (
	"github.com/platinummonkey/gatehouse/pkg/catalog"
	"github.com/platinummonkey/gatehouse/pkg/gherr"
)

// Template is one role archetype. Permissions lists only the pairs the
// template cares about; anything absent inherits the base role's default.
type Template struct {
	ID          string                                               `json:"id"`
	DisplayName string                                               `json:"display_name"`
	Description string                                               `json:"description"`
	Color       string                                               `json:"color"`
	BaseRole    catalog.BaseRole                                     `json:"base_role"`
	Permissions map[catalog.ResourceType]map[catalog.Permission]bool `json:"permissions"`
}

var registry = []Template{
	{
		ID:          "qa-lead",
		DisplayName: "QA Lead",
		Description: "Developer access plus story approval and deployment rollback",
		Color:       "#D97706",
		BaseRole:    catalog.BaseRoleDeveloper,
		Permissions: map[catalog.ResourceType]map[catalog.Permission]bool{
			catalog.ResourceStories:     {catalog.PermApprove: true},
			catalog.ResourceDeployments: {catalog.PermRollback: true},
		},
	},
	{
		ID:          "release-manager",
		DisplayName: "Release Manager",
		Description: "Developer access plus full deployment lifecycle control",
		Color:       "#DC2626",
		BaseRole:    catalog.BaseRoleDeveloper,
		Permissions: map[catalog.ResourceType]map[catalog.Permission]bool{
			catalog.ResourceDeployments: {
				catalog.PermPromote:  true,
				catalog.PermRollback: true,
				catalog.PermDelete:   true,
			},
			catalog.ResourceStories: {catalog.PermApprove: true},
		},
	},
	{
		ID:          "finance-auditor",
		DisplayName: "Finance Auditor",
		Description: "Read-only access plus cost visibility and export",
		Color:       "#0D9488",
		BaseRole:    catalog.BaseRoleViewer,
		Permissions: map[catalog.ResourceType]map[catalog.Permission]bool{
			catalog.ResourceCostManagement: {
				catalog.PermView:   true,
				catalog.PermExport: true,
			},
		},
	},
	{
		ID:          "support-agent",
		DisplayName: "Support Agent",
		Description: "Read-only access plus story intake and editing",
		Color:       "#2563EB",
		BaseRole:    catalog.BaseRoleViewer,
		Permissions: map[catalog.ResourceType]map[catalog.Permission]bool{
			catalog.ResourceStories: {
				catalog.PermCreate: true,
				catalog.PermEdit:   true,
				catalog.PermAssign: true,
			},
		},
	},
	{
		ID:          "integration-admin",
		DisplayName: "Integration Admin",
		Description: "Developer access plus integration management and secret editing",
		Color:       "#7C3AED",
		BaseRole:    catalog.BaseRoleDeveloper,
		Permissions: map[catalog.ResourceType]map[catalog.Permission]bool{
			catalog.ResourceIntegrations: {
				catalog.PermConnect:    true,
				catalog.PermConfigure:  true,
				catalog.PermDisconnect: true,
			},
			catalog.ResourceSecrets: {
				catalog.PermCreate: true,
				catalog.PermEdit:   true,
			},
		},
	},
}

// List returns every template in catalog order as deep copies.
func List() []Template {
	out := make([]Template, len(registry))
	for i, t := range registry {
		out[i] = copyTemplate(t)
	}
	return out
}

// Get returns one template by id.
func Get(id string) (*Template, error) {
	for _, t := range registry {
		if t.ID == id {
			c := copyTemplate(t)
			return &c, nil
		}
	}
	return nil, gherr.NotFound("role template %q not found", id)
}

// Diff returns the pairs where the template's intended value differs from
// its base role's default. This is exactly the override set a fresh
// template role persists.
func Diff(t *Template) map[catalog.ResourceType]map[catalog.Permission]bool {
	return diffAgainstBase(t.BaseRole, t.Permissions)
}

// diffAgainstBase compares an intended permission map against a base role's
// defaults. An undefined default counts as denied.
func diffAgainstBase(base catalog.BaseRole, intended map[catalog.ResourceType]map[catalog.Permission]bool) map[catalog.ResourceType]map[catalog.Permission]bool {
	out := make(map[catalog.ResourceType]map[catalog.Permission]bool)
	for resource, perms := range intended {
		for p, want := range perms {
			granted, defined := catalog.BaseRoleDefault(base, resource, p)
			inherited := granted && defined
			if want == inherited {
				continue
			}
			if out[resource] == nil {
				out[resource] = make(map[catalog.Permission]bool)
			}
			out[resource][p] = want
		}
	}
	return out
}

func copyTemplate(t Template) Template {
	perms := make(map[catalog.ResourceType]map[catalog.Permission]bool, len(t.Permissions))
	for resource, m := range t.Permissions {
		row := make(map[catalog.Permission]bool, len(m))
		for p, granted := range m {
			row[p] = granted
		}
		perms[resource] = row
	}
	t.Permissions = perms
	return t
}
