package templates

import (
	"context"
	"fmt"

	"github.com/platinummonkey/gatehouse/pkg/audit"
	"github.com/platinummonkey/gatehouse/pkg/catalog"
	"github.com/platinummonkey/gatehouse/pkg/gherr"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/roles"
)

// CreateFromTemplateRequest carries the caller's customizations. Zero-value
// fields fall back to the template; Permissions entries are merged over the
// template's intended map before the diff is computed.
type CreateFromTemplateRequest struct {
	TemplateID  string                                               `json:"template_id"`
	Name        string                                               `json:"name"`
	DisplayName string                                               `json:"display_name"`
	Description string                                               `json:"description"`
	Color       string                                               `json:"color"`
	Permissions map[catalog.ResourceType]map[catalog.Permission]bool `json:"permissions"`
	CreatedBy   string                                               `json:"created_by"`
}

// Service creates and resets roles from the template catalog.
type Service struct {
	roles     *roles.Service
	permAudit audit.PermissionRecorder
	cache     roles.CacheInvalidator
	log       *observability.Logger
}

// NewService creates a template service. permAudit, cache, and log may be
// nil.
func NewService(roleSvc *roles.Service, permAudit audit.PermissionRecorder, cache roles.CacheInvalidator, log *observability.Logger) *Service {
	if permAudit == nil {
		permAudit = audit.NopLogger{}
	}
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{roles: roleSvc, permAudit: permAudit, cache: cache, log: log}
}

// CreateRole stamps a new role out of a template. The role name defaults to
// the template id and gets a numeric suffix when taken; the stored override
// rows are only the pairs where the merged intent differs from the base
// role's defaults.
func (s *Service) CreateRole(ctx context.Context, workspaceID string, req CreateFromTemplateRequest) (*roles.Role, error) {
	tmpl, err := Get(req.TemplateID)
	if err != nil {
		return nil, err
	}

	intended, err := mergePermissions(tmpl.Permissions, req.Permissions)
	if err != nil {
		return nil, err
	}

	baseName := req.Name
	if baseName == "" {
		baseName = tmpl.ID
	}
	if err := roles.ValidateRoleName(baseName); err != nil {
		return nil, err
	}
	name, err := s.resolveName(ctx, workspaceID, baseName)
	if err != nil {
		return nil, err
	}

	base := tmpl.BaseRole
	role, err := s.roles.CreateRole(ctx, workspaceID, roles.CreateRoleRequest{
		Name:        name,
		DisplayName: firstNonEmpty(req.DisplayName, tmpl.DisplayName),
		Description: firstNonEmpty(req.Description, tmpl.Description),
		Color:       firstNonEmpty(req.Color, tmpl.Color),
		BaseRole:    &base,
		TemplateID:  &tmpl.ID,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		return nil, err
	}

	diff := diffAgainstBase(tmpl.BaseRole, intended)
	overrides := diffOverrides(role.ID, diff)
	if len(overrides) > 0 {
		if err := s.roles.Store().UpsertOverridesBulk(ctx, overrides); err != nil {
			return nil, fmt.Errorf("failed to apply template permissions to role %s: %w", role.ID, err)
		}
	}

	s.recordEvent(&audit.PermissionEvent{
		WorkspaceID:  workspaceID,
		EventType:    audit.EventTemplateApplied,
		ActorID:      req.CreatedBy,
		TargetRoleID: role.ID,
		AfterState: map[string]interface{}{
			"template_id": tmpl.ID,
			"name":        role.Name,
			"overrides":   len(overrides),
		},
	})

	return role, nil
}

// ResetRole restores a template-created role to its template's permission
// state: the override set is atomically replaced with the template diff and
// the base role is restored. Roles not created from a template are rejected.
func (s *Service) ResetRole(ctx context.Context, workspaceID, roleID, actorID string) (*roles.Role, error) {
	role, err := s.roles.GetRole(ctx, workspaceID, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, gherr.Forbidden("system role %q cannot be reset", roleID)
	}
	if role.TemplateID == nil {
		return nil, gherr.BadRequest("role %q was not created from a template", role.Name)
	}

	tmpl, err := Get(*role.TemplateID)
	if err != nil {
		return nil, err
	}

	if baseRoleOf(role) != tmpl.BaseRole {
		base := tmpl.BaseRole
		role.BaseRole = &base
		if err := s.roles.Store().UpdateRole(ctx, role); err != nil {
			return nil, err
		}
	}

	overrides := diffOverrides(role.ID, Diff(tmpl))
	if err := s.roles.Store().ReplaceOverrides(ctx, role.ID, overrides); err != nil {
		return nil, err
	}

	s.recordEvent(&audit.PermissionEvent{
		WorkspaceID:  workspaceID,
		EventType:    audit.EventTemplateReset,
		ActorID:      actorID,
		TargetRoleID: role.ID,
		AfterState: map[string]interface{}{
			"template_id": tmpl.ID,
			"overrides":   len(overrides),
		},
	})

	// Synchronous: the role's effective permissions just changed wholesale.
	if s.cache != nil {
		if err := s.cache.InvalidateWorkspacePermissions(ctx, workspaceID); err != nil {
			s.log.WithWorkspace(workspaceID).WithError(err).Warn("workspace cache invalidation failed")
		}
	}

	return role, nil
}

// resolveName returns baseName, or the first free "<baseName>-N" starting at
// N=2. One name listing serves the whole search; a concurrent create racing
// for the same name surfaces as a Conflict from the insert's unique index.
func (s *Service) resolveName(ctx context.Context, workspaceID, baseName string) (string, error) {
	existing, err := s.roles.Store().ListRoleNames(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	taken := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		taken[n] = struct{}{}
	}

	if _, ok := taken[baseName]; !ok {
		return baseName, nil
	}
	for n := 2; n <= roles.MaxCustomRolesPerWorkspace+1; n++ {
		candidate := fmt.Sprintf("%s-%d", baseName, n)
		if _, ok := taken[candidate]; !ok {
			return candidate, nil
		}
	}
	return "", gherr.Conflict("no free name variant for %q", baseName)
}

func (s *Service) recordEvent(event *audit.PermissionEvent) {
	recorder := s.permAudit
	audit.Dispatch(s.log, "permission-audit", func(ctx context.Context) error {
		return recorder.Record(ctx, event)
	})
}

// mergePermissions overlays caller customizations on the template's
// intended map, validating every customized pair against the catalog.
func mergePermissions(tmpl, custom map[catalog.ResourceType]map[catalog.Permission]bool) (map[catalog.ResourceType]map[catalog.Permission]bool, error) {
	merged := make(map[catalog.ResourceType]map[catalog.Permission]bool, len(tmpl))
	for resource, perms := range tmpl {
		row := make(map[catalog.Permission]bool, len(perms))
		for p, granted := range perms {
			row[p] = granted
		}
		merged[resource] = row
	}
	for resource, perms := range custom {
		for p, granted := range perms {
			if !catalog.ValidPermission(resource, p) {
				return nil, gherr.BadRequest("unknown permission %s:%s", resource, p)
			}
			if merged[resource] == nil {
				merged[resource] = make(map[catalog.Permission]bool)
			}
			merged[resource][p] = granted
		}
	}
	return merged, nil
}

func diffOverrides(roleID string, diff map[catalog.ResourceType]map[catalog.Permission]bool) []roles.PermissionOverride {
	var out []roles.PermissionOverride
	for _, resource := range catalog.ResourceTypes() {
		for _, p := range catalog.Permissions(resource) {
			if granted, ok := diff[resource][p]; ok {
				out = append(out, roles.PermissionOverride{
					RoleID:       roleID,
					ResourceType: resource,
					Permission:   p,
					Granted:      granted,
				})
			}
		}
	}
	return out
}

func baseRoleOf(role *roles.Role) catalog.BaseRole {
	if role.BaseRole == nil {
		return catalog.BaseRoleNone
	}
	return *role.BaseRole
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
