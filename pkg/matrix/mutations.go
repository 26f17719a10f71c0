package matrix

import (
	"context"

	"github.com/platinummonkey/gatehouse/pkg/audit"
	"github.com/platinummonkey/gatehouse/pkg/catalog"
	"github.com/platinummonkey/gatehouse/pkg/gherr"
	"github.com/platinummonkey/gatehouse/pkg/roles"
)

// SetPermission upserts one explicit override and returns the before/after
// state.
func (e *Engine) SetPermission(ctx context.Context, workspaceID, roleID, actorID string, resource catalog.ResourceType, permission catalog.Permission, granted bool) (*ChangeResult, error) {
	if !catalog.ValidPermission(resource, permission) {
		return nil, gherr.BadRequest("unknown permission %s:%s", resource, permission)
	}

	role, err := e.mutableRole(ctx, workspaceID, roleID)
	if err != nil {
		return nil, err
	}

	before, err := e.resolvePair(ctx, role, resource, permission)
	if err != nil {
		return nil, err
	}

	ov := &roles.PermissionOverride{
		RoleID:       role.ID,
		ResourceType: resource,
		Permission:   permission,
		Granted:      granted,
	}
	if err := e.store.UpsertOverride(ctx, ov); err != nil {
		return nil, err
	}

	result := &ChangeResult{
		ResourceType: resource,
		Permission:   permission,
		Before:       before,
		After:        PermissionState{Granted: granted, Inherited: false},
	}

	e.metrics.MutationsTotal.WithLabelValues("set").Inc()
	e.recordPermissionEvent(&audit.PermissionEvent{
		WorkspaceID:  workspaceID,
		EventType:    audit.EventPermissionSet,
		ActorID:      actorID,
		TargetRoleID: role.ID,
		BeforeState:  stateDetails(resource, permission, before),
		AfterState:   stateDetails(resource, permission, result.After),
	})
	e.invalidateWorkspace(workspaceID)

	return result, nil
}

// SetBulkPermissions upserts every update in one transaction, all-or-nothing.
// Empty input is rejected.
func (e *Engine) SetBulkPermissions(ctx context.Context, workspaceID, roleID, actorID string, updates []PermissionUpdate) error {
	if len(updates) == 0 {
		return gherr.BadRequest("bulk permission update requires at least one entry")
	}
	for _, u := range updates {
		if !catalog.ValidPermission(u.ResourceType, u.Permission) {
			return gherr.BadRequest("unknown permission %s:%s", u.ResourceType, u.Permission)
		}
	}

	role, err := e.mutableRole(ctx, workspaceID, roleID)
	if err != nil {
		return err
	}

	overrides := make([]roles.PermissionOverride, 0, len(updates))
	for _, u := range updates {
		overrides = append(overrides, roles.PermissionOverride{
			RoleID:       role.ID,
			ResourceType: u.ResourceType,
			Permission:   u.Permission,
			Granted:      u.Granted,
		})
	}
	if err := e.store.UpsertOverridesBulk(ctx, overrides); err != nil {
		return err
	}

	e.metrics.MutationsTotal.WithLabelValues("bulk_set").Inc()
	e.recordPermissionEvent(&audit.PermissionEvent{
		WorkspaceID:  workspaceID,
		EventType:    audit.EventPermissionBulkSet,
		ActorID:      actorID,
		TargetRoleID: role.ID,
		AfterState:   map[string]interface{}{"updates": len(updates)},
	})
	e.invalidateWorkspace(workspaceID)

	return nil
}

// BulkResourceAction sets every permission under one resource type to
// granted (allow_all) or denied (deny_all). Existing rows are batch-loaded
// once; the write is one transaction. Applying the same action twice yields
// the same final state.
func (e *Engine) BulkResourceAction(ctx context.Context, workspaceID, roleID, actorID string, resource catalog.ResourceType, action BulkAction) error {
	if !catalog.ValidResource(resource) {
		return gherr.BadRequest("unknown resource type %q", resource)
	}
	if action != BulkAllowAll && action != BulkDenyAll {
		return gherr.BadRequest("unknown bulk action %q", action)
	}

	role, err := e.mutableRole(ctx, workspaceID, roleID)
	if err != nil {
		return err
	}

	// One batch load instead of a lookup per permission.
	existing, err := e.store.ListOverridesForResource(ctx, role.ID, resource)
	if err != nil {
		return err
	}
	existingState := make(map[catalog.Permission]bool, len(existing))
	for _, ov := range existing {
		existingState[ov.Permission] = ov.Granted
	}

	granted := action == BulkAllowAll
	overrides := make([]roles.PermissionOverride, 0, len(catalog.Permissions(resource)))
	for _, p := range catalog.Permissions(resource) {
		overrides = append(overrides, roles.PermissionOverride{
			RoleID:       role.ID,
			ResourceType: resource,
			Permission:   p,
			Granted:      granted,
		})
	}
	if err := e.store.UpsertOverridesBulk(ctx, overrides); err != nil {
		return err
	}

	e.metrics.MutationsTotal.WithLabelValues("resource_action").Inc()
	e.recordPermissionEvent(&audit.PermissionEvent{
		WorkspaceID:  workspaceID,
		EventType:    audit.EventPermissionBulkFlip,
		ActorID:      actorID,
		TargetRoleID: role.ID,
		BeforeState:  map[string]interface{}{"resource_type": string(resource), "explicit": existingState},
		AfterState:   map[string]interface{}{"resource_type": string(resource), "action": string(action)},
	})
	e.invalidateWorkspace(workspaceID)

	return nil
}

// ResetPermissions deletes explicit overrides, optionally scoped to one
// resource type, restoring base-role inheritance. Returns the number of
// overrides removed.
func (e *Engine) ResetPermissions(ctx context.Context, workspaceID, roleID, actorID string, resource *catalog.ResourceType) (int64, error) {
	if resource != nil && !catalog.ValidResource(*resource) {
		return 0, gherr.BadRequest("unknown resource type %q", *resource)
	}

	role, err := e.mutableRole(ctx, workspaceID, roleID)
	if err != nil {
		return 0, err
	}

	removed, err := e.store.DeleteOverrides(ctx, role.ID, resource)
	if err != nil {
		return 0, err
	}

	scope := "all"
	if resource != nil {
		scope = string(*resource)
	}
	e.metrics.MutationsTotal.WithLabelValues("reset").Inc()
	e.recordPermissionEvent(&audit.PermissionEvent{
		WorkspaceID:  workspaceID,
		EventType:    audit.EventPermissionReset,
		ActorID:      actorID,
		TargetRoleID: role.ID,
		BeforeState:  map[string]interface{}{"scope": scope, "overrides_removed": removed},
	})
	e.invalidateWorkspace(workspaceID)

	return removed, nil
}

func stateDetails(resource catalog.ResourceType, permission catalog.Permission, state PermissionState) map[string]interface{} {
	return map[string]interface{}{
		"resource_type": string(resource),
		"permission":    string(permission),
		"granted":       state.Granted,
		"inherited":     state.Inherited,
	}
}
