package roles

import (
	"context"

	"github.com/platinummonkey/gatehouse/pkg/audit"
	"github.com/platinummonkey/gatehouse/pkg/catalog"
	"github.com/platinummonkey/gatehouse/pkg/gherr"
	"github.com/platinummonkey/gatehouse/pkg/membership"
	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// CacheInvalidator is the slice of the permission cache the role service
// needs. Invalidation failures are logged and swallowed by the caller.
type CacheInvalidator interface {
	InvalidateWorkspacePermissions(ctx context.Context, workspaceID string) error
	InvalidateUserPermissions(ctx context.Context, userID string) error
}

type nopInvalidator struct{}

func (nopInvalidator) InvalidateWorkspacePermissions(ctx context.Context, workspaceID string) error {
	return nil
}
func (nopInvalidator) InvalidateUserPermissions(ctx context.Context, userID string) error {
	return nil
}

// Service layers naming rules, limits, audit, and cache invalidation on top
// of the role store.
type Service struct {
	store    *Store
	members  membership.Reader
	auditLog audit.Logger
	cache    CacheInvalidator
	log      *observability.Logger
}

// NewService creates a role service. auditLog and cache may be nil.
func NewService(store *Store, members membership.Reader, auditLog audit.Logger, cache CacheInvalidator, log *observability.Logger) *Service {
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	if cache == nil {
		cache = nopInvalidator{}
	}
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{store: store, members: members, auditLog: auditLog, cache: cache, log: log}
}

// Store exposes the underlying store for collaborating services.
func (s *Service) Store() *Store { return s.store }

// ListRoles returns the four system roles followed by the workspace's custom
// roles in priority order, each with a live member count.
func (s *Service) ListRoles(ctx context.Context, workspaceID string) ([]Role, error) {
	out := make([]Role, 0, 4+MaxCustomRolesPerWorkspace)

	for _, def := range catalog.SystemRoles() {
		role := synthesizeSystemRole(workspaceID, def)
		count, err := s.members.CountSystemRoleMembers(ctx, workspaceID, def.Name)
		if err != nil {
			return nil, err
		}
		role.MemberCount = count
		out = append(out, role)
	}

	custom, err := s.store.ListRoles(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	for i := range custom {
		count, err := s.members.CountRoleMembers(ctx, custom[i].ID)
		if err != nil {
			return nil, err
		}
		custom[i].MemberCount = count
		out = append(out, custom[i])
	}

	return out, nil
}

// GetRole returns one role with its live member count. System role names
// resolve to their synthetic definitions.
func (s *Service) GetRole(ctx context.Context, workspaceID, roleID string) (*Role, error) {
	if IsSystemRoleName(roleID) {
		for _, def := range catalog.SystemRoles() {
			if string(def.Name) != roleID {
				continue
			}
			role := synthesizeSystemRole(workspaceID, def)
			count, err := s.members.CountSystemRoleMembers(ctx, workspaceID, def.Name)
			if err != nil {
				return nil, err
			}
			role.MemberCount = count
			return &role, nil
		}
	}

	role, err := s.store.GetRole(ctx, workspaceID, roleID)
	if err != nil {
		return nil, err
	}
	count, err := s.members.CountRoleMembers(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	role.MemberCount = count
	return role, nil
}

// CreateRole validates the name and base role, then inserts under the
// atomic count check. Cache invalidation runs off the response path; a new
// role has no members yet, so stale entries only matter until the TTL.
func (s *Service) CreateRole(ctx context.Context, workspaceID string, req CreateRoleRequest) (*Role, error) {
	if err := ValidateRoleName(req.Name); err != nil {
		return nil, err
	}
	if req.BaseRole != nil && !catalog.ValidBaseRole(*req.BaseRole) {
		return nil, gherr.BadRequest("unknown base role %q", *req.BaseRole)
	}

	role := &Role{
		WorkspaceID: workspaceID,
		Name:        req.Name,
		DisplayName: displayNameOr(req.DisplayName, req.Name),
		Description: req.Description,
		Color:       req.Color,
		BaseRole:    req.BaseRole,
		TemplateID:  req.TemplateID,
		CreatedBy:   req.CreatedBy,
	}
	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}

	s.dispatchAudit(&audit.Entry{
		WorkspaceID: workspaceID,
		ActorID:     req.CreatedBy,
		Action:      audit.ActionRoleCreate,
		EntityType:  "role",
		EntityID:    role.ID,
		Details:     map[string]interface{}{"name": role.Name, "base_role": baseRoleString(role.BaseRole)},
	})
	s.dispatchInvalidation(workspaceID)

	return role, nil
}

// UpdateRole applies partial updates to a custom role. A base-role change
// invalidates the workspace cache before returning, since every
// override-free permission's inherited value changes with it.
func (s *Service) UpdateRole(ctx context.Context, workspaceID, roleID, actorID string, req UpdateRoleRequest) (*Role, error) {
	if IsSystemRoleName(roleID) {
		return nil, gherr.Forbidden("system role %q cannot be modified", roleID)
	}

	role, err := s.store.GetRole(ctx, workspaceID, roleID)
	if err != nil {
		return nil, err
	}

	before := roleSnapshot(role)
	baseChanged := false

	if req.Name != nil && *req.Name != role.Name {
		if err := ValidateRoleName(*req.Name); err != nil {
			return nil, err
		}
		taken, err := s.store.RoleNameExists(ctx, workspaceID, *req.Name, role.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, gherr.Conflict("role name %q already exists in workspace", *req.Name)
		}
		role.Name = *req.Name
	}
	if req.DisplayName != nil {
		role.DisplayName = *req.DisplayName
	}
	if req.Description != nil {
		role.Description = *req.Description
	}
	if req.Color != nil {
		role.Color = *req.Color
	}
	if req.IsActive != nil {
		role.IsActive = *req.IsActive
	}
	if req.BaseRole != nil {
		if !catalog.ValidBaseRole(*req.BaseRole) {
			return nil, gherr.BadRequest("unknown base role %q", *req.BaseRole)
		}
		if baseRoleString(role.BaseRole) != string(*req.BaseRole) {
			baseChanged = true
		}
		if *req.BaseRole == catalog.BaseRoleNone {
			role.BaseRole = nil
		} else {
			b := *req.BaseRole
			role.BaseRole = &b
		}
	}

	if err := s.store.UpdateRole(ctx, role); err != nil {
		return nil, err
	}

	s.dispatchAudit(&audit.Entry{
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		Action:      audit.ActionRoleUpdate,
		EntityType:  "role",
		EntityID:    role.ID,
		Details:     map[string]interface{}{"before": before, "after": roleSnapshot(role)},
	})

	if baseChanged {
		// Synchronous: a stale inherited answer would otherwise live on
		// until the cache TTL expires.
		if err := s.cache.InvalidateWorkspacePermissions(ctx, workspaceID); err != nil {
			s.log.WithWorkspace(workspaceID).WithError(err).Warn("workspace cache invalidation failed")
		}
	}

	return role, nil
}

// DeleteRole removes a role with no members. System roles and roles still
// referenced by members are rejected.
func (s *Service) DeleteRole(ctx context.Context, workspaceID, roleID, actorID string) error {
	if IsSystemRoleName(roleID) {
		return gherr.Forbidden("system role %q cannot be deleted", roleID)
	}

	role, err := s.store.GetRole(ctx, workspaceID, roleID)
	if err != nil {
		return err
	}

	count, err := s.members.CountRoleMembers(ctx, roleID)
	if err != nil {
		return err
	}
	if count > 0 {
		return gherr.BadRequest("role %q still has %d member(s); reassign them first", role.Name, count)
	}

	if err := s.store.DeleteRole(ctx, workspaceID, roleID); err != nil {
		return err
	}

	s.dispatchAudit(&audit.Entry{
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		Action:      audit.ActionRoleDelete,
		EntityType:  "role",
		EntityID:    roleID,
		Details:     map[string]interface{}{"name": role.Name},
	})
	s.dispatchInvalidation(workspaceID)

	return nil
}

// CloneRole copies a role's display fields, base role, and every override
// row into a new role, under the same atomic count check as CreateRole.
func (s *Service) CloneRole(ctx context.Context, workspaceID, sourceRoleID, actorID, newName string) (*Role, error) {
	if IsSystemRoleName(sourceRoleID) {
		return nil, gherr.Forbidden("system role %q cannot be cloned", sourceRoleID)
	}
	if err := ValidateRoleName(newName); err != nil {
		return nil, err
	}

	source, err := s.store.GetRole(ctx, workspaceID, sourceRoleID)
	if err != nil {
		return nil, err
	}

	clone := &Role{
		WorkspaceID: workspaceID,
		Name:        newName,
		DisplayName: source.DisplayName,
		Description: source.Description,
		Color:       source.Color,
		BaseRole:    source.BaseRole,
		CreatedBy:   actorID,
	}
	if err := s.store.CloneRole(ctx, sourceRoleID, clone); err != nil {
		return nil, err
	}

	s.dispatchAudit(&audit.Entry{
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		Action:      audit.ActionRoleClone,
		EntityType:  "role",
		EntityID:    clone.ID,
		Details:     map[string]interface{}{"source_role_id": sourceRoleID, "name": clone.Name},
	})

	return clone, nil
}

// ReorderRoles sets each role's priority to its position in roleIDs.
// Duplicate ids or ids outside the workspace reject the whole request.
func (s *Service) ReorderRoles(ctx context.Context, workspaceID, actorID string, roleIDs []string) error {
	if len(roleIDs) == 0 {
		return gherr.BadRequest("reorder requires at least one role id")
	}
	seen := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		if IsSystemRoleName(id) {
			return gherr.Forbidden("system role %q cannot be reordered", id)
		}
		if _, dup := seen[id]; dup {
			return gherr.BadRequest("duplicate role id %s in reorder input", id)
		}
		seen[id] = struct{}{}
	}

	if err := s.store.ReorderRoles(ctx, workspaceID, roleIDs); err != nil {
		return err
	}

	s.dispatchAudit(&audit.Entry{
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		Action:      audit.ActionRoleReorder,
		EntityType:  "role",
		EntityID:    workspaceID,
		Details:     map[string]interface{}{"order": roleIDs},
	})

	return nil
}

// ListRoleMembers returns the members referencing a custom role.
func (s *Service) ListRoleMembers(ctx context.Context, workspaceID, roleID string) ([]membership.Member, error) {
	if IsSystemRoleName(roleID) {
		return nil, gherr.BadRequest("member listing for system roles is served by the membership service")
	}
	if _, err := s.store.GetRole(ctx, workspaceID, roleID); err != nil {
		return nil, err
	}
	return s.members.ListRoleMembers(ctx, workspaceID, roleID)
}

func (s *Service) dispatchAudit(entry *audit.Entry) {
	logger := s.auditLog
	audit.Dispatch(s.log, "audit", func(ctx context.Context) error {
		return logger.Log(ctx, entry)
	})
}

func (s *Service) dispatchInvalidation(workspaceID string) {
	cache := s.cache
	audit.Dispatch(s.log, "cache", func(ctx context.Context) error {
		return cache.InvalidateWorkspacePermissions(ctx, workspaceID)
	})
}

func synthesizeSystemRole(workspaceID string, def catalog.SystemRoleDefinition) Role {
	base := def.Name
	return Role{
		ID:          string(def.Name),
		WorkspaceID: workspaceID,
		Name:        string(def.Name),
		DisplayName: def.DisplayName,
		Description: def.Description,
		Color:       def.Color,
		BaseRole:    &base,
		IsSystem:    true,
		IsActive:    true,
		Priority:    def.Priority,
	}
}

func roleSnapshot(role *Role) map[string]interface{} {
	return map[string]interface{}{
		"name":         role.Name,
		"display_name": role.DisplayName,
		"description":  role.Description,
		"color":        role.Color,
		"base_role":    baseRoleString(role.BaseRole),
		"is_active":    role.IsActive,
	}
}

func baseRoleString(b *catalog.BaseRole) string {
	if b == nil {
		return string(catalog.BaseRoleNone)
	}
	return string(*b)
}

func displayNameOr(displayName, fallback string) string {
	if displayName != "" {
		return displayName
	}
	return fallback
}
