package matrix

import (
	"context"
	"time"

	"github.com/platinummonkey/gatehouse/pkg/audit"
	"github.com/platinummonkey/gatehouse/pkg/catalog"
	"github.com/platinummonkey/gatehouse/pkg/gherr"
	"github.com/platinummonkey/gatehouse/pkg/membership"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/roles"
)

// Engine resolves effective permissions and owns the override mutation
// operations.
type Engine struct {
	store     *roles.Store
	members   membership.Reader
	permAudit audit.PermissionRecorder
	cache     roles.CacheInvalidator
	metrics   *observability.Metrics
	log       *observability.Logger
}

// NewEngine creates a matrix engine. permAudit, cache, metrics, and log may
// be nil.
func NewEngine(store *roles.Store, members membership.Reader, permAudit audit.PermissionRecorder, cache roles.CacheInvalidator, metrics *observability.Metrics, log *observability.Logger) *Engine {
	if permAudit == nil {
		permAudit = audit.NopLogger{}
	}
	if cache == nil {
		cache = nopInvalidator{}
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Engine{store: store, members: members, permAudit: permAudit, cache: cache, metrics: metrics, log: log}
}

// SetCacheInvalidator wires the permission cache in after construction. The
// cache fronts the engine for reads, so the two reference each other and one
// side has to be bound late.
func (e *Engine) SetCacheInvalidator(cache roles.CacheInvalidator) {
	if cache != nil {
		e.cache = cache
	}
}

type nopInvalidator struct{}

func (nopInvalidator) InvalidateWorkspacePermissions(ctx context.Context, workspaceID string) error {
	return nil
}
func (nopInvalidator) InvalidateUserPermissions(ctx context.Context, userID string) error {
	return nil
}

// CheckPermission answers one (user, workspace, resource, action) question.
// Unknown catalog pairs resolve to deny rather than an error; a missing
// membership is a NotFound error.
func (e *Engine) CheckPermission(ctx context.Context, userID, workspaceID string, resource catalog.ResourceType, permission catalog.Permission) (bool, error) {
	start := time.Now()

	member, err := e.members.GetMember(ctx, workspaceID, userID)
	if err != nil {
		e.metrics.CheckErrorsTotal.Inc()
		return false, err
	}

	granted, err := e.resolveMember(ctx, member, resource, permission)
	if err != nil {
		e.metrics.CheckErrorsTotal.Inc()
		return false, err
	}

	result := "denied"
	if granted {
		result = "granted"
	}
	e.metrics.ChecksTotal.WithLabelValues(result, "engine").Inc()
	e.metrics.CheckDuration.WithLabelValues("engine").Observe(time.Since(start).Seconds())

	return granted, nil
}

func (e *Engine) resolveMember(ctx context.Context, member *membership.Member, resource catalog.ResourceType, permission catalog.Permission) (bool, error) {
	// Owner membership grants everything, no lookups.
	if member.SystemRole == catalog.BaseRoleOwner {
		return true, nil
	}

	if member.CustomRoleID == nil {
		granted, defined := catalog.BaseRoleDefault(member.SystemRole, resource, permission)
		return granted && defined, nil
	}

	role, err := e.store.GetRole(ctx, member.WorkspaceID, *member.CustomRoleID)
	if err != nil {
		return false, err
	}
	if !role.IsActive {
		return false, nil
	}

	override, err := e.store.GetOverride(ctx, role.ID, resource, permission)
	if err != nil {
		return false, err
	}
	if override != nil {
		return override.Granted, nil
	}

	if role.BaseRole != nil {
		granted, defined := catalog.BaseRoleDefault(*role.BaseRole, resource, permission)
		return granted && defined, nil
	}
	return false, nil
}

// RoleMatrix resolves the full permission matrix for a role. System role
// names resolve from the defaults table alone.
func (e *Engine) RoleMatrix(ctx context.Context, workspaceID, roleID string) (Matrix, error) {
	if roles.IsSystemRoleName(roleID) {
		return baseRoleMatrix(catalog.BaseRole(roleID)), nil
	}

	role, err := e.store.GetRole(ctx, workspaceID, roleID)
	if err != nil {
		return nil, err
	}
	overrides, err := e.store.ListOverrides(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	return resolveMatrix(role.BaseRole, overrides), nil
}

// EffectivePermissions resolves the full matrix for a workspace member.
func (e *Engine) EffectivePermissions(ctx context.Context, workspaceID, userID string) (Matrix, error) {
	member, err := e.members.GetMember(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}

	if member.SystemRole == catalog.BaseRoleOwner {
		return fullGrantMatrix(), nil
	}
	if member.CustomRoleID == nil {
		return baseRoleMatrix(member.SystemRole), nil
	}

	role, err := e.store.GetRole(ctx, workspaceID, *member.CustomRoleID)
	if err != nil {
		return nil, err
	}
	if !role.IsActive {
		return denyAllMatrix(), nil
	}
	overrides, err := e.store.ListOverrides(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	return resolveMatrix(role.BaseRole, overrides), nil
}

// resolveMatrix layers explicit overrides on top of base-role defaults for
// every catalog pair.
func resolveMatrix(base *catalog.BaseRole, overrides []roles.PermissionOverride) Matrix {
	explicit := make(map[catalog.ResourceType]map[catalog.Permission]bool, len(overrides))
	for _, ov := range overrides {
		if explicit[ov.ResourceType] == nil {
			explicit[ov.ResourceType] = make(map[catalog.Permission]bool)
		}
		explicit[ov.ResourceType][ov.Permission] = ov.Granted
	}

	m := make(Matrix)
	for _, resource := range catalog.ResourceTypes() {
		row := make(map[catalog.Permission]PermissionState)
		for _, p := range catalog.Permissions(resource) {
			if granted, ok := explicit[resource][p]; ok {
				row[p] = PermissionState{Granted: granted, Inherited: false}
				continue
			}
			if base != nil {
				if granted, defined := catalog.BaseRoleDefault(*base, resource, p); defined {
					row[p] = PermissionState{Granted: granted, Inherited: true}
					continue
				}
			}
			row[p] = PermissionState{Granted: false, Inherited: false}
		}
		m[resource] = row
	}
	return m
}

func baseRoleMatrix(base catalog.BaseRole) Matrix {
	m := make(Matrix)
	for _, resource := range catalog.ResourceTypes() {
		row := make(map[catalog.Permission]PermissionState)
		for _, p := range catalog.Permissions(resource) {
			granted, defined := catalog.BaseRoleDefault(base, resource, p)
			row[p] = PermissionState{Granted: granted && defined, Inherited: defined}
		}
		m[resource] = row
	}
	return m
}

func fullGrantMatrix() Matrix {
	m := make(Matrix)
	for _, resource := range catalog.ResourceTypes() {
		row := make(map[catalog.Permission]PermissionState)
		for _, p := range catalog.Permissions(resource) {
			row[p] = PermissionState{Granted: true, Inherited: true}
		}
		m[resource] = row
	}
	return m
}

func denyAllMatrix() Matrix {
	m := make(Matrix)
	for _, resource := range catalog.ResourceTypes() {
		row := make(map[catalog.Permission]PermissionState)
		for _, p := range catalog.Permissions(resource) {
			row[p] = PermissionState{}
		}
		m[resource] = row
	}
	return m
}

// mutableRole loads a custom role for mutation, rejecting system roles.
func (e *Engine) mutableRole(ctx context.Context, workspaceID, roleID string) (*roles.Role, error) {
	if roles.IsSystemRoleName(roleID) {
		return nil, gherr.Forbidden("permissions of system role %q cannot be modified", roleID)
	}
	return e.store.GetRole(ctx, workspaceID, roleID)
}

// resolvePair resolves the current state of one pair for a role, used for
// before/after reporting.
func (e *Engine) resolvePair(ctx context.Context, role *roles.Role, resource catalog.ResourceType, permission catalog.Permission) (PermissionState, error) {
	override, err := e.store.GetOverride(ctx, role.ID, resource, permission)
	if err != nil {
		return PermissionState{}, err
	}
	if override != nil {
		return PermissionState{Granted: override.Granted, Inherited: false}, nil
	}
	if role.BaseRole != nil {
		if granted, defined := catalog.BaseRoleDefault(*role.BaseRole, resource, permission); defined {
			return PermissionState{Granted: granted, Inherited: true}, nil
		}
	}
	return PermissionState{}, nil
}

// invalidateWorkspace fires workspace-wide cache invalidation without ever
// failing the mutation. Coarse on purpose: the cache does not track which
// users hold which role.
func (e *Engine) invalidateWorkspace(workspaceID string) {
	cache := e.cache
	audit.Dispatch(e.log, "cache", func(ctx context.Context) error {
		return cache.InvalidateWorkspacePermissions(ctx, workspaceID)
	})
}

func (e *Engine) recordPermissionEvent(event *audit.PermissionEvent) {
	recorder := e.permAudit
	audit.Dispatch(e.log, "permission-audit", func(ctx context.Context) error {
		return recorder.Record(ctx, event)
	})
}
