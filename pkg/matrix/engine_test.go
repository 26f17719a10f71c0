package matrix

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatehouse/pkg/catalog"
	"github.com/platinummonkey/gatehouse/pkg/gherr"
	"github.com/platinummonkey/gatehouse/pkg/membership"
	"github.com/platinummonkey/gatehouse/pkg/roles"
)

type fakeMembers struct {
	member *membership.Member
}

func (f *fakeMembers) GetMember(ctx context.Context, workspaceID, userID string) (*membership.Member, error) {
	if f.member == nil {
		return nil, gherr.NotFound("user %s is not a member of workspace %s", userID, workspaceID)
	}
	return f.member, nil
}

func (f *fakeMembers) CountRoleMembers(ctx context.Context, roleID string) (int, error) {
	return 0, nil
}

func (f *fakeMembers) CountSystemRoleMembers(ctx context.Context, workspaceID string, base catalog.BaseRole) (int, error) {
	return 0, nil
}

func (f *fakeMembers) ListRoleMembers(ctx context.Context, workspaceID, roleID string) ([]membership.Member, error) {
	return nil, nil
}

func newMockEngine(t *testing.T, members *fakeMembers) (*Engine, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	if members == nil {
		members = &fakeMembers{}
	}
	return NewEngine(roles.NewStore(db), members, nil, nil, nil, nil), mock, db
}

func memberWith(base catalog.BaseRole, customRoleID string) *membership.Member {
	m := &membership.Member{WorkspaceID: "ws-1", UserID: "user-1", SystemRole: base}
	if customRoleID != "" {
		m.CustomRoleID = &customRoleID
	}
	return m
}

func roleRow(baseRole interface{}, active bool) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "workspace_id", "name", "display_name", "description", "color",
		"base_role", "is_active", "priority", "template_id", "created_by",
		"created_at", "updated_at",
	}).AddRow("role-1", "ws-1", "qa", "QA", "", "", baseRole, active, 0, nil, "user-1", now, now)
}

func TestCheckPermissionOwnerShortCircuit(t *testing.T) {
	// Owners never touch the role store, not even for unknown pairs.
	engine, mock, db := newMockEngine(t, &fakeMembers{member: memberWith(catalog.BaseRoleOwner, "")})
	defer db.Close()

	granted, err := engine.CheckPermission(context.Background(), "user-1", "ws-1", catalog.ResourceWorkspace, catalog.PermDelete)
	require.NoError(t, err)
	assert.True(t, granted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckPermissionBaseRoleDefaults(t *testing.T) {
	engine, _, db := newMockEngine(t, &fakeMembers{member: memberWith(catalog.BaseRoleViewer, "")})
	defer db.Close()
	ctx := context.Background()

	granted, err := engine.CheckPermission(ctx, "user-1", "ws-1", catalog.ResourceProjects, catalog.PermView)
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = engine.CheckPermission(ctx, "user-1", "ws-1", catalog.ResourceSecrets, catalog.PermView)
	require.NoError(t, err)
	assert.False(t, granted, "viewer has no secrets access")

	granted, err = engine.CheckPermission(ctx, "user-1", "ws-1", catalog.ResourceProjects, catalog.PermDelete)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestCheckPermissionUnknownMember(t *testing.T) {
	engine, _, db := newMockEngine(t, &fakeMembers{})
	defer db.Close()

	_, err := engine.CheckPermission(context.Background(), "stranger", "ws-1", catalog.ResourceProjects, catalog.PermView)
	require.Error(t, err)
	assert.True(t, gherr.IsNotFound(err))
}

func TestCheckPermissionOverrideWins(t *testing.T) {
	engine, mock, db := newMockEngine(t, &fakeMembers{member: memberWith(catalog.BaseRoleDeveloper, "role-1")})
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM workspace_roles WHERE workspace_id = \$1 AND id = \$2`).
		WithArgs("ws-1", "role-1").
		WillReturnRows(roleRow("developer", true))
	// Developer default grants projects:view; the explicit denial wins.
	mock.ExpectQuery(`SELECT (.+) FROM role_permission_overrides`).
		WithArgs("role-1", catalog.ResourceProjects, catalog.PermView).
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "resource_type", "permission", "granted", "updated_at"}).
			AddRow("role-1", "projects", "view", false, time.Now().UTC()))

	granted, err := engine.CheckPermission(context.Background(), "user-1", "ws-1", catalog.ResourceProjects, catalog.PermView)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestCheckPermissionFallsBackToBaseRole(t *testing.T) {
	engine, mock, db := newMockEngine(t, &fakeMembers{member: memberWith(catalog.BaseRoleViewer, "role-1")})
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM workspace_roles WHERE workspace_id = \$1 AND id = \$2`).
		WithArgs("ws-1", "role-1").
		WillReturnRows(roleRow("developer", true))
	mock.ExpectQuery(`SELECT (.+) FROM role_permission_overrides`).
		WithArgs("role-1", catalog.ResourceAgents, catalog.PermExecute).
		WillReturnError(sql.ErrNoRows)

	granted, err := engine.CheckPermission(context.Background(), "user-1", "ws-1", catalog.ResourceAgents, catalog.PermExecute)
	require.NoError(t, err)
	assert.True(t, granted, "no override, developer default applies")
}

func TestCheckPermissionInactiveRoleDeniesAll(t *testing.T) {
	engine, mock, db := newMockEngine(t, &fakeMembers{member: memberWith(catalog.BaseRoleDeveloper, "role-1")})
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM workspace_roles WHERE workspace_id = \$1 AND id = \$2`).
		WithArgs("ws-1", "role-1").
		WillReturnRows(roleRow("developer", false))

	granted, err := engine.CheckPermission(context.Background(), "user-1", "ws-1", catalog.ResourceProjects, catalog.PermView)
	require.NoError(t, err)
	assert.False(t, granted)
	require.NoError(t, mock.ExpectationsWereMet(), "no override lookup for an inactive role")
}

func TestCheckPermissionNoBaseRoleDeniesByDefault(t *testing.T) {
	engine, mock, db := newMockEngine(t, &fakeMembers{member: memberWith(catalog.BaseRoleViewer, "role-1")})
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM workspace_roles WHERE workspace_id = \$1 AND id = \$2`).
		WithArgs("ws-1", "role-1").
		WillReturnRows(roleRow(nil, true))
	mock.ExpectQuery(`SELECT (.+) FROM role_permission_overrides`).
		WithArgs("role-1", catalog.ResourceProjects, catalog.PermView).
		WillReturnError(sql.ErrNoRows)

	granted, err := engine.CheckPermission(context.Background(), "user-1", "ws-1", catalog.ResourceProjects, catalog.PermView)
	require.NoError(t, err)
	assert.False(t, granted, "no base role and no override means deny")
}

func TestRoleMatrixSystemName(t *testing.T) {
	engine, mock, db := newMockEngine(t, nil)
	defer db.Close()

	m, err := engine.RoleMatrix(context.Background(), "ws-1", "viewer")
	require.NoError(t, err)

	assert.True(t, m[catalog.ResourceProjects][catalog.PermView].Granted)
	assert.True(t, m[catalog.ResourceProjects][catalog.PermView].Inherited)
	assert.False(t, m[catalog.ResourceSecrets][catalog.PermView].Granted)
	require.NoError(t, mock.ExpectationsWereMet(), "system role matrix never hits the store")
}

func TestRoleMatrixLayersOverrides(t *testing.T) {
	engine, mock, db := newMockEngine(t, nil)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM workspace_roles WHERE workspace_id = \$1 AND id = \$2`).
		WithArgs("ws-1", "role-1").
		WillReturnRows(roleRow("developer", true))
	mock.ExpectQuery(`SELECT (.+) FROM role_permission_overrides WHERE role_id = \$1 ORDER BY`).
		WithArgs("role-1").
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "resource_type", "permission", "granted", "updated_at"}).
			AddRow("role-1", "stories", "approve", true, time.Now().UTC()).
			AddRow("role-1", "projects", "view", false, time.Now().UTC()))

	m, err := engine.RoleMatrix(context.Background(), "ws-1", "role-1")
	require.NoError(t, err)

	// Overrides are authoritative and marked explicit.
	assert.True(t, m[catalog.ResourceStories][catalog.PermApprove].Granted)
	assert.False(t, m[catalog.ResourceStories][catalog.PermApprove].Inherited)
	assert.False(t, m[catalog.ResourceProjects][catalog.PermView].Granted)
	assert.False(t, m[catalog.ResourceProjects][catalog.PermView].Inherited)

	// Untouched pairs inherit developer defaults.
	assert.True(t, m[catalog.ResourceProjects][catalog.PermCreate].Granted)
	assert.True(t, m[catalog.ResourceProjects][catalog.PermCreate].Inherited)

	// Every catalog pair is present.
	total := 0
	for _, row := range m {
		total += len(row)
	}
	assert.Equal(t, catalog.PermissionCount(), total)
}

func TestEffectivePermissionsOwner(t *testing.T) {
	engine, mock, db := newMockEngine(t, &fakeMembers{member: memberWith(catalog.BaseRoleOwner, "")})
	defer db.Close()

	m, err := engine.EffectivePermissions(context.Background(), "ws-1", "user-1")
	require.NoError(t, err)

	for resource, row := range m {
		for p, state := range row {
			assert.True(t, state.Granted, "owner must hold %s:%s", resource, p)
		}
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEffectivePermissionsInactiveRole(t *testing.T) {
	engine, mock, db := newMockEngine(t, &fakeMembers{member: memberWith(catalog.BaseRoleDeveloper, "role-1")})
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM workspace_roles WHERE workspace_id = \$1 AND id = \$2`).
		WithArgs("ws-1", "role-1").
		WillReturnRows(roleRow("developer", false))

	m, err := engine.EffectivePermissions(context.Background(), "ws-1", "user-1")
	require.NoError(t, err)

	for _, row := range m {
		for _, state := range row {
			assert.False(t, state.Granted)
		}
	}
}

func TestResolveMatrixNoBase(t *testing.T) {
	m := resolveMatrix(nil, nil)
	for _, row := range m {
		for _, state := range row {
			assert.False(t, state.Granted)
			assert.False(t, state.Inherited)
		}
	}
}
