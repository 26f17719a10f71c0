package matrix

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatehouse/pkg/catalog"
	"github.com/platinummonkey/gatehouse/pkg/gherr"
)

func TestSetPermissionValidation(t *testing.T) {
	engine, _, db := newMockEngine(t, nil)
	defer db.Close()
	ctx := context.Background()

	_, err := engine.SetPermission(ctx, "ws-1", "role-1", "user-1", catalog.ResourceProjects, catalog.PermReveal, true)
	require.Error(t, err)
	assert.True(t, gherr.IsBadRequest(err), "reveal is not a projects permission")

	_, err = engine.SetPermission(ctx, "ws-1", "admin", "user-1", catalog.ResourceProjects, catalog.PermView, true)
	require.Error(t, err)
	assert.True(t, gherr.IsForbidden(err), "system role permissions are immutable")
}

func TestSetPermissionReportsBeforeAndAfter(t *testing.T) {
	engine, mock, db := newMockEngine(t, nil)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM workspace_roles WHERE workspace_id = \$1 AND id = \$2`).
		WithArgs("ws-1", "role-1").
		WillReturnRows(roleRow("developer", true))
	// No existing override: the before state is the inherited default.
	mock.ExpectQuery(`SELECT (.+) FROM role_permission_overrides`).
		WithArgs("role-1", catalog.ResourceStories, catalog.PermApprove).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO role_permission_overrides`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	result, err := engine.SetPermission(context.Background(), "ws-1", "role-1", "user-1", catalog.ResourceStories, catalog.PermApprove, true)
	require.NoError(t, err)

	// Developer default for stories:approve is deny.
	assert.False(t, result.Before.Granted)
	assert.True(t, result.Before.Inherited)
	assert.True(t, result.After.Granted)
	assert.False(t, result.After.Inherited)
}

func TestSetBulkPermissionsValidation(t *testing.T) {
	engine, _, db := newMockEngine(t, nil)
	defer db.Close()
	ctx := context.Background()

	err := engine.SetBulkPermissions(ctx, "ws-1", "role-1", "user-1", nil)
	require.Error(t, err)
	assert.True(t, gherr.IsBadRequest(err), "empty bulk update is rejected")

	err = engine.SetBulkPermissions(ctx, "ws-1", "role-1", "user-1", []PermissionUpdate{
		{ResourceType: catalog.ResourceProjects, Permission: catalog.PermView, Granted: true},
		{ResourceType: catalog.ResourceProjects, Permission: catalog.PermExecute, Granted: true},
	})
	require.Error(t, err)
	assert.True(t, gherr.IsBadRequest(err), "one invalid pair rejects the whole batch")
}

func TestSetBulkPermissionsAllOrNothing(t *testing.T) {
	engine, mock, db := newMockEngine(t, nil)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM workspace_roles WHERE workspace_id = \$1 AND id = \$2`).
		WithArgs("ws-1", "role-1").
		WillReturnRows(roleRow("developer", true))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO role_permission_overrides`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO role_permission_overrides`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := engine.SetBulkPermissions(context.Background(), "ws-1", "role-1", "user-1", []PermissionUpdate{
		{ResourceType: catalog.ResourceProjects, Permission: catalog.PermView, Granted: true},
		{ResourceType: catalog.ResourceProjects, Permission: catalog.PermEdit, Granted: false},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkResourceActionValidation(t *testing.T) {
	engine, _, db := newMockEngine(t, nil)
	defer db.Close()
	ctx := context.Background()

	err := engine.BulkResourceAction(ctx, "ws-1", "role-1", "user-1", "gadgets", BulkAllowAll)
	require.Error(t, err)
	assert.True(t, gherr.IsBadRequest(err))

	err = engine.BulkResourceAction(ctx, "ws-1", "role-1", "user-1", catalog.ResourceProjects, "maybe_all")
	require.Error(t, err)
	assert.True(t, gherr.IsBadRequest(err))
}

func TestBulkResourceActionWritesFullPermissionSet(t *testing.T) {
	engine, mock, db := newMockEngine(t, nil)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM workspace_roles WHERE workspace_id = \$1 AND id = \$2`).
		WithArgs("ws-1", "role-1").
		WillReturnRows(roleRow("developer", true))
	mock.ExpectQuery(`SELECT (.+) FROM role_permission_overrides WHERE role_id = \$1 AND resource_type = \$2`).
		WithArgs("role-1", catalog.ResourceProjects).
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "resource_type", "permission", "granted", "updated_at"}))

	// projects has five permissions; every one gets an explicit row.
	mock.ExpectBegin()
	for range catalog.Permissions(catalog.ResourceProjects) {
		mock.ExpectExec(`INSERT INTO role_permission_overrides`).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	err := engine.BulkResourceAction(context.Background(), "ws-1", "role-1", "user-1", catalog.ResourceProjects, BulkDenyAll)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPermissionsScoped(t *testing.T) {
	engine, mock, db := newMockEngine(t, nil)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM workspace_roles WHERE workspace_id = \$1 AND id = \$2`).
		WithArgs("ws-1", "role-1").
		WillReturnRows(roleRow("developer", true))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM role_permission_overrides WHERE role_id = $1 AND resource_type = $2`)).
		WithArgs("role-1", catalog.ResourceSecrets).
		WillReturnResult(sqlmock.NewResult(0, 2))

	resource := catalog.ResourceSecrets
	removed, err := engine.ResetPermissions(context.Background(), "ws-1", "role-1", "user-1", &resource)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}

func TestResetPermissionsAll(t *testing.T) {
	engine, mock, db := newMockEngine(t, nil)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM workspace_roles WHERE workspace_id = \$1 AND id = \$2`).
		WithArgs("ws-1", "role-1").
		WillReturnRows(roleRow("developer", true))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM role_permission_overrides WHERE role_id = $1`)).
		WithArgs("role-1").
		WillReturnResult(sqlmock.NewResult(0, 9))

	removed, err := engine.ResetPermissions(context.Background(), "ws-1", "role-1", "user-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(9), removed)
}

func TestResetPermissionsSystemRole(t *testing.T) {
	engine, _, db := newMockEngine(t, nil)
	defer db.Close()

	_, err := engine.ResetPermissions(context.Background(), "ws-1", "viewer", "user-1", nil)
	require.Error(t, err)
	assert.True(t, gherr.IsForbidden(err))
}
