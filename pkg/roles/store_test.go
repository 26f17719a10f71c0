package roles

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatehouse/pkg/catalog"
	"github.com/platinummonkey/gatehouse/pkg/gherr"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewStore(db), mock, db
}

func expectCreatePrologue(mock sqlmock.Sqlmock, workspaceID string, count, nextPriority int) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs(workspaceID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM workspace_roles WHERE workspace_id = $1`)).
		WithArgs(workspaceID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(priority) + 1, 0) FROM workspace_roles WHERE workspace_id = $1`)).
		WithArgs(workspaceID).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(nextPriority))
}

func TestCreateRoleAssignsIDAndPriority(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	expectCreatePrologue(mock, "ws-1", 3, 3)
	mock.ExpectExec(`INSERT INTO workspace_roles`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	base := catalog.BaseRoleDeveloper
	role := &Role{WorkspaceID: "ws-1", Name: "qa", DisplayName: "QA", BaseRole: &base}
	require.NoError(t, store.CreateRole(context.Background(), role))

	assert.NotEmpty(t, role.ID)
	assert.Equal(t, 3, role.Priority)
	assert.True(t, role.IsActive)
	assert.False(t, role.CreatedAt.IsZero())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRoleAtCap(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("ws-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM workspace_roles WHERE workspace_id = $1`)).
		WithArgs("ws-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(MaxCustomRolesPerWorkspace))
	mock.ExpectRollback()

	err := store.CreateRole(context.Background(), &Role{WorkspaceID: "ws-1", Name: "one-too-many"})
	require.Error(t, err)
	assert.True(t, gherr.IsBadRequest(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRoleDuplicateName(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	expectCreatePrologue(mock, "ws-1", 1, 1)
	mock.ExpectExec(`INSERT INTO workspace_roles`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := store.CreateRole(context.Background(), &Role{WorkspaceID: "ws-1", Name: "taken"})
	require.Error(t, err)
	assert.True(t, gherr.IsConflict(err))
}

func TestCloneRoleCopiesOverrides(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	expectCreatePrologue(mock, "ws-1", 1, 1)
	mock.ExpectExec(`INSERT INTO workspace_roles`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO role_permission_overrides \(role_id, resource_type, permission, granted, updated_at\)\s+SELECT`).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	clone := &Role{WorkspaceID: "ws-1", Name: "copy"}
	require.NoError(t, store.CloneRole(context.Background(), "source-role", clone))
	assert.NotEmpty(t, clone.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRoleNotFound(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM workspace_roles WHERE workspace_id = \$1 AND id = \$2`).
		WithArgs("ws-1", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetRole(context.Background(), "ws-1", "missing")
	require.Error(t, err)
	assert.True(t, gherr.IsNotFound(err))
}

func TestGetRoleScansNullables(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "workspace_id", "name", "display_name", "description", "color",
		"base_role", "is_active", "priority", "template_id", "created_by",
		"created_at", "updated_at",
	}).AddRow("role-1", "ws-1", "standalone", "Standalone", "", "", nil, true, 0, nil, "user-1", now, now)

	mock.ExpectQuery(`SELECT (.+) FROM workspace_roles WHERE workspace_id = \$1 AND id = \$2`).
		WithArgs("ws-1", "role-1").
		WillReturnRows(rows)

	role, err := store.GetRole(context.Background(), "ws-1", "role-1")
	require.NoError(t, err)
	assert.Nil(t, role.BaseRole, "NULL base_role means no inheritance")
	assert.Nil(t, role.TemplateID)
}

func TestUpdateRoleNotFound(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE workspace_roles`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateRole(context.Background(), &Role{ID: "missing", WorkspaceID: "ws-1", Name: "x"})
	require.Error(t, err)
	assert.True(t, gherr.IsNotFound(err))
}

func TestDeleteRoleNotFound(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM workspace_roles WHERE workspace_id = $1 AND id = $2`)).
		WithArgs("ws-1", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteRole(context.Background(), "ws-1", "missing")
	require.Error(t, err)
	assert.True(t, gherr.IsNotFound(err))
}

func TestReorderRolesRejectsForeignRole(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE workspace_roles SET priority`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE workspace_roles SET priority`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.ReorderRoles(context.Background(), "ws-1", []string{"role-1", "intruder"})
	require.Error(t, err)
	assert.True(t, gherr.IsBadRequest(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOverrideAbsentIsNil(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM role_permission_overrides`).
		WithArgs("role-1", catalog.ResourceProjects, catalog.PermView).
		WillReturnError(sql.ErrNoRows)

	ov, err := store.GetOverride(context.Background(), "role-1", catalog.ResourceProjects, catalog.PermView)
	require.NoError(t, err, "an absent override is not an error")
	assert.Nil(t, ov)
}

func TestDeleteOverridesScoped(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM role_permission_overrides WHERE role_id = $1 AND resource_type = $2`)).
		WithArgs("role-1", catalog.ResourceSecrets).
		WillReturnResult(sqlmock.NewResult(0, 3))

	resource := catalog.ResourceSecrets
	removed, err := store.DeleteOverrides(context.Background(), "role-1", &resource)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
}

func TestDeleteOverridesAll(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM role_permission_overrides WHERE role_id = $1`)).
		WithArgs("role-1").
		WillReturnResult(sqlmock.NewResult(0, 7))

	removed, err := store.DeleteOverrides(context.Background(), "role-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
}

func TestReplaceOverridesIsAtomic(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM role_permission_overrides WHERE role_id = $1`)).
		WithArgs("role-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO role_permission_overrides`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.ReplaceOverrides(context.Background(), "role-1", []PermissionOverride{
		{RoleID: "role-1", ResourceType: catalog.ResourceStories, Permission: catalog.PermApprove, Granted: true},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertOverridesBulkRollsBackOnFailure(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO role_permission_overrides`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO role_permission_overrides`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := store.UpsertOverridesBulk(context.Background(), []PermissionOverride{
		{RoleID: "role-1", ResourceType: catalog.ResourceStories, Permission: catalog.PermApprove, Granted: true},
		{RoleID: "role-1", ResourceType: catalog.ResourceStories, Permission: catalog.PermAssign, Granted: false},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
