package audit

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLogger(t *testing.T) (*DBLogger, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewDBLogger(db), mock, db
}

func TestLogAssignsIDAndTimestamp(t *testing.T) {
	logger, mock, db := newMockLogger(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO audit_log`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	entry := &Entry{
		WorkspaceID: "ws-1",
		ActorID:     "user-1",
		Action:      ActionRoleCreate,
		EntityType:  "role",
		EntityID:    "role-1",
		Details:     map[string]interface{}{"name": "qa-lead"},
	}
	require.NoError(t, logger.Log(context.Background(), entry))

	assert.Equal(t, int64(42), entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogNilDetails(t *testing.T) {
	logger, mock, db := newMockLogger(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO audit_log`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	require.NoError(t, logger.Log(context.Background(), &Entry{
		WorkspaceID: "ws-1",
		Action:      ActionRoleDelete,
	}))
}

func TestRecordPermissionEvent(t *testing.T) {
	logger, mock, db := newMockLogger(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO permission_audit_log`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	event := &PermissionEvent{
		WorkspaceID:  "ws-1",
		EventType:    EventPermissionSet,
		ActorID:      "user-1",
		TargetRoleID: "role-1",
		BeforeState:  map[string]interface{}{"granted": false},
		AfterState:   map[string]interface{}{"granted": true},
	}
	require.NoError(t, logger.Record(context.Background(), event))

	assert.Equal(t, int64(7), event.ID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestRecordInsertFailure(t *testing.T) {
	logger, mock, db := newMockLogger(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO permission_audit_log`).
		WillReturnError(sql.ErrConnDone)

	err := logger.Record(context.Background(), &PermissionEvent{
		WorkspaceID: "ws-1",
		EventType:   EventPermissionReset,
	})
	require.Error(t, err)
}
