package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DBLogger persists audit entries and permission events to PostgreSQL. It
// implements both Logger and PermissionRecorder.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit sink.
func NewDBLogger(db *sql.DB) *DBLogger {
	return &DBLogger{db: db}
}

// Log writes one audit entry.
func (l *DBLogger) Log(ctx context.Context, entry *Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	details := entry.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_log (timestamp, workspace_id, actor_id, action, entity_type, entity_id, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err = l.db.QueryRowContext(ctx, query,
		entry.Timestamp,
		entry.WorkspaceID,
		entry.ActorID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		detailsJSON,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Record writes one permission-audit event.
func (l *DBLogger) Record(ctx context.Context, event *PermissionEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	beforeJSON, err := marshalState(event.BeforeState)
	if err != nil {
		return fmt.Errorf("failed to marshal before state: %w", err)
	}
	afterJSON, err := marshalState(event.AfterState)
	if err != nil {
		return fmt.Errorf("failed to marshal after state: %w", err)
	}

	query := `
		INSERT INTO permission_audit_log (timestamp, workspace_id, event_type, actor_id, target_role_id, before_state, after_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err = l.db.QueryRowContext(ctx, query,
		event.Timestamp,
		event.WorkspaceID,
		event.EventType,
		event.ActorID,
		event.TargetRoleID,
		beforeJSON,
		afterJSON,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert permission audit event: %w", err)
	}
	return nil
}

func marshalState(state map[string]interface{}) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}
