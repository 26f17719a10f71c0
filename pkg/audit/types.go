package audit

import "time"

// Entry is one workspace audit record.
type Entry struct {
	ID          int64                  `json:"id,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	WorkspaceID string                 `json:"workspace_id"`
	ActorID     string                 `json:"actor_id"`
	Action      string                 `json:"action"`
	EntityType  string                 `json:"entity_type"`
	EntityID    string                 `json:"entity_id"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// Audit actions emitted by the permission core.
const (
	ActionRoleCreate  = "role.create"
	ActionRoleUpdate  = "role.update"
	ActionRoleDelete  = "role.delete"
	ActionRoleClone   = "role.clone"
	ActionRoleReorder = "role.reorder"
)

// PermissionEventType categorizes permission-audit events.
type PermissionEventType string

const (
	EventPermissionSet      PermissionEventType = "permission.set"
	EventPermissionBulkSet  PermissionEventType = "permission.bulk_set"
	EventPermissionBulkFlip PermissionEventType = "permission.resource_action"
	EventPermissionReset    PermissionEventType = "permission.reset"
	EventTemplateApplied    PermissionEventType = "permission.template_applied"
	EventTemplateReset      PermissionEventType = "permission.template_reset"
)

// PermissionEvent is one permission-audit record with before/after state.
type PermissionEvent struct {
	ID           int64                  `json:"id,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	WorkspaceID  string                 `json:"workspace_id"`
	EventType    PermissionEventType    `json:"event_type"`
	ActorID      string                 `json:"actor_id"`
	TargetRoleID string                 `json:"target_role_id"`
	BeforeState  map[string]interface{} `json:"before_state,omitempty"`
	AfterState   map[string]interface{} `json:"after_state,omitempty"`
}
