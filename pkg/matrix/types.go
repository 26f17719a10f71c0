package matrix

import (
	"github.com/platinummonkey/gatehouse/pkg/catalog"
)

// PermissionState is one resolved cell of the permission matrix.
type PermissionState struct {
	Granted   bool `json:"granted"`
	Inherited bool `json:"inherited"`
}

// Matrix is the fully resolved permission map for one role or member,
// covering every catalog pair.
type Matrix map[catalog.ResourceType]map[catalog.Permission]PermissionState

// ChangeResult reports the before/after state of a single-permission
// mutation.
type ChangeResult struct {
	ResourceType catalog.ResourceType `json:"resource_type"`
	Permission   catalog.Permission   `json:"permission"`
	Before       PermissionState      `json:"before"`
	After        PermissionState      `json:"after"`
}

// PermissionUpdate is one entry of a bulk mutation.
type PermissionUpdate struct {
	ResourceType catalog.ResourceType `json:"resource_type"`
	Permission   catalog.Permission   `json:"permission"`
	Granted      bool                 `json:"granted"`
}

// BulkAction flips every permission under one resource type.
type BulkAction string

const (
	BulkAllowAll BulkAction = "allow_all"
	BulkDenyAll  BulkAction = "deny_all"
)
