package rbac

import (
	"github.com/platinummonkey/rackbook/pkg/auth"
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceRack     Resource = "rack"
	ResourceItem     Resource = "item"
	ResourceLocation Resource = "location"
	ResourceAuditLog Resource = "audit_log"
	ResourceUser     Resource = "user"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate        Action = "create"
	ActionRead          Action = "read"
	ActionUpdate        Action = "update"
	ActionDelete        Action = "delete"
	ActionToggleRemoved Action = "toggle_removed"
	ActionMove          Action = "move"
	ActionUpdateRole    Action = "update_role"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// Gated operations.
var (
	CreateRack = Permission{ResourceRack, ActionCreate}
	UpdateRack = Permission{ResourceRack, ActionUpdate}
	DeleteRack = Permission{ResourceRack, ActionDelete}

	CreateItem        = Permission{ResourceItem, ActionCreate}
	UpdateItem        = Permission{ResourceItem, ActionUpdate}
	DeleteItem        = Permission{ResourceItem, ActionDelete}
	ToggleItemRemoved = Permission{ResourceItem, ActionToggleRemoved}
	MoveItem          = Permission{ResourceItem, ActionMove}

	CreateLocation = Permission{ResourceLocation, ActionCreate}
	DeleteLocation = Permission{ResourceLocation, ActionDelete}

	ViewAuditLogs = Permission{ResourceAuditLog, ActionRead}

	ListUsers      = Permission{ResourceUser, ActionRead}
	UpdateUserRole = Permission{ResourceUser, ActionUpdateRole}
	DeleteUser     = Permission{ResourceUser, ActionDelete}
)

// Policy maps every gated operation to the minimum role allowed to perform it.
// Reads of racks, items and locations are public and never consult the guard.
var Policy = map[Permission]auth.Role{
	CreateRack: auth.RoleEditor,
	UpdateRack: auth.RoleEditor,
	DeleteRack: auth.RoleEditor,

	CreateItem:        auth.RoleEditor,
	UpdateItem:        auth.RoleEditor,
	DeleteItem:        auth.RoleEditor,
	ToggleItemRemoved: auth.RoleEditor,
	MoveItem:          auth.RoleEditor,

	CreateLocation: auth.RoleEditor,
	DeleteLocation: auth.RoleAdmin,

	ViewAuditLogs: auth.RoleAdmin,

	ListUsers:      auth.RoleAdmin,
	UpdateUserRole: auth.RoleAdmin,
	DeleteUser:     auth.RoleAdmin,
}

// RequiredRole returns the minimum role for p. ok is false for operations the
// policy does not name; the guard denies those.
func RequiredRole(p Permission) (auth.Role, bool) {
	role, ok := Policy[p]
	return role, ok
}
