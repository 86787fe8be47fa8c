package users

import "github.com/platinummonkey/rackbook/pkg/auth"

// Summary is a user as listed on the admin page.
type Summary struct {
	auth.User
	AuditLogCount int64 `json:"auditLogCount"`
}

// RoleUpdate is the body of a role change.
type RoleUpdate struct {
	Role string `json:"role"`
}
