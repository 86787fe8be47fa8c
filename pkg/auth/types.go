package auth

import (
	"strings"
	"time"
)

// Role is a user's permission tier. The set is closed and totally ordered:
// RoleViewer < RoleEditor < RoleAdmin. Any other value is an unknown role
// and satisfies no minimum.
type Role string

const (
	RoleViewer Role = "VIEWER" // Read-only access
	RoleEditor Role = "EDITOR" // Can manage racks, items and locations
	RoleAdmin  Role = "ADMIN"  // Full access, including users and the audit log
)

// Roles lists every valid role from lowest to highest rank.
var Roles = []Role{RoleViewer, RoleEditor, RoleAdmin}

// Rank returns the role's position in the hierarchy, or -1 for an unknown role.
func (r Role) Rank() int {
	switch r {
	case RoleViewer:
		return 0
	case RoleEditor:
		return 1
	case RoleAdmin:
		return 2
	default:
		return -1
	}
}

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	return r.Rank() >= 0
}

// AtLeast reports whether r meets the required minimum. Unknown roles on
// either side never satisfy the comparison.
func (r Role) AtLeast(required Role) bool {
	return AtLeast(r, required)
}

func (r Role) String() string {
	return string(r)
}

// AtLeast reports whether actual ranks at or above required.
func AtLeast(actual, required Role) bool {
	if !actual.Valid() || !required.Valid() {
		return false
	}
	return actual.Rank() >= required.Rank()
}

// ParseRole converts a stored or submitted role name. Matching is
// case-insensitive; anything outside the enumeration is rejected.
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", false
	}
	return role, true
}

// User is a person who has signed in at least once.
type User struct {
	ID        string    `json:"id"`
	AuthschID string    `json:"authschId"`
	Name      *string   `json:"name,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// DisplayName returns the user's name, falling back to email and then id.
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	if u.Email != nil && *u.Email != "" {
		return *u.Email
	}
	return u.ID
}
