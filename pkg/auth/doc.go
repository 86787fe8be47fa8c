// Package auth defines who the caller is: the user model, the role hierarchy and
// the request-scoped accessor the authorization guard consults.
//
// # Role Hierarchy
//
// Roles are a closed, ordered set:
//
//	VIEWER (0) < EDITOR (1) < ADMIN (2)
//
// Comparisons always go through AtLeast, which compares ranks. A role string that
// is not one of the three (including the empty string) has rank -1 and satisfies no
// minimum, so a corrupted or missing role denies rather than grants.
//
//	auth.AtLeast(auth.RoleAdmin, auth.RoleEditor)  // true
//	auth.AtLeast(auth.RoleViewer, auth.RoleEditor) // false
//	auth.AtLeast(auth.Role("root"), auth.RoleViewer) // false
//
// # Session Accessor
//
// The session middleware resolves the session cookie and stores the *User on the
// request context with WithUser. Services read it through the Accessor interface,
// normally ContextAccessor; tests inject their own.
//
// # Session Tokens
//
// TokenGenerator issues opaque session tokens (rbs_ prefix, 256 random bits). The
// session store keeps only their SHA256 hash.
package auth
