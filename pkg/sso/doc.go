// Package sso signs users in through the AuthSCH OpenID Connect provider.
//
// The callback turns the provider's claims into a Profile, and the
// IdentityResolver maps that profile onto a local user: first sign-in
// registers the user with a role derived from executive membership of the
// privileged group, later sign-ins refresh name and email only. A stored role
// is never recomputed, so administrative role changes survive re-login.
//
// Sessions are opaque "rbs_" tokens; only their SHA256 hash is stored in the
// sessions table.
package sso
