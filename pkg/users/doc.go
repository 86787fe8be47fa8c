// Package users implements user administration: listing users with their
// audit activity, changing roles and deleting accounts.
//
// All operations require ADMIN. Role changes and deletions aimed at the
// caller's own account fail with errs.ErrSelfModificationForbidden and leave
// the database untouched. Users are created only by sign-in (see package sso),
// never through this package.
package users
