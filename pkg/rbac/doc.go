// Package rbac is the authorization guard in front of every mutation.
//
// # Policy
//
// Operations are a Resource plus an Action. Policy maps each gated operation to
// the minimum role that may perform it:
//
//	rack create/update/delete                    EDITOR
//	item create/update/delete/toggle_removed/move EDITOR
//	location create                              EDITOR
//	location delete                              ADMIN
//	audit_log read                               ADMIN
//	user read/update_role/delete                 ADMIN
//
// Reads of racks, items, locations and the dashboard are public and do not call
// the guard at all.
//
// # Guard
//
//	user, err := guard.Authorize(ctx, rbac.DeleteRack)
//	if err != nil {
//		return err // wraps errs.ErrAuthenticationRequired or errs.ErrInsufficientPermission
//	}
//
// Authorize resolves the caller through an auth.Accessor and compares ranks with
// auth.AtLeast. No session gives ErrAuthenticationRequired; a role that ranks too
// low, a stored role outside the enumeration, or an operation missing from Policy
// gives ErrInsufficientPermission.
//
// HasRole, CanEdit and IsAdmin never fail and are for deciding what to show. They
// are never the only check in front of a mutation.
//
// # Middleware
//
//	router.Handle("/api/admin/logs", guard.RequirePermission(rbac.ViewAuditLogs)(handler))
package rbac
