// Package inventory manages racks, the items stored on them, and the
// locations racks live in.
//
// Reads are public. Every write is authorized through rbac and runs in the
// mutation pipeline, so each successful rack or item change commits together
// with exactly one audit entry. Location changes are authorized but not
// audited; they are logged instead.
//
// Items are soft-deleted with ToggleItemRemoved and permanently removed with
// DeleteItem. Deleting a rack cascades to its items.
package inventory
