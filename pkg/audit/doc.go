// Package audit keeps the append-only record of every successful rack and item
// mutation.
//
// # Recording
//
// Services record inside the transaction that carried the mutation:
//
//	err := database.WithTx(ctx, db, func(tx *sql.Tx) error {
//		if err := racks.Insert(ctx, tx, rack); err != nil {
//			return err
//		}
//		_, err := recorder.Record(ctx, tx, audit.ActionCreateRack, actor,
//			audit.Target{RackID: &rack.ID, Details: audit.Details{"name": rack.Name}})
//		return err
//	})
//
// A failed insert rolls the mutation back, so a committed mutation always has
// its entry. Reads and denied mutations never record anything.
//
// # Actions
//
// The action set is closed: CREATE_RACK, UPDATE_RACK, DELETE_RACK, CREATE_ITEM,
// UPDATE_ITEM and DELETE_ITEM. Toggling an item's removed flag and moving an item
// are UPDATE_ITEM entries told apart by their details ({removed: bool} and
// {moved: true, fromRackId, toRackId}). Details hold primitive values only and
// are for display.
//
// Deleting a rack or item writes a snapshot of its name into details because the
// row it would reference is gone. The audit_logs table has no foreign keys, so
// later deletes never rewrite earlier entries; joined names simply come back
// empty.
//
// # Reading
//
// Service gates every read behind rbac.ViewAuditLogs (ADMIN). Listings are newest
// first with a default page of 100. Export renders JSON, CSV or NDJSON.
package audit
