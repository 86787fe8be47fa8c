package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/database"
	"github.com/platinummonkey/rackbook/pkg/errs"
)

// seed creates an admin, an editor, one rack with one item, and a clock that
// advances a second per call.
func seed(t *testing.T) (*sql.DB, *DBRecorder, *auth.User, *auth.User) {
	t.Helper()
	db := database.NewTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := db.ExecContext(ctx,
		"INSERT INTO users (id, authsch_id, name, email, role, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		"a1", "sub-a1", "Ada Admin", "ada@example.com", "ADMIN", now, now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		"INSERT INTO users (id, authsch_id, name, email, role, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		"e1", "sub-e1", "Eve Editor", nil, "EDITOR", now, now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		"INSERT INTO racks (id, name, qr_code, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)",
		"r1", "Shelf A-1", "qr-1", now, now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		"INSERT INTO items (id, name, quantity, removed, rack_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		"i1", "HDMI cable", 3, false, "r1", now, now)
	require.NoError(t, err)

	tick := now
	recorder := NewDBRecorder().WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})

	return db, recorder,
		&auth.User{ID: "a1", Role: auth.RoleAdmin},
		&auth.User{ID: "e1", Role: auth.RoleEditor}
}

func TestDBStore_SearchNewestFirstWithJoins(t *testing.T) {
	db, recorder, admin, editor := seed(t)
	ctx := context.Background()
	store := NewDBStore(db)

	_, err := recorder.Record(ctx, db, ActionCreateRack, editor, Target{RackID: strPtr("r1"), Details: Details{"name": "Shelf A-1"}})
	require.NoError(t, err)
	_, err = recorder.Record(ctx, db, ActionCreateItem, editor, Target{RackID: strPtr("r1"), ItemID: strPtr("i1"), Details: Details{"name": "HDMI cable", "quantity": 3}})
	require.NoError(t, err)
	_, err = recorder.Record(ctx, db, ActionDeleteRack, admin, Target{Details: Details{"rackId": "r9", "rackName": "Old shelf"}})
	require.NoError(t, err)

	entries, err := store.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, ActionDeleteRack, entries[0].Action)
	assert.Equal(t, "Deleted rack", entries[0].Label)
	assert.Nil(t, entries[0].Rack)
	assert.Equal(t, "Old shelf", entries[0].Details["rackName"])
	assert.Equal(t, "Ada Admin", *entries[0].User.Name)

	assert.Equal(t, ActionCreateItem, entries[1].Action)
	assert.Equal(t, "HDMI cable", entries[1].Item.Name)
	assert.Equal(t, "Shelf A-1", entries[1].Rack.Name)
	assert.Equal(t, float64(3), entries[1].Details["quantity"])
	assert.Nil(t, entries[1].User.Email)

	assert.Equal(t, ActionCreateRack, entries[2].Action)
}

func TestDBStore_SearchFilters(t *testing.T) {
	db, recorder, admin, editor := seed(t)
	ctx := context.Background()
	store := NewDBStore(db)

	for i := 0; i < 3; i++ {
		_, err := recorder.Record(ctx, db, ActionUpdateRack, editor, Target{RackID: strPtr("r1")})
		require.NoError(t, err)
	}
	_, err := recorder.Record(ctx, db, ActionUpdateItem, admin, Target{ItemID: strPtr("i1"), Details: Details{"removed": true}})
	require.NoError(t, err)

	byUser, err := store.Search(ctx, SearchFilter{UserID: "a1"})
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	byAction, err := store.Search(ctx, SearchFilter{Actions: []Action{ActionUpdateRack}})
	require.NoError(t, err)
	assert.Len(t, byAction, 3)

	byItem, err := store.Search(ctx, SearchFilter{ItemID: "i1"})
	require.NoError(t, err)
	require.Len(t, byItem, 1)
	assert.Equal(t, true, byItem[0].Details["removed"])

	page, err := store.Search(ctx, SearchFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	start := time.Date(2024, 1, 1, 0, 0, 3, 0, time.UTC)
	recent, err := store.Search(ctx, SearchFilter{StartTime: &start})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestDBStore_GetAndStats(t *testing.T) {
	db, recorder, admin, editor := seed(t)
	ctx := context.Background()
	store := NewDBStore(db)

	entry, err := recorder.Record(ctx, db, ActionCreateRack, editor, Target{RackID: strPtr("r1")})
	require.NoError(t, err)
	_, err = recorder.Record(ctx, db, ActionUpdateRack, editor, Target{RackID: strPtr("r1")})
	require.NoError(t, err)
	_, err = recorder.Record(ctx, db, ActionDeleteItem, admin, Target{RackID: strPtr("r1"), Details: Details{"name": "HDMI cable"}})
	require.NoError(t, err)

	got, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionCreateRack, got.Action)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrEntityNotFound)

	stats, err := store.GetStats(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEntries)
	assert.Equal(t, int64(1), stats.EntriesByType[ActionDeleteItem])
	require.NotEmpty(t, stats.TopActors)
	assert.Equal(t, "e1", stats.TopActors[0].UserID)
	assert.Equal(t, int64(2), stats.TopActors[0].Count)

	counts, err := store.CountByUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"e1": 2, "a1": 1}, counts)
}

func TestDBStore_EntriesSurviveReferencedDeletes(t *testing.T) {
	db, recorder, _, editor := seed(t)
	ctx := context.Background()

	_, err := recorder.Record(ctx, db, ActionCreateItem, editor, Target{RackID: strPtr("r1"), ItemID: strPtr("i1")})
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "DELETE FROM racks WHERE id = $1", "r1")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", "e1")
	require.NoError(t, err)

	entries, err := NewDBStore(db).Search(ctx, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", *entries[0].UserID)
	assert.Equal(t, "i1", *entries[0].ItemID)
	assert.Nil(t, entries[0].User)
	assert.Nil(t, entries[0].Rack)
	assert.Nil(t, entries[0].Item)
}
