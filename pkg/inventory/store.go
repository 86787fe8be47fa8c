package inventory

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/platinummonkey/rackbook/pkg/database"
	"github.com/platinummonkey/rackbook/pkg/errs"
)

// Store reads and writes racks, items and locations. Every method takes the
// Querier to run on so writes can share the caller's transaction.
type Store struct {
	now func() time.Time
}

// NewStore creates a store stamping rows with the current UTC time.
func NewStore() *Store {
	return &Store{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

const selectRacks = `
	SELECT r.id, r.name, r.qr_code, r.location_id, r.created_at, r.updated_at,
		l.id, l.name, l.created_at,
		(SELECT COUNT(*) FROM items i WHERE i.rack_id = r.id AND i.removed = FALSE)
	FROM racks r
	LEFT JOIN locations l ON l.id = r.location_id`

func scanRack(scanner database.Scanner) (*Rack, error) {
	var (
		rack       Rack
		locationID sql.NullString
		lID, lName sql.NullString
		lCreated   sql.NullTime
	)
	err := scanner.Scan(
		&rack.ID, &rack.Name, &rack.QRCode, &locationID, &rack.CreatedAt, &rack.UpdatedAt,
		&lID, &lName, &lCreated, &rack.ItemCount,
	)
	if err != nil {
		return nil, err
	}
	rack.LocationID = database.StringPtr(locationID)
	if lID.Valid {
		rack.Location = &Location{ID: lID.String, Name: lName.String, CreatedAt: lCreated.Time}
	}
	return &rack, nil
}

// ListRacks returns racks with their location and live item count, most
// recently updated first. limit <= 0 returns all racks.
func (s *Store) ListRacks(ctx context.Context, q database.Querier, limit int) ([]*Rack, error) {
	query := selectRacks + " ORDER BY r.updated_at DESC, r.id"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list racks")
	}
	defer rows.Close()

	racks := []*Rack{}
	for rows.Next() {
		rack, err := scanRack(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan rack")
		}
		racks = append(racks, rack)
	}
	return racks, rows.Err()
}

// GetRack returns a rack with its location and items ordered by name.
func (s *Store) GetRack(ctx context.Context, q database.Querier, id string) (*Rack, error) {
	return s.getRackWhere(ctx, q, "r.id", id)
}

// GetRackByQRCode returns the rack a scanned code points at.
func (s *Store) GetRackByQRCode(ctx context.Context, q database.Querier, code string) (*Rack, error) {
	return s.getRackWhere(ctx, q, "r.qr_code", code)
}

func (s *Store) getRackWhere(ctx context.Context, q database.Querier, column, value string) (*Rack, error) {
	rack, err := scanRack(q.QueryRowContext(ctx, selectRacks+" WHERE "+column+" = $1", value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("rack", value)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rack")
	}

	rack.Items, err = s.rackItems(ctx, q, rack.ID)
	if err != nil {
		return nil, err
	}
	return rack, nil
}

// rackExists reports whether id names a rack.
func (s *Store) rackExists(ctx context.Context, q database.Querier, id string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM racks WHERE id = $1", id).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "failed to check rack")
	}
	return n > 0, nil
}

// getRackRow loads a rack without items for a mutation.
func (s *Store) getRackRow(ctx context.Context, q database.Querier, id string) (*Rack, error) {
	rack, err := scanRack(q.QueryRowContext(ctx, selectRacks+" WHERE r.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("rack", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rack")
	}
	return rack, nil
}

// InsertRack stores a new rack with a fresh id and QR code.
func (s *Store) InsertRack(ctx context.Context, q database.Querier, in RackInput) (*Rack, error) {
	now := s.now()
	rack := &Rack{
		ID:         uuid.NewString(),
		Name:       in.Name,
		QRCode:     uuid.NewString(),
		LocationID: in.LocationID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO racks (id, name, qr_code, location_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rack.ID, rack.Name, rack.QRCode, database.NullString(rack.LocationID), rack.CreatedAt, rack.UpdatedAt,
	)
	if err != nil {
		return nil, mapWriteError(err, "failed to create rack")
	}
	return rack, nil
}

// UpdateRack writes rack's name and location.
func (s *Store) UpdateRack(ctx context.Context, q database.Querier, rack *Rack) error {
	rack.UpdatedAt = s.now()
	res, err := q.ExecContext(ctx,
		"UPDATE racks SET name = $1, location_id = $2, updated_at = $3 WHERE id = $4",
		rack.Name, database.NullString(rack.LocationID), rack.UpdatedAt, rack.ID,
	)
	if err != nil {
		return mapWriteError(err, "failed to update rack")
	}
	return requireRow(res, "rack", rack.ID)
}

// DeleteRack removes a rack; its items cascade.
func (s *Store) DeleteRack(ctx context.Context, q database.Querier, id string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM racks WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete rack")
	}
	return requireRow(res, "rack", id)
}

const itemColumns = "i.id, i.name, i.description, i.quantity, i.removed, i.rack_id, i.created_at, i.updated_at"

func scanItem(scanner database.Scanner, extra ...interface{}) (*Item, error) {
	var item Item
	var description sql.NullString
	dest := append([]interface{}{
		&item.ID, &item.Name, &description, &item.Quantity, &item.Removed,
		&item.RackID, &item.CreatedAt, &item.UpdatedAt,
	}, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	item.Description = database.StringPtr(description)
	return &item, nil
}

func (s *Store) rackItems(ctx context.Context, q database.Querier, rackID string) ([]*Item, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM items i WHERE i.rack_id = $1 ORDER BY i.name ASC, i.id", rackID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list rack items")
	}
	defer rows.Close()

	items := []*Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan item")
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListItems returns items across racks ordered by rack name then item name.
// Query matches item name, description, rack name or location name,
// case-insensitively.
func (s *Store) ListItems(ctx context.Context, q database.Querier, filter ItemFilter) ([]*Item, error) {
	query := "SELECT " + itemColumns + `, r.name, l.id, l.name, l.created_at
		FROM items i
		JOIN racks r ON r.id = i.rack_id
		LEFT JOIN locations l ON l.id = r.location_id`

	var conditions []string
	var args []interface{}
	if !filter.ShowRemoved {
		conditions = append(conditions, "i.removed = FALSE")
	}
	if term := strings.TrimSpace(filter.Query); term != "" {
		args = append(args, likePattern(term))
		conditions = append(conditions, `(
			LOWER(i.name) LIKE $1 ESCAPE '\' OR
			LOWER(COALESCE(i.description, '')) LIKE $1 ESCAPE '\' OR
			LOWER(r.name) LIKE $1 ESCAPE '\' OR
			LOWER(COALESCE(l.name, '')) LIKE $1 ESCAPE '\')`)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY r.name ASC, i.name ASC, i.id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list items")
	}
	defer rows.Close()

	items := []*Item{}
	for rows.Next() {
		var (
			rackName   string
			lID, lName sql.NullString
			lCreated   sql.NullTime
		)
		item, err := scanItem(rows, &rackName, &lID, &lName, &lCreated)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan item")
		}
		item.Rack = &RackSummary{ID: item.RackID, Name: rackName}
		if lID.Valid {
			item.Rack.Location = &Location{ID: lID.String, Name: lName.String, CreatedAt: lCreated.Time}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// likePattern lowercases term, escapes LIKE wildcards and wraps it in %.
func likePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(term)) + "%"
}

// GetItem returns a single item.
func (s *Store) GetItem(ctx context.Context, q database.Querier, id string) (*Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items i WHERE i.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("item", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get item")
	}
	return item, nil
}

// InsertItem stores a validated item.
func (s *Store) InsertItem(ctx context.Context, q database.Querier, in ItemInput) (*Item, error) {
	now := s.now()
	item := &Item{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Quantity:    *in.Quantity,
		RackID:      in.RackID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO items (id, name, description, quantity, removed, rack_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, item.Name, database.NullString(item.Description), item.Quantity, item.Removed,
		item.RackID, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return nil, mapWriteError(err, "failed to create item")
	}
	return item, nil
}

// UpdateItem writes every mutable column of item.
func (s *Store) UpdateItem(ctx context.Context, q database.Querier, item *Item) error {
	item.UpdatedAt = s.now()
	res, err := q.ExecContext(ctx, `
		UPDATE items
		SET name = $1, description = $2, quantity = $3, removed = $4, rack_id = $5, updated_at = $6
		WHERE id = $7`,
		item.Name, database.NullString(item.Description), item.Quantity, item.Removed,
		item.RackID, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return mapWriteError(err, "failed to update item")
	}
	return requireRow(res, "item", item.ID)
}

// DeleteItem permanently removes an item.
func (s *Store) DeleteItem(ctx context.Context, q database.Querier, id string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM items WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete item")
	}
	return requireRow(res, "item", id)
}

// ListLocations returns locations by name.
func (s *Store) ListLocations(ctx context.Context, q database.Querier) ([]*Location, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, name, created_at FROM locations ORDER BY name ASC, id")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list locations")
	}
	defer rows.Close()

	locations := []*Location{}
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan location")
		}
		locations = append(locations, &loc)
	}
	return locations, rows.Err()
}

// InsertLocation stores a location. Names are unique.
func (s *Store) InsertLocation(ctx context.Context, q database.Querier, name string) (*Location, error) {
	loc := &Location{ID: uuid.NewString(), Name: name, CreatedAt: s.now()}
	_, err := q.ExecContext(ctx,
		"INSERT INTO locations (id, name, created_at) VALUES ($1, $2, $3)",
		loc.ID, loc.Name, loc.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errs.Invalid("location %q already exists", name)
		}
		return nil, errors.Wrap(err, "failed to create location")
	}
	return loc, nil
}

// DeleteLocation removes a location; its racks keep existing without one.
func (s *Store) DeleteLocation(ctx context.Context, q database.Querier, id string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM locations WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete location")
	}
	return requireRow(res, "location", id)
}

// Dashboard returns the rack count, live item count and most recent racks.
func (s *Store) Dashboard(ctx context.Context, q database.Querier) (*Dashboard, error) {
	d := &Dashboard{}
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM racks").Scan(&d.RackCount); err != nil {
		return nil, errors.Wrap(err, "failed to count racks")
	}
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM items WHERE removed = FALSE").Scan(&d.ItemCount); err != nil {
		return nil, errors.Wrap(err, "failed to count items")
	}

	recent, err := s.ListRacks(ctx, q, RecentRackLimit)
	if err != nil {
		return nil, err
	}
	d.RecentRacks = recent
	return d, nil
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return errs.NotFound(entity, id)
	}
	return nil
}

// mapWriteError turns constraint violations into validation errors.
func mapWriteError(err error, msg string) error {
	switch {
	case database.IsForeignKeyViolation(err):
		return errs.Invalid("referenced rack or location does not exist")
	case database.IsUniqueViolation(err):
		return errs.Invalid("%s: duplicate value", msg)
	default:
		return errors.Wrap(err, msg)
	}
}
