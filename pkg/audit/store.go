package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/platinummonkey/rackbook/pkg/database"
	"github.com/platinummonkey/rackbook/pkg/errs"
)

// Store provides methods for querying audit logs. There is no update or
// delete: entries live forever.
type Store interface {
	// Search returns entries matching filter, newest first
	Search(ctx context.Context, filter SearchFilter) ([]*EntryView, error)

	// Get retrieves a specific entry by ID
	Get(ctx context.Context, id string) (*EntryView, error)

	// GetStats retrieves audit log statistics
	GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error)

	// CountByUser returns the number of entries attributed to each user
	CountByUser(ctx context.Context) (map[string]int64, error)
}

// DBStore implements Store over database/sql
type DBStore struct {
	db *sql.DB
}

// NewDBStore creates a new database-backed audit store
func NewDBStore(db *sql.DB) *DBStore {
	return &DBStore{db: db}
}

const selectEntryViews = `
	SELECT a.id, a.action, a.user_id, a.rack_id, a.item_id, a.details, a.created_at,
		u.id, u.name, u.email, r.id, r.name, i.id, i.name
	FROM audit_logs a
	LEFT JOIN users u ON u.id = a.user_id
	LEFT JOIN racks r ON r.id = a.rack_id
	LEFT JOIN items i ON i.id = a.item_id`

// Search returns entries matching filter, newest first
func (s *DBStore) Search(ctx context.Context, filter SearchFilter) ([]*EntryView, error) {
	filter = filter.normalize()

	var conditions []string
	var args []interface{}
	argCount := 1

	if len(filter.Actions) > 0 {
		placeholders := make([]string, len(filter.Actions))
		for i, action := range filter.Actions {
			placeholders[i] = fmt.Sprintf("$%d", argCount)
			args = append(args, string(action))
			argCount++
		}
		conditions = append(conditions, fmt.Sprintf("a.action IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("a.user_id = $%d", argCount))
		args = append(args, filter.UserID)
		argCount++
	}

	if filter.RackID != "" {
		conditions = append(conditions, fmt.Sprintf("a.rack_id = $%d", argCount))
		args = append(args, filter.RackID)
		argCount++
	}

	if filter.ItemID != "" {
		conditions = append(conditions, fmt.Sprintf("a.item_id = $%d", argCount))
		args = append(args, filter.ItemID)
		argCount++
	}

	if filter.StartTime != nil {
		conditions = append(conditions, fmt.Sprintf("a.created_at >= $%d", argCount))
		args = append(args, filter.StartTime.UTC())
		argCount++
	}

	if filter.EndTime != nil {
		conditions = append(conditions, fmt.Sprintf("a.created_at <= $%d", argCount))
		args = append(args, filter.EndTime.UTC())
		argCount++
	}

	query := selectEntryViews
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY a.created_at DESC, a.id DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit logs")
	}
	defer rows.Close()

	var views []*EntryView
	for rows.Next() {
		view, err := scanEntryView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate audit logs")
	}

	return views, nil
}

// Get retrieves a specific entry by ID
func (s *DBStore) Get(ctx context.Context, id string) (*EntryView, error) {
	row := s.db.QueryRowContext(ctx, selectEntryViews+" WHERE a.id = $1", id)
	view, err := scanEntryView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("audit entry", id)
	}
	return view, err
}

// GetStats retrieves audit log statistics
func (s *DBStore) GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error) {
	where, args := timeRange(startTime, endTime)

	stats := &Stats{EntriesByType: make(map[Action]int64)}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs a"+where, args...).Scan(&stats.TotalEntries); err != nil {
		return nil, errors.Wrap(err, "failed to count audit logs")
	}

	rows, err := s.db.QueryContext(ctx, "SELECT a.action, COUNT(*) FROM audit_logs a"+where+" GROUP BY a.action", args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to group audit logs")
	}
	for rows.Next() {
		var action string
		var count int64
		if err := rows.Scan(&action, &count); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan action count")
		}
		stats.EntriesByType[Action(action)] = count
	}
	rows.Close()

	actorWhere := " WHERE a.user_id IS NOT NULL"
	if where != "" {
		actorWhere = where + " AND a.user_id IS NOT NULL"
	}
	rows, err = s.db.QueryContext(ctx, `
		SELECT a.user_id, u.name, COUNT(*) AS n
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.user_id`+actorWhere+`
		GROUP BY a.user_id, u.name
		ORDER BY n DESC
		LIMIT 10`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to rank audit actors")
	}
	defer rows.Close()
	for rows.Next() {
		var ac ActorCount
		var name sql.NullString
		if err := rows.Scan(&ac.UserID, &name, &ac.Count); err != nil {
			return nil, errors.Wrap(err, "failed to scan actor count")
		}
		ac.Name = database.StringPtr(name)
		stats.TopActors = append(stats.TopActors, ac)
	}

	return stats, rows.Err()
}

// CountByUser returns the number of entries attributed to each user
func (s *DBStore) CountByUser(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, COUNT(*) FROM audit_logs WHERE user_id IS NOT NULL GROUP BY user_id")
	if err != nil {
		return nil, errors.Wrap(err, "failed to count audit logs per user")
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var userID string
		var count int64
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan user count")
		}
		counts[userID] = count
	}
	return counts, rows.Err()
}

func timeRange(startTime, endTime *time.Time) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if startTime != nil {
		args = append(args, startTime.UTC())
		conditions = append(conditions, fmt.Sprintf("a.created_at >= $%d", len(args)))
	}
	if endTime != nil {
		args = append(args, endTime.UTC())
		conditions = append(conditions, fmt.Sprintf("a.created_at <= $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanEntryView(scanner database.Scanner) (*EntryView, error) {
	var (
		view                   EntryView
		action                 string
		userID, rackID, itemID sql.NullString
		details                sql.NullString
		uID, uName, uEmail     sql.NullString
		rID, rName, iID, iName sql.NullString
	)

	err := scanner.Scan(
		&view.ID, &action, &userID, &rackID, &itemID, &details, &view.CreatedAt,
		&uID, &uName, &uEmail, &rID, &rName, &iID, &iName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan audit log")
	}

	view.Action = Action(action)
	view.Label = view.Action.Label()
	view.UserID = database.StringPtr(userID)
	view.RackID = database.StringPtr(rackID)
	view.ItemID = database.StringPtr(itemID)

	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &view.Details); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal audit details")
		}
	}

	if uID.Valid {
		view.User = &UserSummary{ID: uID.String, Name: database.StringPtr(uName), Email: database.StringPtr(uEmail)}
	}
	if rID.Valid {
		view.Rack = &RefSummary{ID: rID.String, Name: rName.String}
	}
	if iID.Valid {
		view.Item = &RefSummary{ID: iID.String, Name: iName.String}
	}

	return &view, nil
}
