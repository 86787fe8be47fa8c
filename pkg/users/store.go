package users

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/database"
	"github.com/platinummonkey/rackbook/pkg/errs"
)

// Store persists users. Methods take the Querier to run on so writes can
// share the caller's transaction.
type Store struct {
	now func() time.Time
}

// NewStore creates a user store
func NewStore() *Store {
	return &Store{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

const userColumns = "id, authsch_id, name, email, role, created_at"

func scanUser(scanner database.Scanner, extra ...interface{}) (*auth.User, error) {
	var (
		user        auth.User
		name, email sql.NullString
		role        string
	)
	dest := append([]interface{}{&user.ID, &user.AuthschID, &name, &email, &role, &user.CreatedAt}, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	user.Name = database.StringPtr(name)
	user.Email = database.StringPtr(email)
	// Stored roles are not re-validated here; an unknown value simply ranks
	// below every minimum.
	user.Role = auth.Role(role)
	return &user, nil
}

// GetByID returns the user with id.
func (s *Store) GetByID(ctx context.Context, q database.Querier, id string) (*auth.User, error) {
	return s.getWhere(ctx, q, "id", id)
}

// GetByAuthschID returns the user for an identity-provider subject.
func (s *Store) GetByAuthschID(ctx context.Context, q database.Querier, subject string) (*auth.User, error) {
	return s.getWhere(ctx, q, "authsch_id", subject)
}

func (s *Store) getWhere(ctx context.Context, q database.Querier, column, value string) (*auth.User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+column+" = $1", value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("user", value)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}
	return user, nil
}

// Insert stores a new user, assigning its id and creation time.
func (s *Store) Insert(ctx context.Context, q database.Querier, user *auth.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = s.now()

	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, authsch_id, name, email, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.AuthschID, database.NullString(user.Name), database.NullString(user.Email),
		string(user.Role), user.CreatedAt, user.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errs.Invalid("user with subject %q already exists", user.AuthschID)
		}
		return errors.Wrap(err, "failed to insert user")
	}
	return nil
}

// UpdateProfile rewrites name and email only.
func (s *Store) UpdateProfile(ctx context.Context, q database.Querier, id string, name, email *string) error {
	res, err := q.ExecContext(ctx,
		"UPDATE users SET name = $1, email = $2, updated_at = $3 WHERE id = $4",
		database.NullString(name), database.NullString(email), s.now(), id,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update user profile")
	}
	return requireRow(res, id)
}

// UpdateRole sets a user's role.
func (s *Store) UpdateRole(ctx context.Context, q database.Querier, id string, role auth.Role) error {
	res, err := q.ExecContext(ctx,
		"UPDATE users SET role = $1, updated_at = $2 WHERE id = $3",
		string(role), s.now(), id,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update user role")
	}
	return requireRow(res, id)
}

// Delete removes a user. Their sessions cascade; audit entries keep the id.
func (s *Store) Delete(ctx context.Context, q database.Querier, id string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete user")
	}
	return requireRow(res, id)
}

// List returns every user, newest first, with their audit entry counts.
func (s *Store) List(ctx context.Context, q database.Querier) ([]*Summary, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT u.id, u.authsch_id, u.name, u.email, u.role, u.created_at,
			(SELECT COUNT(*) FROM audit_logs a WHERE a.user_id = u.id)
		FROM users u
		ORDER BY u.created_at DESC, u.id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	defer rows.Close()

	summaries := []*Summary{}
	for rows.Next() {
		var count int64
		user, err := scanUser(rows, &count)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan user")
		}
		summaries = append(summaries, &Summary{User: *user, AuditLogCount: count})
	}
	return summaries, rows.Err()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return errs.NotFound("user", id)
	}
	return nil
}
