package sso

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/database"
	"github.com/platinummonkey/rackbook/pkg/errs"
	"github.com/platinummonkey/rackbook/pkg/observability"
)

// DefaultSessionTTL is how long a session lasts without a configured TTL.
const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionManager manages browser sessions backed by the sessions table.
type SessionManager struct {
	db      *sql.DB
	tokens  *auth.TokenGenerator
	ttl     time.Duration
	now     func() time.Time
	metrics *observability.Metrics
}

// NewSessionManager creates a session manager. ttl <= 0 uses DefaultSessionTTL.
func NewSessionManager(db *sql.DB, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		db:     db,
		tokens: auth.NewTokenGenerator(),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the timestamp source.
func (sm *SessionManager) WithClock(now func() time.Time) *SessionManager {
	sm.now = now
	return sm
}

// WithMetrics counts expired sessions removed by cleanup.
func (sm *SessionManager) WithMetrics(m *observability.Metrics) *SessionManager {
	sm.metrics = m
	return sm
}

// TTL returns the session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// Create starts a session for userID and returns the token to hand to the
// browser.
func (sm *SessionManager) Create(ctx context.Context, userID string) (string, *Session, error) {
	token, hash, err := sm.tokens.GenerateToken()
	if err != nil {
		return "", nil, err
	}

	now := sm.now()
	session := &Session{
		TokenHash:  hash,
		UserID:     userID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(sm.ttl),
		LastSeenAt: now,
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO sessions (token_hash, user_id, created_at, expires_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5)`,
		session.TokenHash, session.UserID, session.CreatedAt, session.ExpiresAt, session.LastSeenAt,
	)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to create session")
	}
	return token, session, nil
}

// Lookup resolves a session token to its user. A malformed, unknown or
// expired token yields ErrAuthenticationRequired.
func (sm *SessionManager) Lookup(ctx context.Context, token string) (*auth.User, *Session, error) {
	if err := sm.tokens.ValidateTokenFormat(token); err != nil {
		return nil, nil, errors.Wrap(errs.ErrAuthenticationRequired, "malformed session token")
	}

	var (
		user        auth.User
		session     Session
		name, email sql.NullString
		role        string
	)
	err := sm.db.QueryRowContext(ctx, `
		SELECT s.token_hash, s.user_id, s.created_at, s.expires_at, s.last_seen_at,
			u.id, u.authsch_id, u.name, u.email, u.role, u.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1`,
		sm.tokens.HashToken(token),
	).Scan(
		&session.TokenHash, &session.UserID, &session.CreatedAt, &session.ExpiresAt, &session.LastSeenAt,
		&user.ID, &user.AuthschID, &name, &email, &role, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, errors.Wrap(errs.ErrAuthenticationRequired, "unknown session")
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to look up session")
	}
	if session.Expired(sm.now()) {
		return nil, nil, errors.Wrap(errs.ErrAuthenticationRequired, "session expired")
	}

	user.Name = database.StringPtr(name)
	user.Email = database.StringPtr(email)
	user.Role = auth.Role(role)
	return &user, &session, nil
}

// Delete ends the session for token. Unknown tokens are ignored.
func (sm *SessionManager) Delete(ctx context.Context, token string) error {
	_, err := sm.db.ExecContext(ctx, "DELETE FROM sessions WHERE token_hash = $1", sm.tokens.HashToken(token))
	if err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	return nil
}

// CleanupExpired removes every expired session and returns how many.
func (sm *SessionManager) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := sm.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= $1", sm.now())
	if err != nil {
		return 0, errors.Wrap(err, "failed to clean up sessions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read affected rows")
	}
	if sm.metrics != nil {
		sm.metrics.SessionsExpired.Add(float64(n))
	}
	return n, nil
}
