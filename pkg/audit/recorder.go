package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/database"
	"github.com/platinummonkey/rackbook/pkg/errs"
	"github.com/platinummonkey/rackbook/pkg/observability"
)

// Recorder appends audit entries. q is the transaction that carried the
// mutation, so the entry commits or rolls back with it.
type Recorder interface {
	Record(ctx context.Context, q database.Querier, action Action, actor *auth.User, target Target) (*Entry, error)
}

// DBRecorder writes entries to the audit_logs table.
type DBRecorder struct {
	now     func() time.Time
	metrics *observability.Metrics
}

// NewDBRecorder creates a database-backed recorder
func NewDBRecorder() *DBRecorder {
	return &DBRecorder{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the timestamp source.
func (r *DBRecorder) WithClock(now func() time.Time) *DBRecorder {
	r.now = now
	return r
}

// WithMetrics counts written entries by action.
func (r *DBRecorder) WithMetrics(m *observability.Metrics) *DBRecorder {
	r.metrics = m
	return r
}

// Record validates and inserts one entry.
func (r *DBRecorder) Record(ctx context.Context, q database.Querier, action Action, actor *auth.User, target Target) (*Entry, error) {
	if !action.Valid() {
		return nil, errs.Invalid("unknown audit action %q", action)
	}
	if actor == nil {
		return nil, errs.Invalid("audit entry for %s requires an actor", action)
	}
	if err := validateDetails(target.Details); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:        uuid.NewString(),
		Action:    action,
		UserID:    &actor.ID,
		RackID:    target.RackID,
		ItemID:    target.ItemID,
		Details:   target.Details,
		CreatedAt: r.now(),
	}

	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal details")
		}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO audit_logs (id, action, user_id, rack_id, item_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, string(entry.Action), database.NullString(entry.UserID),
		database.NullString(entry.RackID), database.NullString(entry.ItemID),
		nullableJSON(detailsJSON), entry.CreatedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert audit log")
	}

	if r.metrics != nil {
		r.metrics.AuditRecordsTotal.WithLabelValues(string(action)).Inc()
	}
	return entry, nil
}

// validateDetails rejects nested values; details hold primitives only.
func validateDetails(details Details) error {
	for key, value := range details {
		switch value.(type) {
		case nil, string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			return errs.Invalid("audit detail %q must be a primitive value, got %T", key, value)
		}
	}
	return nil
}

func nullableJSON(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}
