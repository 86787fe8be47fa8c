package audit

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/errs"
	"github.com/platinummonkey/rackbook/pkg/observability"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func strPtr(s string) *string { return &s }

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDBRecorder_Record(t *testing.T) {
	editor := &auth.User{ID: "e1", Role: auth.RoleEditor}

	t.Run("success", func(t *testing.T) {
		db, mock := setupMockDB(t)
		metrics := observability.NewMetrics(prometheus.NewRegistry())
		recorder := NewDBRecorder().WithClock(func() time.Time { return fixedNow }).WithMetrics(metrics)

		mock.ExpectExec("INSERT INTO audit_logs").
			WithArgs(sqlmock.AnyArg(), "CREATE_RACK", "e1", "r1", nil, `{"name":"Shelf A-1"}`, fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))

		entry, err := recorder.Record(context.Background(), db, ActionCreateRack, editor, Target{
			RackID:  strPtr("r1"),
			Details: Details{"name": "Shelf A-1"},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, ActionCreateRack, entry.Action)
		assert.Equal(t, "e1", *entry.UserID)
		assert.Equal(t, fixedNow, entry.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AuditRecordsTotal.WithLabelValues("CREATE_RACK")))
	})

	t.Run("no details stores null", func(t *testing.T) {
		db, mock := setupMockDB(t)
		recorder := NewDBRecorder().WithClock(func() time.Time { return fixedNow })

		mock.ExpectExec("INSERT INTO audit_logs").
			WithArgs(sqlmock.AnyArg(), "UPDATE_RACK", "e1", "r1", nil, nil, fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))

		_, err := recorder.Record(context.Background(), db, ActionUpdateRack, editor, Target{RackID: strPtr("r1")})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown action", func(t *testing.T) {
		db, mock := setupMockDB(t)
		_, err := NewDBRecorder().Record(context.Background(), db, Action("CREATE_LOCATION"), editor, Target{})
		assert.True(t, errors.Is(err, errs.ErrValidation))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing actor", func(t *testing.T) {
		db, mock := setupMockDB(t)
		_, err := NewDBRecorder().Record(context.Background(), db, ActionDeleteRack, nil, Target{})
		assert.True(t, errors.Is(err, errs.ErrValidation))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested details rejected", func(t *testing.T) {
		db, mock := setupMockDB(t)
		_, err := NewDBRecorder().Record(context.Background(), db, ActionUpdateItem, editor, Target{
			Details: Details{"changes": map[string]interface{}{"name": "x"}},
		})
		assert.True(t, errors.Is(err, errs.ErrValidation))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unencodable details", func(t *testing.T) {
		db, mock := setupMockDB(t)
		_, err := NewDBRecorder().Record(context.Background(), db, ActionUpdateItem, editor, Target{
			Details: Details{"quantity": math.NaN()},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to marshal details")
		assert.Nil(t, errs.Kind(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("disk full"))

		_, err := NewDBRecorder().Record(context.Background(), db, ActionCreateItem, editor, Target{ItemID: strPtr("i1")})
		assert.Error(t, err)
		assert.Nil(t, errs.Kind(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAction_ValidAndLabel(t *testing.T) {
	for _, a := range Actions {
		assert.True(t, a.Valid())
		assert.NotEqual(t, string(a), a.Label())
	}
	assert.False(t, Action("DELETE_USER").Valid())
	assert.Equal(t, "DELETE_USER", Action("DELETE_USER").Label())
	assert.Len(t, Actions, 6)
}

func TestSearchFilter_Normalize(t *testing.T) {
	assert.Equal(t, DefaultLimit, SearchFilter{}.normalize().Limit)
	assert.Equal(t, MaxLimit, SearchFilter{Limit: MaxLimit + 1}.normalize().Limit)
	assert.Equal(t, 0, SearchFilter{Offset: -5}.normalize().Offset)
	assert.Equal(t, 20, SearchFilter{Limit: 20}.normalize().Limit)
}
