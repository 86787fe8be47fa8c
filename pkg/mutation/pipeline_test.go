package mutation

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rackbook/pkg/audit"
	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/database"
	"github.com/platinummonkey/rackbook/pkg/errs"
	"github.com/platinummonkey/rackbook/pkg/observability"
	"github.com/platinummonkey/rackbook/pkg/rbac"
)

type stubRecorder struct {
	err     error
	actions []audit.Action
}

func (s *stubRecorder) Record(_ context.Context, _ database.Querier, action audit.Action, _ *auth.User, _ audit.Target) (*audit.Entry, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.actions = append(s.actions, action)
	return &audit.Entry{Action: action}, nil
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context, ...string) error {
	c.calls++
	return nil
}

func setup(t *testing.T, recorder audit.Recorder) (*Pipeline, sqlmock.Sqlmock, *countingInvalidator, *observability.Metrics) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	inv := &countingInvalidator{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	p := NewPipeline(db, rbac.NewGuard(auth.ContextAccessor{}), recorder, inv).WithMetrics(metrics)
	return p, mock, inv, metrics
}

func editorCtx() context.Context {
	return auth.WithUser(context.Background(), &auth.User{ID: "e1", Role: auth.RoleEditor})
}

func rackUpdated() (Result, error) {
	return Result{Action: audit.ActionUpdateRack, Paths: []string{"/racks"}}, nil
}

func TestPipeline_Commit(t *testing.T) {
	rec := &stubRecorder{}
	p, mock, inv, metrics := setup(t, rec)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE racks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := p.Run(editorCtx(), rbac.UpdateRack, func(ctx context.Context, tx *sql.Tx, actor *auth.User) (Result, error) {
		assert.Equal(t, "e1", actor.ID)
		if _, err := tx.ExecContext(ctx, "UPDATE racks SET name = $1", "x"); err != nil {
			return Result{}, err
		}
		return rackUpdated()
	})
	require.NoError(t, err)

	assert.Equal(t, []audit.Action{audit.ActionUpdateRack}, rec.actions)
	assert.Equal(t, 1, inv.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MutationsTotal.WithLabelValues("rack:update", "ok")))
}

func TestPipeline_DeniedTouchesNothing(t *testing.T) {
	rec := &stubRecorder{}
	p, mock, inv, metrics := setup(t, rec)

	called := false
	ctx := auth.WithUser(context.Background(), &auth.User{ID: "v1", Role: auth.RoleViewer})
	err := p.Run(ctx, rbac.DeleteRack, func(context.Context, *sql.Tx, *auth.User) (Result, error) {
		called = true
		return Result{}, nil
	})

	assert.ErrorIs(t, err, errs.ErrInsufficientPermission)
	assert.False(t, called)
	assert.Empty(t, rec.actions)
	assert.Zero(t, inv.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MutationsTotal.WithLabelValues("rack:delete", "denied")))
}

func TestPipeline_AuditFailureRollsBack(t *testing.T) {
	rec := &stubRecorder{err: errors.New("audit table unavailable")}
	p, mock, inv, metrics := setup(t, rec)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE racks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := p.Run(editorCtx(), rbac.UpdateRack, func(ctx context.Context, tx *sql.Tx, _ *auth.User) (Result, error) {
		if _, err := tx.ExecContext(ctx, "UPDATE racks SET name = $1", "x"); err != nil {
			return Result{}, err
		}
		return rackUpdated()
	})

	assert.Error(t, err)
	assert.Zero(t, inv.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MutationsTotal.WithLabelValues("rack:update", "error")))
}

func TestPipeline_MutationErrorRollsBack(t *testing.T) {
	rec := &stubRecorder{}
	p, mock, _, metrics := setup(t, rec)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := p.Run(editorCtx(), rbac.UpdateItem, func(context.Context, *sql.Tx, *auth.User) (Result, error) {
		return Result{}, errs.NotFound("item", "i1")
	})

	assert.ErrorIs(t, err, errs.ErrEntityNotFound)
	assert.Empty(t, rec.actions)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MutationsTotal.WithLabelValues("item:update", "rejected")))
}

func TestPipeline_UnauditedResult(t *testing.T) {
	rec := &stubRecorder{}
	p, mock, inv, _ := setup(t, rec)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := p.Run(editorCtx(), rbac.CreateLocation, func(context.Context, *sql.Tx, *auth.User) (Result, error) {
		return Result{Paths: []string{"/racks"}}, nil
	})

	require.NoError(t, err)
	assert.Empty(t, rec.actions)
	assert.Equal(t, 1, inv.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}
