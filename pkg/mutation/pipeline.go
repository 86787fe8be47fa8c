package mutation

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/rackbook/pkg/audit"
	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/database"
	"github.com/platinummonkey/rackbook/pkg/errs"
	"github.com/platinummonkey/rackbook/pkg/observability"
	"github.com/platinummonkey/rackbook/pkg/rbac"
	"github.com/platinummonkey/rackbook/pkg/revalidate"
)

// Result describes what a mutation changed. A zero Action means the
// operation is not audited.
type Result struct {
	Action audit.Action
	Target audit.Target
	Paths  []string
}

// Func performs a single-entity mutation inside tx on behalf of actor.
type Func func(ctx context.Context, tx *sql.Tx, actor *auth.User) (Result, error)

// Pipeline runs authorize, mutate and audit, then signals invalidation.
// Mutation and audit entry share one transaction.
type Pipeline struct {
	db          *sql.DB
	guard       *rbac.Guard
	recorder    audit.Recorder
	invalidator revalidate.Invalidator
	metrics     *observability.Metrics
}

// NewPipeline creates a pipeline. invalidator may be nil.
func NewPipeline(db *sql.DB, guard *rbac.Guard, recorder audit.Recorder, invalidator revalidate.Invalidator) *Pipeline {
	if invalidator == nil {
		invalidator = revalidate.Noop{}
	}
	return &Pipeline{
		db:          db,
		guard:       guard,
		recorder:    recorder,
		invalidator: invalidator,
	}
}

// WithMetrics records mutation outcomes and latency.
func (p *Pipeline) WithMetrics(m *observability.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// Guard returns the guard used for authorization.
func (p *Pipeline) Guard() *rbac.Guard {
	return p.guard
}

// DB returns the underlying database for read paths.
func (p *Pipeline) DB() *sql.DB {
	return p.db
}

// Run authorizes op and executes fn. Nothing is written when authorization
// fails, and a failed audit write rolls back the mutation.
func (p *Pipeline) Run(ctx context.Context, op rbac.Permission, fn Func) (err error) {
	ctx, span := observability.Tracer("rackbook/mutation").Start(ctx, op.String())
	defer span.End()

	start := time.Now()
	defer func() {
		p.observe(op, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	actor, err := p.guard.Authorize(ctx, op)
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.String("actor.id", actor.ID),
		attribute.String("actor.role", actor.Role.String()),
	)

	var result Result
	err = database.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		var err error
		result, err = fn(ctx, tx, actor)
		if err != nil {
			return err
		}
		if result.Action == "" {
			return nil
		}
		_, err = p.recorder.Record(ctx, tx, result.Action, actor, result.Target)
		return err
	})
	if err != nil {
		return err
	}

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"operation": op.String(),
		"action":    string(result.Action),
	}).Debug("mutation committed")

	revalidate.Signal(ctx, p.invalidator, p.metrics, result.Paths...)
	return nil
}

func (p *Pipeline) observe(op rbac.Permission, err error, elapsed time.Duration) {
	if p.metrics == nil {
		return
	}
	status := "ok"
	switch errs.Kind(err) {
	case nil:
		if err != nil {
			status = "error"
		}
	case errs.ErrAuthenticationRequired, errs.ErrInsufficientPermission, errs.ErrSelfModificationForbidden:
		status = "denied"
	default:
		status = "rejected"
	}
	p.metrics.MutationsTotal.WithLabelValues(op.String(), status).Inc()
	p.metrics.MutationDuration.WithLabelValues(op.String()).Observe(elapsed.Seconds())
}
