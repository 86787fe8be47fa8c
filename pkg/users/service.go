package users

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/errs"
	"github.com/platinummonkey/rackbook/pkg/mutation"
	"github.com/platinummonkey/rackbook/pkg/observability"
	"github.com/platinummonkey/rackbook/pkg/rbac"
	"github.com/platinummonkey/rackbook/pkg/revalidate"
)

// Service is user administration. Every operation requires ADMIN, and an
// admin can neither change their own role nor delete their own account.
type Service struct {
	store    *Store
	pipeline *mutation.Pipeline
}

// NewService creates the user administration service
func NewService(store *Store, pipeline *mutation.Pipeline) *Service {
	return &Service{store: store, pipeline: pipeline}
}

// ListUsers returns every user, newest first, with audit entry counts.
func (s *Service) ListUsers(ctx context.Context) ([]*Summary, error) {
	if _, err := s.pipeline.Guard().Authorize(ctx, rbac.ListUsers); err != nil {
		return nil, err
	}
	return s.store.List(ctx, s.pipeline.DB())
}

// GetUser returns a single user.
func (s *Service) GetUser(ctx context.Context, id string) (*auth.User, error) {
	if _, err := s.pipeline.Guard().Authorize(ctx, rbac.ListUsers); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, s.pipeline.DB(), id)
}

// UpdateUserRole sets the role of another user.
func (s *Service) UpdateUserRole(ctx context.Context, id, role string) (*auth.User, error) {
	var user *auth.User
	err := s.pipeline.Run(ctx, rbac.UpdateUserRole, func(ctx context.Context, tx *sql.Tx, actor *auth.User) (mutation.Result, error) {
		if id == actor.ID {
			return mutation.Result{}, errors.Wrap(errs.ErrSelfModificationForbidden, "Cannot change your own role")
		}
		parsed, ok := auth.ParseRole(role)
		if !ok {
			return mutation.Result{}, errs.Invalid("unknown role %q", role)
		}

		if err := s.store.UpdateRole(ctx, tx, id, parsed); err != nil {
			return mutation.Result{}, err
		}
		var err error
		user, err = s.store.GetByID(ctx, tx, id)
		if err != nil {
			return mutation.Result{}, err
		}

		observability.FromContext(ctx).WithFields(map[string]interface{}{
			"target_user_id": id,
			"actor_id":       actor.ID,
			"role":           parsed.String(),
		}).Info("user role changed")
		return mutation.Result{Paths: []string{revalidate.PathAdminUsers}}, nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes another user's account.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.pipeline.Run(ctx, rbac.DeleteUser, func(ctx context.Context, tx *sql.Tx, actor *auth.User) (mutation.Result, error) {
		if id == actor.ID {
			return mutation.Result{}, errors.Wrap(errs.ErrSelfModificationForbidden, "Cannot delete your own account")
		}
		if err := s.store.Delete(ctx, tx, id); err != nil {
			return mutation.Result{}, err
		}

		observability.FromContext(ctx).WithFields(map[string]interface{}{
			"target_user_id": id,
			"actor_id":       actor.ID,
		}).Info("user deleted")
		return mutation.Result{Paths: []string{revalidate.PathAdminUsers}}, nil
	})
}
