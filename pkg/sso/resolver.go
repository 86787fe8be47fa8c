package sso

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/database"
	"github.com/platinummonkey/rackbook/pkg/errs"
	"github.com/platinummonkey/rackbook/pkg/observability"
	"github.com/platinummonkey/rackbook/pkg/users"
)

// DeriveRole computes the role a new user starts with. Executives of the
// privileged group become ADMIN, its members EDITOR, everyone else VIEWER.
func DeriveRole(profile *Profile, privilegedGroupID int64) auth.Role {
	if inGroup(profile.ExecutiveGroups, privilegedGroupID) {
		return auth.RoleAdmin
	}
	if inGroup(profile.MemberGroups, privilegedGroupID) {
		return auth.RoleEditor
	}
	return auth.RoleViewer
}

func inGroup(groups []Group, id int64) bool {
	for _, g := range groups {
		if g.ID == id {
			return true
		}
	}
	return false
}

// IdentityResolver turns a sign-in profile into a stored user. The role is
// derived only when the user is first registered; later sign-ins refresh
// name and email and never touch the role.
type IdentityResolver struct {
	db                *sql.DB
	users             *users.Store
	privilegedGroupID int64
	metrics           *observability.Metrics
}

// NewIdentityResolver creates a resolver keyed on privilegedGroupID.
func NewIdentityResolver(db *sql.DB, store *users.Store, privilegedGroupID int64) *IdentityResolver {
	return &IdentityResolver{db: db, users: store, privilegedGroupID: privilegedGroupID}
}

// WithMetrics counts sign-ins by outcome.
func (r *IdentityResolver) WithMetrics(m *observability.Metrics) *IdentityResolver {
	r.metrics = m
	return r
}

// Resolve registers or refreshes the user for profile.
func (r *IdentityResolver) Resolve(ctx context.Context, profile *Profile) (*auth.User, error) {
	if profile == nil || strings.TrimSpace(profile.Subject) == "" {
		r.count("rejected")
		return nil, errors.Wrap(errs.ErrAuthenticationRequired, "identity provider returned no subject")
	}

	user, outcome, err := r.resolve(ctx, profile)
	if errors.Is(err, errs.ErrValidation) {
		// A concurrent first sign-in for the same subject won the insert.
		user, outcome, err = r.resolve(ctx, profile)
	}
	if err != nil {
		return nil, err
	}

	r.count(outcome)
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"user_id": user.ID,
		"outcome": outcome,
		"role":    user.Role.String(),
	}).Info("user signed in")
	return user, nil
}

func (r *IdentityResolver) resolve(ctx context.Context, profile *Profile) (*auth.User, string, error) {
	var user *auth.User
	var outcome string
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		existing, err := r.users.GetByAuthschID(ctx, tx, profile.Subject)
		switch {
		case err == nil:
			outcome = "refreshed"
			user, err = r.RefreshExistingUserProfile(ctx, tx, existing, profile)
			return err
		case errors.Is(err, errs.ErrEntityNotFound):
			outcome = "registered"
			user, err = r.RegisterNewUser(ctx, tx, profile)
			return err
		default:
			return err
		}
	})
	return user, outcome, err
}

// RegisterNewUser inserts a user for a subject seen for the first time.
func (r *IdentityResolver) RegisterNewUser(ctx context.Context, q database.Querier, profile *Profile) (*auth.User, error) {
	user := &auth.User{
		AuthschID: profile.Subject,
		Name:      profile.Name,
		Email:     profile.Email,
		Role:      DeriveRole(profile, r.privilegedGroupID),
	}
	if err := r.users.Insert(ctx, q, user); err != nil {
		return nil, err
	}
	return user, nil
}

// RefreshExistingUserProfile updates name and email from profile. The stored
// role is returned unchanged.
func (r *IdentityResolver) RefreshExistingUserProfile(ctx context.Context, q database.Querier, user *auth.User, profile *Profile) (*auth.User, error) {
	if err := r.users.UpdateProfile(ctx, q, user.ID, profile.Name, profile.Email); err != nil {
		return nil, err
	}
	refreshed := *user
	refreshed.Name = profile.Name
	refreshed.Email = profile.Email
	return &refreshed, nil
}

func (r *IdentityResolver) count(outcome string) {
	if r.metrics != nil {
		r.metrics.SignInsTotal.WithLabelValues(outcome).Inc()
	}
}
