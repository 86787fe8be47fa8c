package sso

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/database"
	"github.com/platinummonkey/rackbook/pkg/errs"
	"github.com/platinummonkey/rackbook/pkg/observability"
	"github.com/platinummonkey/rackbook/pkg/users"
)

func TestSessionManager_Lifecycle(t *testing.T) {
	db := database.NewTestDB(t)
	ctx := context.Background()

	user := &auth.User{AuthschID: "sub-1", Name: strPtr("Ada"), Role: auth.RoleEditor}
	require.NoError(t, users.NewStore().Insert(ctx, db, user))

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	sm := NewSessionManager(db, time.Hour).
		WithClock(func() time.Time { return now }).
		WithMetrics(metrics)

	token, session, err := sm.Create(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, len(token) > len(auth.SessionTokenPrefix))
	assert.NotEqual(t, token, session.TokenHash)
	assert.Equal(t, now.Add(time.Hour), session.ExpiresAt)

	got, _, err := sm.Lookup(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, auth.RoleEditor, got.Role)
	assert.Equal(t, "Ada", *got.Name)

	_, _, err = sm.Lookup(ctx, "garbage")
	assert.ErrorIs(t, err, errs.ErrAuthenticationRequired)
	_, _, err = sm.Lookup(ctx, auth.SessionTokenPrefix+"c29tZXRoaW5n")
	assert.ErrorIs(t, err, errs.ErrAuthenticationRequired)

	now = now.Add(2 * time.Hour)
	_, _, err = sm.Lookup(ctx, token)
	assert.ErrorIs(t, err, errs.ErrAuthenticationRequired)

	n, err := sm.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionsExpired))
}

func TestSessionManager_Delete(t *testing.T) {
	db := database.NewTestDB(t)
	ctx := context.Background()

	user := &auth.User{AuthschID: "sub-1", Role: auth.RoleViewer}
	require.NoError(t, users.NewStore().Insert(ctx, db, user))

	sm := NewSessionManager(db, 0)
	assert.Equal(t, DefaultSessionTTL, sm.TTL())

	token, _, err := sm.Create(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, sm.Delete(ctx, token))
	require.NoError(t, sm.Delete(ctx, token))

	_, _, err = sm.Lookup(ctx, token)
	assert.ErrorIs(t, err, errs.ErrAuthenticationRequired)
}
