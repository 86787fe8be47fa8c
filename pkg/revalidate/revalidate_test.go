package revalidate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rackbook/pkg/observability"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisPublisher_Invalidate(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	pub := NewRedisPublisher(client, "")

	sub := pub.Subscribe(ctx)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, pub.Invalidate(ctx, PathRacks, RackPath("r1"), PathRacks, PathHome))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, DefaultChannel, msg.Channel)
		var decoded Message
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &decoded))
		assert.Equal(t, []string{"/", "/rack/r1", "/racks"}, decoded.Paths)
	case <-time.After(2 * time.Second):
		t.Fatal("no invalidation received")
	}
}

func TestRedisPublisher_NoPaths(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()
	assert.NoError(t, NewRedisPublisher(client, "x").Invalidate(context.Background()))
}

func TestRedisPublisher_ServerDown(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()
	assert.Error(t, NewRedisPublisher(client, "x").Invalidate(context.Background(), PathItems))
}

type failingInvalidator struct{ calls int }

func (f *failingInvalidator) Invalidate(context.Context, ...string) error {
	f.calls++
	return errors.New("renderer unreachable")
}

func TestSignal(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	ctx := observability.WithLogger(context.Background(), observability.NewNopLogger())

	inv := &failingInvalidator{}
	Signal(ctx, inv, metrics, PathItems)
	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.InvalidationsTotal.WithLabelValues("error")))

	Signal(ctx, Noop{}, metrics, PathItems)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.InvalidationsTotal.WithLabelValues("ok")))

	assert.NotPanics(t, func() { Signal(ctx, nil, nil, PathHome) })
}
