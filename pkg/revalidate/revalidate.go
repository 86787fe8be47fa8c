package revalidate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/rackbook/pkg/observability"
)

// Paths affected by inventory and user mutations.
const (
	PathHome       = "/"
	PathRacks      = "/racks"
	PathItems      = "/items"
	PathAdminUsers = "/admin/users"
)

// RackPath returns the view path of a single rack.
func RackPath(rackID string) string {
	return "/rack/" + rackID
}

// Invalidator tells renderers that cached views of paths are stale.
type Invalidator interface {
	Invalidate(ctx context.Context, paths ...string) error
}

// Noop discards every signal.
type Noop struct{}

// Invalidate does nothing.
func (Noop) Invalidate(context.Context, ...string) error { return nil }

// Message is the payload published for each invalidation.
type Message struct {
	Paths []string  `json:"paths"`
	At    time.Time `json:"at"`
}

// DefaultChannel is the Redis channel used when none is configured.
const DefaultChannel = "rackbook:revalidate"

// RedisPublisher publishes invalidations on a Redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher on channel, or DefaultChannel when empty.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Invalidate publishes one message listing the deduplicated paths.
func (p *RedisPublisher) Invalidate(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	payload, err := json.Marshal(Message{Paths: dedupe(paths), At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode invalidation: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Subscribe returns a subscription to the publisher's channel.
func (p *RedisPublisher) Subscribe(ctx context.Context) *redis.PubSub {
	return p.client.Subscribe(ctx, p.channel)
}

// Signal sends paths through inv. Failures are logged and counted, never
// returned.
func Signal(ctx context.Context, inv Invalidator, metrics *observability.Metrics, paths ...string) {
	if inv == nil {
		return
	}

	status := "ok"
	if err := inv.Invalidate(ctx, paths...); err != nil {
		status = "error"
		observability.FromContext(ctx).
			WithError(err).
			WithField("paths", paths).
			Warn("view invalidation failed")
	}

	if metrics != nil {
		metrics.InvalidationsTotal.WithLabelValues(status).Inc()
	}
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
