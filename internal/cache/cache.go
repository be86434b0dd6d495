// Package cache layers a Redis read-through cache and pub/sub fan-out over
// the affect state store. The database stays the source of truth: cache
// failures are logged and absorbed, never surfaced to callers, so the
// service runs identically with Redis absent.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/halcyon-health/affect.report/internal/affect"
	"github.com/halcyon-health/affect.report/internal/monitoring"
)

// Pub/sub channels carrying JSON-encoded events for cross-process
// consumers (dashboards, notification bridges).
const (
	StateChannel = "affect:states"
	AlertChannel = "affect:alerts"
)

// DefaultTTL bounds staleness of cached latest states when invalidation
// messages are lost.
const DefaultTTL = 10 * time.Minute

var logf = monitoring.Prefixed("Cache")

// StateCache implements affect.StateStore around an inner store, keeping
// each participant's latest state in Redis and publishing every save.
type StateCache struct {
	inner  affect.StateStore
	client *redis.Client
	ttl    time.Duration
}

// New wraps inner with a cache backed by client. A zero ttl means
// DefaultTTL.
func New(inner affect.StateStore, client *redis.Client, ttl time.Duration) *StateCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &StateCache{inner: inner, client: client, ttl: ttl}
}

// NewClient builds a Redis client for addr with the library defaults.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: addr,
	})
}

// Ping verifies the Redis connection.
func (c *StateCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (c *StateCache) Close() error {
	return c.client.Close()
}

func latestKey(participantID string) string {
	return "affect:latest:" + participantID
}

// SaveAffectState persists via the inner store, then refreshes the cache
// and publishes the state. Redis failures after a successful inner save
// are logged and swallowed.
func (c *StateCache) SaveAffectState(ctx context.Context, state *affect.AffectState) error {
	if err := c.inner.SaveAffectState(ctx, state); err != nil {
		return err
	}

	payload, err := json.Marshal(state)
	if err != nil {
		logf("failed to marshal state for %s: %v", state.ParticipantID, err)
		return nil
	}

	if err := c.client.Set(ctx, latestKey(state.ParticipantID), payload, c.ttl).Err(); err != nil {
		logf("failed to cache latest state for %s: %v", state.ParticipantID, err)
	}
	if err := c.client.Publish(ctx, StateChannel, payload).Err(); err != nil {
		logf("failed to publish state for %s: %v", state.ParticipantID, err)
	}

	return nil
}

// LatestAffectState serves from the cache when possible, falling back to
// the inner store on a miss or Redis error and backfilling the key.
func (c *StateCache) LatestAffectState(ctx context.Context, participantID string) (*affect.AffectState, error) {
	val, err := c.client.Get(ctx, latestKey(participantID)).Result()
	if err == nil {
		var state affect.AffectState
		if jsonErr := json.Unmarshal([]byte(val), &state); jsonErr == nil {
			return &state, nil
		}
		logf("corrupt cached state for %s, rereading store", participantID)
	} else if err != redis.Nil {
		logf("read failed for %s: %v", participantID, err)
	}

	state, err := c.inner.LatestAffectState(ctx, participantID)
	if err != nil || state == nil {
		return state, err
	}

	if payload, jsonErr := json.Marshal(state); jsonErr == nil {
		if setErr := c.client.Set(ctx, latestKey(participantID), payload, c.ttl).Err(); setErr != nil {
			logf("backfill failed for %s: %v", participantID, setErr)
		}
	}

	return state, nil
}

// AffectHistory is served straight from the inner store; history queries
// are not cached.
func (c *StateCache) AffectHistory(ctx context.Context, participantID string, since, until time.Time, limit int) ([]affect.AffectState, error) {
	return c.inner.AffectHistory(ctx, participantID, since, until, limit)
}

// PublishAlert fans an alert out to subscribers. Publish failures are
// returned so the caller can log them against the rule.
func (c *StateCache) PublishAlert(ctx context.Context, alert *affect.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	if err := c.client.Publish(ctx, AlertChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	return nil
}

// Invalidate drops a participant's cached latest state. Called on baseline
// reset so stale inferences disappear with their baselines.
func (c *StateCache) Invalidate(ctx context.Context, participantID string) {
	if err := c.client.Del(ctx, latestKey(participantID)).Err(); err != nil {
		logf("invalidate failed for %s: %v", participantID, err)
	}
}
