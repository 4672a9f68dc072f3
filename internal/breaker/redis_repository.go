package breaker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client (github.com/redis/go-redis/v9)
// that RedisRepository needs. Grounded on sneha4175-gateway-pro's rate
// limiter, which drives the same client for a Lua-scripted sliding
// window; here the usage is plainer (GET/SET/INCR), matching spec §6's
// "any store offering these semantics is acceptable."
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisRepository persists Contexts in a Redis-compatible store using
// two keys per circuit, per spec §4.3/§6:
//
//	cbr::{name}                -> JSON document {name, state, opened_at, threshold, ttl}
//	cbr::{name}::failure_count -> integer counter
//
// Writes are last-writer-wins on the document and atomic-increment on
// the counter. Each client process still keeps its own Context instance
// (returned by Get) as its working cache; the store is the
// synchronization point across processes (spec §5).
type RedisRepository struct {
	client RedisClient
}

// NewRedisRepository wraps an existing Redis client. The caller is
// responsible for calling Initialize before first use (a ping, in the
// default implementation) and for the client's lifecycle otherwise.
func NewRedisRepository(client RedisClient) *RedisRepository {
	return &RedisRepository{client: client}
}

func documentKey(name string) string { return "cbr::" + name }
func counterKey(name string) string  { return "cbr::" + name + "::failure_count" }

func (r *RedisRepository) Initialize(ctx context.Context) error {
	if pinger, ok := r.client.(interface {
		Ping(context.Context) *redis.StatusCmd
	}); ok {
		return pinger.Ping(ctx).Err()
	}
	return nil
}

// Get reads both keys for name. A missing document returns (nil, nil)
// per spec §4.3; a missing counter is treated as 0.
func (r *RedisRepository) Get(ctx context.Context, name string) (*Context, error) {
	raw, err := r.client.Get(ctx, documentKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc Snapshot
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	count, err := r.client.Get(ctx, counterKey(name)).Int()
	if errors.Is(err, redis.Nil) {
		count = 0
	} else if err != nil {
		return nil, err
	}

	c := NewContext(doc.Name, doc.Threshold, time.Duration(doc.TTL*float64(time.Second)))
	c.state = stateFromString(doc.State)
	c.openedAt = doc.OpenedAt
	c.failureCount = count
	return c, nil
}

func stateFromString(s string) State {
	switch s {
	case "opened":
		return StateOpen
	case "half-opened":
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Register writes the document if (and only if) it doesn't already
// exist, matching the in-memory backend's idempotent-upsert semantics
// (spec §8: register of an already-known context must not alter its
// counter or state).
func (r *RedisRepository) Register(ctx context.Context, c *Context) error {
	existing, err := r.client.Get(ctx, documentKey(c.Name)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if existing != "" {
		return nil
	}

	doc, err := json.Marshal(c.Snapshot())
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, documentKey(c.Name), doc, 0).Err(); err != nil {
		return err
	}
	return r.client.Set(ctx, counterKey(c.Name), c.failureCount, 0).Err()
}

// UpdateState overwrites the document with the new state, last-writer-wins.
func (r *RedisRepository) UpdateState(ctx context.Context, name string, state State, openedAt *time.Time) error {
	existing, err := r.client.Get(ctx, documentKey(name)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	var doc Snapshot
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &doc); err != nil {
			return err
		}
	}
	doc.Name = name
	doc.State = state.String()
	doc.OpenedAt = openedAt

	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, documentKey(name), raw, 0).Err()
}

// IncFailures ignores newCount (spec §9 Open Questions) and issues an
// atomic INCR: "this MUST be an atomic increment of a counter, not a
// write of the client-computed value" (spec §4.3).
func (r *RedisRepository) IncFailures(ctx context.Context, name string, _ int) error {
	return r.client.Incr(ctx, counterKey(name)).Err()
}

// ResetFailure zeroes the counter.
func (r *RedisRepository) ResetFailure(ctx context.Context, name string) error {
	return r.client.Set(ctx, counterKey(name), 0, 0).Err()
}
