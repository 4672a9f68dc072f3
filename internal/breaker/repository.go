package breaker

import (
	"context"
	"sync"
	"time"
)

// Repository persists and retrieves Contexts. Spec §4.3 defines two
// implementations — InMemoryRepository and a remote key-value store
// (RedisRepository, in redis_repository.go) — sharing this capability
// set. Every method takes a context.Context for the remote backend's
// sake; the in-memory backend ignores it (its operations never
// suspend, per spec §5's "suspension points" list).
type Repository interface {
	// Get returns the Context for name, or (nil, nil) if it doesn't
	// exist.
	Get(ctx context.Context, name string) (*Context, error)

	// Register is an idempotent upsert: registering an already-known
	// Context must not alter its counter or state (spec §8
	// idempotence property).
	Register(ctx context.Context, c *Context) error

	// UpdateState persists a state transition. For InMemoryRepository
	// this is a no-op: the Context returned by Get is the same
	// instance stored, so the mutation already happened in place.
	UpdateState(ctx context.Context, name string, state State, openedAt *time.Time) error

	// IncFailures records a failure count. newCount is advisory (spec
	// §9 Open Questions): the remote backend performs its own atomic
	// increment and the argument is ignored; InMemoryRepository's
	// Context already holds the true count and this is a no-op too.
	IncFailures(ctx context.Context, name string, newCount int) error

	// ResetFailure zeroes the failure counter.
	ResetFailure(ctx context.Context, name string) error

	// Initialize opens the backing resource (connection, schema, ...).
	// InMemoryRepository's Initialize is a no-op.
	Initialize(ctx context.Context) error
}

// InMemoryRepository is a map from circuit name to Context, by
// exclusive ownership. Per spec §4.3, "the Context returned is the same
// instance stored" — callers observe each other's mutations immediately,
// with no cloning on read. The map itself is guarded by a mutex so that
// concurrent Factory.GetBreaker calls for different names don't race on
// the underlying map; the Contexts themselves are not internally locked
// (spec §5 shared-resource policy).
type InMemoryRepository struct {
	mu       sync.RWMutex
	breakers map[string]*Context
}

// NewInMemoryRepository constructs an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{breakers: make(map[string]*Context)}
}

func (r *InMemoryRepository) Get(_ context.Context, name string) (*Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[name], nil
}

func (r *InMemoryRepository) Register(_ context.Context, c *Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.breakers[c.Name]; exists {
		// Idempotent upsert: leave the existing, possibly-mutated
		// Context alone.
		return nil
	}
	r.breakers[c.Name] = c
	return nil
}

func (r *InMemoryRepository) UpdateState(context.Context, string, State, *time.Time) error {
	return nil
}

func (r *InMemoryRepository) IncFailures(context.Context, string, int) error {
	return nil
}

func (r *InMemoryRepository) ResetFailure(context.Context, string) error {
	return nil
}

func (r *InMemoryRepository) Initialize(context.Context) error {
	return nil
}
