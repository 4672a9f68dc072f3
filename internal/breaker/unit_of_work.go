package breaker

import (
	"context"
	"sync"
)

// UnitOfWork scopes a consistent Repository view with a commit/rollback
// lifecycle (spec §4.4). Both backends in this package make commit and
// rollback no-ops: the in-memory repository mutates Contexts in place
// (nothing to commit), and every Redis operation is already atomic on
// its own (GET/SET/INCR), so there is no multi-step transaction to roll
// back. The interface still exists so a future backend (e.g. an actual
// SQL store) has somewhere to put real transactional semantics without
// changing Bus or Factory.
//
// CollectNewEvents/Enqueue give message handlers a place to publish
// further events mid-dispatch ("handlers ... may themselves enqueue
// more messages via the repository outbox", spec §4.5); the Bus drains
// this queue after every handler invocation and appends whatever it
// finds to the tail of its own work queue.
type UnitOfWork interface {
	Repository() Repository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Enqueue(ev Event)
	CollectNewEvents() []Event
}

type pending struct {
	mu     sync.Mutex
	events []Event
}

func (p *pending) Enqueue(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *pending) CollectNewEvents() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	events := p.events
	p.events = nil
	return events
}

// InMemoryUnitOfWork pairs an InMemoryRepository with the no-op
// commit/rollback described above.
type InMemoryUnitOfWork struct {
	repo *InMemoryRepository
	pending
}

// NewInMemoryUnitOfWork constructs a UnitOfWork backed by a fresh
// InMemoryRepository.
func NewInMemoryUnitOfWork() *InMemoryUnitOfWork {
	return &InMemoryUnitOfWork{repo: NewInMemoryRepository()}
}

func (u *InMemoryUnitOfWork) Repository() Repository        { return u.repo }
func (u *InMemoryUnitOfWork) Commit(context.Context) error   { return nil }
func (u *InMemoryUnitOfWork) Rollback(context.Context) error { return nil }

// RedisUnitOfWork pairs a RedisRepository with the no-op
// commit/rollback described above.
type RedisUnitOfWork struct {
	repo *RedisRepository
	pending
}

// NewRedisUnitOfWork constructs a UnitOfWork backed by an existing
// RedisRepository.
func NewRedisUnitOfWork(repo *RedisRepository) *RedisUnitOfWork {
	return &RedisUnitOfWork{repo: repo}
}

func (u *RedisUnitOfWork) Repository() Repository        { return u.repo }
func (u *RedisUnitOfWork) Commit(context.Context) error   { return nil }
func (u *RedisUnitOfWork) Rollback(context.Context) error { return nil }
