package breaker

import "context"

// Guard is the scoped resource returned by Factory.GetBreaker: it wraps
// a single call to user code around the state machine, per spec §4.6.
// Guard is not safe for concurrent use across goroutines. With the
// in-memory repository, every Guard GetBreaker returns for a name wraps
// that name's one Context, so separate Guards for the same name are not
// safe to use concurrently either (see Context's concurrency note).
type Guard struct {
	circuit *Context
	bus     *Bus
	uow     UnitOfWork
}

// Enter implements the synchronous half of spec §8's "decorator"
// scenario: it asks the Context whether the call may proceed, and
// returns CircuitOpenError without running anything if not. Any events
// the Context accumulates (a ContextChanged to half-open, when the ttl
// of an open circuit has elapsed) are drained through the Bus before
// returning.
func (g *Guard) Enter(ctx context.Context) error {
	err := g.circuit.Enter()
	if drainErr := g.drain(ctx); drainErr != nil {
		return drainErr
	}
	return err
}

// Exit reports the outcome of the guarded call: err == nil is a
// success, anything else is a failure subject to the circuit's
// exclusion policy. It always drains and forwards whatever events the
// Context accumulated, even when err is itself returned unchanged, so
// a guarded failure's error value reaches the caller exactly as given.
func (g *Guard) Exit(ctx context.Context, err error) error {
	if err != nil {
		g.circuit.HandleException(err)
	} else {
		g.circuit.HandleEndRequest()
	}
	if drainErr := g.drain(ctx); drainErr != nil {
		return drainErr
	}
	return err
}

// Run is the convenience form of Enter/call/Exit: it refuses to run fn
// at all while the circuit is open, and otherwise reports fn's error
// (if any) back to the circuit before returning it unchanged.
func (g *Guard) Run(ctx context.Context, fn func() error) error {
	if err := g.Enter(ctx); err != nil {
		return err
	}
	return g.Exit(ctx, fn())
}

// State reports the circuit's mode as observed at the moment of the
// call, without entering or exiting a scope.
func (g *Guard) State() State { return g.circuit.State() }

// drain forwards every event the Context has accumulated through the
// Bus, in order, so the Factory's persistence and listener handlers
// observe them (spec §4.6: "the Guard drains the Context's outbox
// through the bus after every scope exit").
func (g *Guard) drain(ctx context.Context) error {
	for _, ev := range g.circuit.DrainOutbox() {
		if _, err := g.bus.Handle(ctx, ev, g.uow); err != nil {
			return err
		}
	}
	return nil
}
