package breaker

import (
	"math"
	"time"
)

// Context is the central entity of the package: one per named circuit.
// It tracks state, the consecutive-failure count, and the timestamp the
// circuit opened at, and it accumulates events in an outbox for the
// enclosing Guard to drain after each scope. See spec §3 for the full
// invariant list; the important ones enforced here are:
//
//   - openedAt is non-nil iff state == StateOpen.
//   - failureCount <= threshold while state == StateClosed; reaching
//     threshold trips the circuit in the same call that reached it.
//   - failureCount is meaningless in StateHalfOpen: any failure reopens,
//     any success closes, regardless of count.
//
// Context is not safe for concurrent use without external
// synchronization: per spec §5, the in-memory repository's Contexts are
// mutated without internal locking — callers must not share a single
// breaker across goroutines without their own serialization (typical
// usage is one Context per name, entered sequentially by whichever
// goroutine currently holds the guard; concurrent callers race on the
// threshold check, which is an accepted, documented limitation).
type Context struct {
	Name      string
	Threshold int
	TTL       time.Duration

	state        State
	failureCount int
	openedAt     *time.Time

	excludeList Policy
	outbox      []Event

	now func() time.Time
}

// NewContext constructs a Context in the initial Closed state with a
// zero failure count and no opened-at timestamp, per spec §3 "Initial
// state."
func NewContext(name string, threshold int, ttl time.Duration) *Context {
	return &Context{
		Name:      name,
		Threshold: threshold,
		TTL:       ttl,
		state:     StateClosed,
		now:       time.Now,
	}
}

// State returns the circuit's current mode.
func (c *Context) State() State { return c.state }

// FailureCount returns the consecutive-failure count. Only meaningful
// while State() == StateClosed.
func (c *Context) FailureCount() int { return c.failureCount }

// OpenedAt returns the timestamp the circuit last opened, or nil if it
// has never opened or has since closed.
func (c *Context) OpenedAt() *time.Time { return c.openedAt }

// Outbox returns the events appended since the last call to
// DrainOutbox, without draining it.
func (c *Context) Outbox() []Event { return c.outbox }

// DrainOutbox returns and clears the pending events. The Guard calls
// this after Enter and again after HandleException/HandleEndRequest,
// and forwards every returned event through the Message Bus in order.
func (c *Context) DrainOutbox() []Event {
	if len(c.outbox) == 0 {
		return nil
	}
	events := c.outbox
	c.outbox = nil
	return events
}

func (c *Context) emit(ev Event) {
	c.outbox = append(c.outbox, ev)
}

// setState appends a ContextChanged event and updates state + openedAt
// together, preserving the "openedAt set iff state == StateOpen"
// invariant at every call site.
func (c *Context) setState(next State, openedAt *time.Time) {
	c.state = next
	c.openedAt = openedAt
	c.emit(ContextChanged{Name: c.Name, State: next, OpenedAt: openedAt})
}

// markFailure increments the failure count, saturating at math.MaxInt,
// and emits CircuitBreakerFailed with the new count.
func (c *Context) markFailure() {
	if c.failureCount < math.MaxInt {
		c.failureCount++
	}
	c.emit(CircuitBreakerFailed{Name: c.Name, FailureCount: c.failureCount})
}

// recoverFailure resets the failure count to zero and emits
// CircuitBreakerRecovered, per spec's Closed-state success transition
// ("failure_count > 0" case) and HalfOpen-state success transition.
func (c *Context) recoverFailure() {
	c.failureCount = 0
	c.emit(CircuitBreakerRecovered{Name: c.Name})
}

// Enter implements spec §4.1's enter() trigger. In Closed and
// HalfOpen it always succeeds. In Open it either refuses with a
// CircuitOpenError (ttl not yet elapsed) or transitions to HalfOpen and
// recurses, which — per the state table — "always succeeds."
func (c *Context) Enter() error {
	switch c.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		return nil
	case StateOpen:
		now := c.now()
		closedAt := c.openedAt.Add(c.TTL)
		if now.Before(closedAt) || now.Equal(closedAt) {
			return &CircuitOpenError{Name: c.Name}
		}
		c.setState(StateHalfOpen, nil)
		return c.Enter()
	default:
		return nil
	}
}

// HandleException implements spec §4.1's handle_exception(exc): an
// excluded exception is routed to HandleEndRequest (semantically a
// success for the breaker); any other exception is counted as a
// failure per the transition table.
func (c *Context) HandleException(err error) {
	if c.excludeList.IsExcluded(err) {
		c.HandleEndRequest()
		return
	}

	switch c.state {
	case StateClosed:
		c.markFailure()
		if c.failureCount >= c.Threshold {
			now := c.now()
			c.setState(StateOpen, &now)
		}
	case StateHalfOpen:
		now := c.now()
		c.setState(StateOpen, &now)
	case StateOpen:
		// Enter() would have refused before the guarded call ran; a
		// failure can only reach here if the caller invoked the scope
		// without first calling Enter, which is a misuse of the Guard.
	}
}

// HandleEndRequest implements spec §4.1's handle_end_request(): a
// successful scope. In Closed it clears a nonzero failure streak and
// emits CircuitBreakerRecovered, or does nothing if the streak was
// already zero. In HalfOpen it closes the circuit and emits both
// CircuitBreakerRecovered and ContextChanged, per the transition table.
func (c *Context) HandleEndRequest() {
	switch c.state {
	case StateClosed:
		if c.failureCount > 0 {
			c.recoverFailure()
		}
	case StateHalfOpen:
		c.recoverFailure()
		c.setState(StateClosed, nil)
	case StateOpen:
		// Unreachable in normal use; see HandleException.
	}
}

// SetExcludeList overlays a per-call exclude policy on top of the
// factory's global one, per spec §4.6 step 3. It must be called before
// Enter/HandleException for the overlay to take effect on this scope.
func (c *Context) SetExcludeList(p Policy) {
	c.excludeList = p
}

// WithClock overrides the time source used for ttl comparisons; it
// exists for deterministic tests and is not part of the public API.
func (c *Context) WithClock(now func() time.Time) {
	c.now = now
}

// Snapshot captures the fields that round-trip to the remote store (see
// spec §6's persisted state layout).
type Snapshot struct {
	Name      string     `json:"name"`
	State     string     `json:"state"`
	OpenedAt  *time.Time `json:"opened_at"`
	Threshold int        `json:"threshold"`
	TTL       float64    `json:"ttl"`
}

// Snapshot returns the document form of this Context, matching the
// `cbr::{name}` JSON shape from spec §6.
func (c *Context) Snapshot() Snapshot {
	return Snapshot{
		Name:      c.Name,
		State:     c.state.String(),
		OpenedAt:  c.openedAt,
		Threshold: c.Threshold,
		TTL:       c.TTL.Seconds(),
	}
}
