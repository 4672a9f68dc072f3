package breaker

// State is the circuit breaker's current mode. It is a plain value type
// — the "State-pattern re-architecture" note in spec §9 replaces the
// Gang-of-Four mutual-reference state objects of the original with a
// tagged variant the owner (Context) holds by value. There is no
// back-pointer from State to Context: transitions are methods on
// *Context that set its state field and append any events to its
// outbox.
type State int

const (
	// StateClosed is the initial state: calls pass through, failures are
	// counted against threshold.
	StateClosed State = iota

	// StateOpen rejects every Enter with a CircuitOpenError until ttl has
	// elapsed since opening.
	StateOpen

	// StateHalfOpen admits exactly one probe: success closes the
	// circuit, failure reopens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "opened"
	case StateHalfOpen:
		return "half-opened"
	default:
		return "unknown"
	}
}
