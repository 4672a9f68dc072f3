package breaker

import "time"

// Command is a request to change the system: exactly one handler may be
// registered for a given Command type on a Bus. Registering a second
// handler for the same type is a ConfigurationError.
type Command interface {
	isMessage()
	isCommand()
}

// Event is a fact about something that already happened: any number of
// handlers may be registered for a given Event type, and they all run,
// in registration order.
type Event interface {
	isMessage()
	isEvent()
}

// Message is the union of Command and Event. The Bus only accepts values
// that satisfy one of these two interfaces; anything else is a bug and
// produces an InvalidMessageError.
type Message interface {
	isMessage()
}

type baseCommand struct{}

func (baseCommand) isMessage() {}
func (baseCommand) isCommand() {}

type baseEvent struct{}

func (baseEvent) isMessage() {}
func (baseEvent) isEvent()   {}

// CreateCircuitBreaker is the single command in this domain: "mint a new
// named circuit with these settings." Dispatched by Factory.GetBreaker
// the first time a name is requested.
type CreateCircuitBreaker struct {
	baseCommand
	Name      string
	Threshold int
	TTL       time.Duration
}

// CircuitBreakerCreated is emitted once, when a Context is registered for
// the first time. The CreateCircuitBreaker handler has already
// registered the new Context when this is emitted; the internal handler
// for this event only forwards it to user listeners, which see it as
// the "circuit_breaker_created" event kind.
type CircuitBreakerCreated struct {
	baseEvent
	Name      string
	Threshold int
	TTL       time.Duration
}

// ContextChanged is emitted on every state transition (closed/opened/
// half-opened). OpenedAt is non-nil only when State is StateOpen.
// User listeners see this as the "state_changed" event kind.
type ContextChanged struct {
	baseEvent
	Name     string
	State    State
	OpenedAt *time.Time
}

// CircuitBreakerFailed is emitted whenever a non-excluded failure is
// counted in the Closed state (whether or not it trips the circuit).
// User listeners see this as the "failed" event kind.
type CircuitBreakerFailed struct {
	baseEvent
	Name         string
	FailureCount int
}

// CircuitBreakerRecovered is emitted when the failure streak resets to
// zero: either a success in Closed state after prior failures, or a
// successful probe in HalfOpened state. User listeners see this as the
// "recovered" event kind.
type CircuitBreakerRecovered struct {
	baseEvent
	Name string
}

// EventKind is the stable string tag handed to Factory listener hooks,
// matching spec's four public event kinds. It exists so hooks can branch
// on a string without importing the concrete message types.
type EventKind string

const (
	EventCircuitBreakerCreated EventKind = "circuit_breaker_created"
	EventStateChanged          EventKind = "state_changed"
	EventFailed                EventKind = "failed"
	EventRecovered             EventKind = "recovered"
)

// kindOf maps a concrete Event to its public EventKind. Events outside
// this set (there are none today) are not forwarded to listeners.
func kindOf(ev Event) (EventKind, bool) {
	switch ev.(type) {
	case CircuitBreakerCreated:
		return EventCircuitBreakerCreated, true
	case ContextChanged:
		return EventStateChanged, true
	case CircuitBreakerFailed:
		return EventFailed, true
	case CircuitBreakerRecovered:
		return EventRecovered, true
	default:
		return "", false
	}
}
