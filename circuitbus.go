// Package circuitbus provides a circuit breaker library built around a
// message bus: named circuits are minted by a Factory, guarded with a
// Guard, and every state transition is a typed Command or Event routed
// through an internal Bus to whatever Repository backs the circuit's
// persisted state.
//
// # Overview
//
// Unlike circuit breakers that track a rolling failure percentage,
// circuitbus counts consecutive failures against a fixed threshold —
// deliberately simple, in the spirit of the original purgatory-style
// breaker this package's architecture is modeled on. What circuitbus
// adds over a bare state machine is the event plumbing around it:
// every transition is observable, every circuit's state can live in a
// process-local map or a shared Redis-compatible store, and listener
// hooks see the same four event kinds regardless of which backend is
// in play.
//
// # Quick Start
//
// Create a factory and guard a call:
//
//	factory := circuitbus.NewFactory(
//		circuitbus.WithDefaultThreshold(5),
//		circuitbus.WithDefaultTTL(30*time.Second),
//	)
//
//	guard, err := factory.GetBreaker(ctx, "payments-api")
//	if err != nil {
//		return err
//	}
//	err = guard.Run(ctx, func() error {
//		return paymentsClient.Charge(ctx, amount)
//	})
//	var open *circuitbus.CircuitOpenError
//	if errors.As(err, &open) {
//		// upstream refused; the call never ran
//	}
//
// # Circuit States
//
// A circuit is in exactly one of three states at a time:
//
//   - Closed: calls pass through; consecutive non-excluded failures
//     accumulate against Threshold.
//   - Open: calls are refused immediately with CircuitOpenError until
//     TTL has elapsed since the circuit opened.
//   - HalfOpen: exactly one probe call is admitted; success closes the
//     circuit, failure reopens it.
//
// # Exclusion Policies
//
// Some errors shouldn't count as failures at all — a well-formed 404
// from a REST client, for instance. ByType and ByTypeAndPredicate build
// rules evaluated in order, first type match wins:
//
//	factory.GetBreaker(ctx, "payments-api",
//		circuitbus.WithExclude(
//			circuitbus.ByType[*NotFoundError](),
//			circuitbus.ByTypeAndPredicate(func(e *RateLimitError) bool {
//				return e.RetryAfter < time.Second
//			}),
//		),
//	)
//
// # Observability
//
// Register a listener to observe every circuit a Factory manages:
//
//	id := factory.AddListener(func(name string, kind circuitbus.EventKind, ev circuitbus.Event) {
//		log.Printf("circuit %s: %s", name, kind)
//	})
//	defer factory.RemoveListener(id)
//
// The internal/metrics package provides a Prometheus adapter that
// plugs into this same hook. The internal/obslog package provides a
// zap-backed logger, which is passed to WithLogger rather than
// registered as a hook.
//
// # Persistence
//
// The default Factory keeps circuits in an in-memory map, scoped to
// the process. WithUnitOfWork(circuitbus.NewRedisUnitOfWork(repo))
// instead persists every circuit's document and failure counter in a
// Redis-compatible store, so multiple processes observe the same
// circuit.
//
// # Thread Safety
//
// Factory and Bus are safe for concurrent use. A single Context (and
// therefore a single Guard) is not: callers must not drive one circuit
// from multiple goroutines without their own serialization, matching
// the in-memory repository's unlocked Context mutation.
package circuitbus

import (
	"github.com/1mb-dev/circuitbus/internal/breaker"
)

// Core domain types, re-exported without wrapper functions so that
// type assertions and struct literals against the internal package
// still work against the facade.
type (
	// Context is a single named circuit's state machine.
	Context = breaker.Context

	// State is a circuit's current mode: closed, open, or half-open.
	State = breaker.State

	// Factory mints and owns circuits, their bus, and their backing
	// UnitOfWork.
	Factory = breaker.Factory

	// Guard wraps one call to user code around a Context.
	Guard = breaker.Guard

	// Snapshot is the document form of a Context persisted to a remote
	// store.
	Snapshot = breaker.Snapshot

	// CircuitInfo is a read-only view of a circuit's current state.
	CircuitInfo = breaker.CircuitInfo

	// Command is a request to change the system, dispatched through a
	// Bus to exactly one handler.
	Command = breaker.Command

	// Event is a fact about something that already happened, fanned out
	// to every registered handler.
	Event = breaker.Event

	// Message is the union of Command and Event.
	Message = breaker.Message

	// EventKind is the stable string tag passed to listener hooks.
	EventKind = breaker.EventKind

	// Hook observes every event a Factory's circuits emit.
	Hook = breaker.Hook

	// ListenerID identifies a registered Hook for later removal.
	ListenerID = breaker.ListenerID

	// ExcludeRule classifies one error type as excluded or not.
	ExcludeRule = breaker.ExcludeRule

	// Policy is an ordered, first-match-wins sequence of ExcludeRules.
	Policy = breaker.Policy

	// Bus routes commands to one handler and fans events out to many.
	Bus = breaker.Bus

	// Repository persists and retrieves Contexts.
	Repository = breaker.Repository

	// InMemoryRepository is the process-local Repository implementation.
	InMemoryRepository = breaker.InMemoryRepository

	// RedisRepository persists Contexts in a Redis-compatible store.
	RedisRepository = breaker.RedisRepository

	// RedisClient is the subset of *redis.Client RedisRepository needs.
	RedisClient = breaker.RedisClient

	// UnitOfWork scopes a consistent Repository view with commit/rollback.
	UnitOfWork = breaker.UnitOfWork

	// InMemoryUnitOfWork pairs an InMemoryRepository with a no-op
	// commit/rollback.
	InMemoryUnitOfWork = breaker.InMemoryUnitOfWork

	// RedisUnitOfWork pairs a RedisRepository with a no-op commit/rollback.
	RedisUnitOfWork = breaker.RedisUnitOfWork

	// CreateCircuitBreaker is the command that mints a new named circuit.
	CreateCircuitBreaker = breaker.CreateCircuitBreaker

	// CircuitBreakerCreated is emitted once, when a circuit is first
	// registered.
	CircuitBreakerCreated = breaker.CircuitBreakerCreated

	// ContextChanged is emitted on every state transition.
	ContextChanged = breaker.ContextChanged

	// CircuitBreakerFailed is emitted on every non-excluded failure.
	CircuitBreakerFailed = breaker.CircuitBreakerFailed

	// CircuitBreakerRecovered is emitted when a failure streak resets to
	// zero.
	CircuitBreakerRecovered = breaker.CircuitBreakerRecovered

	// CircuitOpenError is returned when a circuit refuses entry.
	CircuitOpenError = breaker.CircuitOpenError

	// ConfigurationError reports a programmer error wiring the bus or
	// the factory's listener registry.
	ConfigurationError = breaker.ConfigurationError

	// InvalidMessageError indicates the bus was asked to dispatch a
	// value that is neither a Command nor an Event.
	InvalidMessageError = breaker.InvalidMessageError

	// Option configures a Factory at construction time.
	Option = breaker.Option

	// GetBreakerOption configures a single Factory.GetBreaker call.
	GetBreakerOption = breaker.GetBreakerOption

	// CommandHandler handles exactly one Command type on a Bus.
	CommandHandler = breaker.CommandHandler

	// EventHandler reacts to one Event type on a Bus.
	EventHandler = breaker.EventHandler
)

// Circuit states.
const (
	StateClosed   = breaker.StateClosed
	StateOpen     = breaker.StateOpen
	StateHalfOpen = breaker.StateHalfOpen
)

// Public event kinds, passed to every registered Hook.
const (
	EventCircuitBreakerCreated = breaker.EventCircuitBreakerCreated
	EventStateChanged          = breaker.EventStateChanged
	EventFailed                = breaker.EventFailed
	EventRecovered             = breaker.EventRecovered
)

// Constructors and functional options, re-exported as vars per the
// alias-facade pattern so the internal package stays the single source
// of truth.
var (
	NewFactory            = breaker.NewFactory
	NewContext            = breaker.NewContext
	NewBus                = breaker.NewBus
	NewInMemoryRepository = breaker.NewInMemoryRepository
	NewRedisRepository    = breaker.NewRedisRepository
	NewInMemoryUnitOfWork = breaker.NewInMemoryUnitOfWork
	NewRedisUnitOfWork    = breaker.NewRedisUnitOfWork
	WithDefaultThreshold  = breaker.WithDefaultThreshold
	WithDefaultTTL        = breaker.WithDefaultTTL
	WithGlobalExclude     = breaker.WithGlobalExclude
	WithUnitOfWork        = breaker.WithUnitOfWork
	WithLogger            = breaker.WithLogger
	WithThreshold         = breaker.WithThreshold
	WithTTL               = breaker.WithTTL
	WithExclude           = breaker.WithExclude
)

// ByType and ByTypeAndPredicate can't be re-exported as plain vars like
// the rest of this file's aliases: Go doesn't support partially-applied
// generic function values, so a var alias would freeze T at whatever
// type it was assigned with. These thin wrappers keep the type
// parameter open for callers, e.g. circuitbus.ByType[*MyError]().
func ByType[T error]() ExcludeRule {
	return breaker.ByType[T]()
}

func ByTypeAndPredicate[T error](pred func(T) bool) ExcludeRule {
	return breaker.ByTypeAndPredicate[T](pred)
}
