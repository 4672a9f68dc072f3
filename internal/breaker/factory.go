package breaker

import (
	"context"
	"sync"
	"time"
)

// Hook receives one of the four public event kinds for every circuit
// the Factory manages: circuit_breaker_created, state_changed, failed,
// recovered (spec §4.6).
type Hook func(circuitName string, kind EventKind, event Event)

// ListenerID identifies a registered Hook so it can be removed later.
// Spec's language-neutral API describes remove_listener(hook) taking
// the same callable back; Go function values aren't comparable, so
// AddListener instead returns an opaque ID, which RemoveListener
// consumes. This is documented as a deliberate Go-idiom deviation in
// DESIGN.md, not a change in capability.
type ListenerID int

// Factory owns the Bus, the UnitOfWork, and the defaults new circuits
// are minted with (spec §4.6). One Factory per application component
// that needs its own set of circuits and listeners; there is no
// process-wide registry (spec §9's "Factory-owned singleton
// repository" redesign note).
type Factory struct {
	defaultThreshold int
	defaultTTL       time.Duration
	globalExclude    Policy
	uow              UnitOfWork
	bus              *Bus

	mu        sync.Mutex
	listeners map[ListenerID]Hook
	nextID    ListenerID

	log logger
}

// logger is the minimal surface Factory needs from internal/obslog's
// Logger, kept here to avoid an import cycle between breaker and
// obslog (obslog has no dependency on breaker, but declaring the
// narrowest interface locally keeps this package importable without
// zap as a hard dependency for callers who never configure a logger).
type logger interface {
	Warnw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Warnw(string, ...any) {}
func (noopLogger) Infow(string, ...any) {}

// Option configures a Factory at construction time.
type Option func(*Factory)

// WithDefaultThreshold sets the threshold new circuits get when the
// caller doesn't supply one explicitly.
func WithDefaultThreshold(n int) Option {
	return func(f *Factory) { f.defaultThreshold = n }
}

// WithDefaultTTL sets the ttl new circuits get when the caller doesn't
// supply one explicitly.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(f *Factory) { f.defaultTTL = ttl }
}

// WithGlobalExclude sets the exclusion rules applied to every circuit
// in addition to any per-call rules (spec §4.2 composition order: per
// call rules first, then global).
func WithGlobalExclude(rules ...ExcludeRule) Option {
	return func(f *Factory) { f.globalExclude = rules }
}

// WithUnitOfWork overrides the default in-memory UnitOfWork, e.g. with
// a RedisUnitOfWork for cross-process state.
func WithUnitOfWork(uow UnitOfWork) Option {
	return func(f *Factory) { f.uow = uow }
}

// WithLogger attaches a structured logger (see internal/obslog). It
// receives a warning for every listener hook panic (the panic is
// recovered, so it never interrupts the guarded call) and an info line
// for every message the Bus dispatches. Repository errors are returned
// to the caller, not logged.
func WithLogger(l logger) Option {
	return func(f *Factory) {
		if l != nil {
			f.log = l
		}
	}
}

// NewFactory constructs a Factory with its internal command/event
// handlers wired (spec §4.6): CreateCircuitBreaker registers a new
// Context and emits CircuitBreakerCreated; ContextChanged persists via
// UpdateState; CircuitBreakerFailed persists via IncFailures;
// CircuitBreakerRecovered persists via ResetFailure. Every one of
// those four event types also fans out to registered listeners.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		defaultThreshold: 5,
		defaultTTL:       30 * time.Second,
		uow:              NewInMemoryUnitOfWork(),
		bus:              NewBus(),
		listeners:        make(map[ListenerID]Hook),
		log:              noopLogger{},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.bus.log = f.log

	// RegisterCommand can only fail on double-registration, which can't
	// happen for a freshly constructed Bus.
	_ = f.bus.RegisterCommand(CreateCircuitBreaker{}, f.handleCreateCircuitBreaker)

	f.bus.AddEventHandler(CircuitBreakerCreated{}, f.notifyCreated)
	f.bus.AddEventHandler(ContextChanged{}, f.handleContextChanged)
	f.bus.AddEventHandler(ContextChanged{}, f.notifyStateChanged)
	f.bus.AddEventHandler(CircuitBreakerFailed{}, f.handleFailed)
	f.bus.AddEventHandler(CircuitBreakerFailed{}, f.notifyFailed)
	f.bus.AddEventHandler(CircuitBreakerRecovered{}, f.handleRecovered)
	f.bus.AddEventHandler(CircuitBreakerRecovered{}, f.notifyRecovered)

	return f
}

func (f *Factory) handleCreateCircuitBreaker(ctx context.Context, cmd Command, uow UnitOfWork) (any, error) {
	c := cmd.(CreateCircuitBreaker)
	ctxObj := NewContext(c.Name, c.Threshold, c.TTL)
	if err := uow.Repository().Register(ctx, ctxObj); err != nil {
		return nil, err
	}
	uow.Enqueue(CircuitBreakerCreated{Name: c.Name, Threshold: c.Threshold, TTL: c.TTL})

	// Register is an idempotent upsert: on a race between two callers
	// creating the same name for the first time, the loser's ctxObj is
	// discarded in favor of whichever instance the repository already
	// held. Re-fetch so the handler's result — and therefore the Guard
	// Factory.GetBreaker builds from it — always wraps the one
	// canonical Context the repository actually stores, never an
	// orphan.
	stored, err := uow.Repository().Get(ctx, c.Name)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (f *Factory) handleContextChanged(ctx context.Context, ev Event, uow UnitOfWork) error {
	e := ev.(ContextChanged)
	return uow.Repository().UpdateState(ctx, e.Name, e.State, e.OpenedAt)
}

func (f *Factory) handleFailed(ctx context.Context, ev Event, uow UnitOfWork) error {
	e := ev.(CircuitBreakerFailed)
	return uow.Repository().IncFailures(ctx, e.Name, e.FailureCount)
}

func (f *Factory) handleRecovered(ctx context.Context, ev Event, uow UnitOfWork) error {
	e := ev.(CircuitBreakerRecovered)
	return uow.Repository().ResetFailure(ctx, e.Name)
}

func (f *Factory) notifyCreated(_ context.Context, ev Event, _ UnitOfWork) error {
	e := ev.(CircuitBreakerCreated)
	f.notify(e.Name, EventCircuitBreakerCreated, ev)
	return nil
}

func (f *Factory) notifyStateChanged(_ context.Context, ev Event, _ UnitOfWork) error {
	e := ev.(ContextChanged)
	f.notify(e.Name, EventStateChanged, ev)
	return nil
}

func (f *Factory) notifyFailed(_ context.Context, ev Event, _ UnitOfWork) error {
	e := ev.(CircuitBreakerFailed)
	f.notify(e.Name, EventFailed, ev)
	return nil
}

func (f *Factory) notifyRecovered(_ context.Context, ev Event, _ UnitOfWork) error {
	e := ev.(CircuitBreakerRecovered)
	f.notify(e.Name, EventRecovered, ev)
	return nil
}

// notify invokes every registered hook, recovering from and logging any
// panic so that a single broken listener can't take down the guarded
// call — the same posture the teacher's safeCallOnStateChange takes
// toward user callbacks.
func (f *Factory) notify(name string, kind EventKind, ev Event) {
	f.mu.Lock()
	hooks := make([]Hook, 0, len(f.listeners))
	for _, h := range f.listeners {
		hooks = append(hooks, h)
	}
	f.mu.Unlock()

	for _, hook := range hooks {
		f.safeCall(name, kind, hook, ev)
	}
}

func (f *Factory) safeCall(name string, kind EventKind, hook Hook, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Warnw("circuitbus: listener panicked",
				"circuit", name, "event_kind", kind, "panic", r)
		}
	}()
	hook(name, kind, ev)
}

// AddListener registers hook for all four public event kinds across
// every circuit this Factory manages, and returns an ID for later
// removal.
func (f *Factory) AddListener(hook Hook) ListenerID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = hook
	return id
}

// RemoveListener unregisters a hook previously returned by AddListener.
// Removing an ID that isn't registered is a ConfigurationError (spec
// §4.6).
func (f *Factory) RemoveListener(id ListenerID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.listeners[id]; !ok {
		return &ConfigurationError{Msg: "listener has not been registered"}
	}
	delete(f.listeners, id)
	return nil
}

// GetBreakerOption configures a single GetBreaker call.
type GetBreakerOption func(*getBreakerOptions)

type getBreakerOptions struct {
	threshold *int
	ttl       *time.Duration
	exclude   Policy
}

// WithThreshold overrides the factory default threshold for a single
// circuit, only used the first time that circuit name is created.
func WithThreshold(n int) GetBreakerOption {
	return func(o *getBreakerOptions) { o.threshold = &n }
}

// WithTTL overrides the factory default ttl for a single circuit, only
// used the first time that circuit name is created.
func WithTTL(ttl time.Duration) GetBreakerOption {
	return func(o *getBreakerOptions) { o.ttl = &ttl }
}

// WithExclude supplies per-call exclusion rules, composed ahead of the
// factory's global rules (spec §4.2).
func WithExclude(rules ...ExcludeRule) GetBreakerOption {
	return func(o *getBreakerOptions) { o.exclude = rules }
}

// GetBreaker returns a Guard for name, creating and persisting a new
// Context the first time name is seen (spec §4.6):
//
//  1. Read the Context through the UnitOfWork.
//  2. If absent, dispatch CreateCircuitBreaker through the Bus; the
//     resulting Context is returned.
//  3. Overlay exclude ++ globalExclude onto the Context's exclude list
//     for this call only.
func (f *Factory) GetBreaker(ctx context.Context, name string, opts ...GetBreakerOption) (*Guard, error) {
	var o getBreakerOptions
	for _, opt := range opts {
		opt(&o)
	}

	repo := f.uow.Repository()
	circuit, err := repo.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if circuit == nil {
		threshold := f.defaultThreshold
		if o.threshold != nil {
			threshold = *o.threshold
		}
		ttl := f.defaultTTL
		if o.ttl != nil {
			ttl = *o.ttl
		}

		result, err := f.bus.Handle(ctx, CreateCircuitBreaker{Name: name, Threshold: threshold, TTL: ttl}, f.uow)
		if err != nil {
			return nil, err
		}
		circuit = result.(*Context)
	}

	circuit.SetExcludeList(compose(o.exclude, f.globalExclude))

	return &Guard{circuit: circuit, bus: f.bus, uow: f.uow}, nil
}

// CircuitInfo is a read-only view of a circuit's current state, used
// for introspection (metrics, diagnostics, tests) without mutating
// anything — see SPEC_FULL.md §7. It is distinct from the Context's
// own Snapshot, which is the wire document persisted to the remote
// store (spec §6); this type carries the State and TTL as their native
// Go types rather than the store's string/float64 encoding.
type CircuitInfo struct {
	Name         string
	State        State
	FailureCount int
	OpenedAt     *time.Time
	Threshold    int
	TTL          time.Duration
}

// Inspect reads the current state of a named circuit without side
// effects. It returns (CircuitInfo{}, false, nil) if the circuit
// doesn't exist yet.
func (f *Factory) Inspect(ctx context.Context, name string) (CircuitInfo, bool, error) {
	circuit, err := f.uow.Repository().Get(ctx, name)
	if err != nil {
		return CircuitInfo{}, false, err
	}
	if circuit == nil {
		return CircuitInfo{}, false, nil
	}
	return CircuitInfo{
		Name:         circuit.Name,
		State:        circuit.State(),
		FailureCount: circuit.FailureCount(),
		OpenedAt:     circuit.OpenedAt(),
		Threshold:    circuit.Threshold,
		TTL:          circuit.TTL,
	}, true, nil
}
