package breaker

import (
	"context"
	"reflect"

	"github.com/google/uuid"
)

// CommandHandler handles exactly one Command type and may return a
// value (the Bus surfaces it back to the caller of the initial
// dispatch).
type CommandHandler func(ctx context.Context, cmd Command, uow UnitOfWork) (any, error)

// EventHandler reacts to one Event type. Multiple handlers may be
// registered for the same Event type; they all run, in registration
// order.
type EventHandler func(ctx context.Context, ev Event, uow UnitOfWork) error

// Bus routes commands to a single handler and fans events out to every
// registered handler, per spec §4.5. It is keyed by reflect.Type of the
// message — the Go analogue of the Python original's `type(message)`
// registry, since Go has no runtime union-type dispatch of its own.
type Bus struct {
	commandHandlers map[reflect.Type]CommandHandler
	eventHandlers   map[reflect.Type][]EventHandler
	log             logger
}

// NewBus constructs an empty Bus with no handlers registered.
func NewBus() *Bus {
	return &Bus{
		commandHandlers: make(map[reflect.Type]CommandHandler),
		eventHandlers:   make(map[reflect.Type][]EventHandler),
		log:             noopLogger{},
	}
}

// RegisterCommand wires the single handler for a Command type,
// identified by a zero value of that type (e.g. CreateCircuitBreaker{}).
// Registering the same type twice is a ConfigurationError.
func (b *Bus) RegisterCommand(zero Command, handler CommandHandler) error {
	t := reflect.TypeOf(zero)
	if _, exists := b.commandHandlers[t]; exists {
		return &ConfigurationError{Msg: t.String() + " command has been registered twice"}
	}
	b.commandHandlers[t] = handler
	return nil
}

// AddEventHandler appends a handler for an Event type, identified by a
// zero value of that type.
func (b *Bus) AddEventHandler(zero Event, handler EventHandler) {
	t := reflect.TypeOf(zero)
	b.eventHandlers[t] = append(b.eventHandlers[t], handler)
}

// Handle processes message and everything it (transitively) enqueues,
// to fixpoint, per spec §4.5:
//
//  1. Pop the head of a FIFO queue seeded with message.
//  2. If it's a command, run its single handler and capture the
//     return value as the Bus's return value (only the first dispatch
//     counts, matching "return first command result from the initial
//     dispatch" — spec §9 Open Questions).
//  3. If it's an event, run every registered handler in order.
//  4. After each handler, drain uow.CollectNewEvents() and append to
//     the tail of the queue — events a handler produces run after that
//     handler returns and after every message that was already queued,
//     so FIFO order is never disturbed.
//  5. Loop until the queue is empty.
//
// A message that is neither a Command nor an Event is a fatal
// InvalidMessageError — the Bus's type switch above already guarantees
// this can't happen for anything constructed through this package, so
// it signals a caller bug.
//
// Every message popped off the queue is tagged with a fresh envelope
// ID purely for log correlation — it has no bearing on dispatch or on
// Event identity, so handlers never see it.
func (b *Bus) Handle(ctx context.Context, message Message, uow UnitOfWork) (any, error) {
	queue := []Message{message}
	var result any
	first := true

	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		envelope := uuid.New().String()

		switch m := msg.(type) {
		case Command:
			t := reflect.TypeOf(m)
			handler, ok := b.commandHandlers[t]
			if !ok {
				return result, &ConfigurationError{Msg: t.String() + " command has no registered handler"}
			}
			b.log.Infow("circuitbus: dispatching command", "envelope", envelope, "type", t.String())
			ret, err := handler(ctx, m, uow)
			if err != nil {
				return result, err
			}
			if first {
				result = ret
			}
			queue = append(queue, asMessages(uow.CollectNewEvents())...)
		case Event:
			t := reflect.TypeOf(m)
			b.log.Infow("circuitbus: dispatching event", "envelope", envelope, "type", t.String())
			for _, handler := range b.eventHandlers[t] {
				if err := handler(ctx, m, uow); err != nil {
					return result, err
				}
				queue = append(queue, asMessages(uow.CollectNewEvents())...)
			}
		default:
			return result, &InvalidMessageError{Msg: "message is neither a Command nor an Event"}
		}
		first = false
	}

	return result, nil
}

func asMessages(events []Event) []Message {
	if len(events) == 0 {
		return nil
	}
	out := make([]Message, len(events))
	for i, ev := range events {
		out[i] = ev
	}
	return out
}
