package breaker

import "fmt"

// CircuitOpenError is returned by Context.Enter (and, through the Guard,
// by Guard.Enter/Guard.Run) when the circuit refuses entry. It is a
// distinct error value carrying the circuit name, split out from the
// state record itself per the "OpenedState-as-exception" redesign note:
// the open state is a plain value, the refusal is a separate error.
//
// Callers distinguish "upstream refused" from "call failed" with:
//
//	var open *breaker.CircuitOpenError
//	if errors.As(err, &open) { ... }
type CircuitOpenError struct {
	Name string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuitbus: circuit %q is open", e.Name)
}

// ConfigurationError reports a programmer error in wiring the message
// bus or the factory's listener registry: registering a command handler
// twice, or removing a handler/listener that was never registered.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "circuitbus: configuration error: " + e.Msg
}

// InvalidMessageError indicates the Bus was asked to dispatch a value
// that is neither a Command nor an Event. This can only happen if a
// handler enqueues something through a path that bypasses the typed
// Command/Event interfaces, so it signals a bug in the caller, not in
// application-level error handling.
type InvalidMessageError struct {
	Msg string
}

func (e *InvalidMessageError) Error() string {
	return "circuitbus: invalid message: " + e.Msg
}
