package breaker

import (
	"errors"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestContextInitialState(t *testing.T) {
	c := NewContext("svc", 3, time.Second)

	if c.State() != StateClosed {
		t.Errorf("initial state = %v, want Closed", c.State())
	}
	if c.FailureCount() != 0 {
		t.Errorf("initial failure count = %d, want 0", c.FailureCount())
	}
	if c.OpenedAt() != nil {
		t.Errorf("initial opened_at = %v, want nil", c.OpenedAt())
	}
}

func TestContextOpensAfterThreshold(t *testing.T) {
	c := NewContext("svc", 2, time.Second)
	now := time.Now()
	c.WithClock(fixedClock(now))

	if err := c.Enter(); err != nil {
		t.Fatalf("Enter (closed) = %v, want nil", err)
	}
	c.HandleException(errors.New("boom"))
	if c.State() != StateClosed {
		t.Errorf("after 1 failure: state = %v, want Closed", c.State())
	}

	if err := c.Enter(); err != nil {
		t.Fatalf("Enter (closed) = %v, want nil", err)
	}
	c.HandleException(errors.New("boom"))
	if c.State() != StateOpen {
		t.Errorf("after 2 failures: state = %v, want Open", c.State())
	}

	events := c.DrainOutbox()
	wantKinds := []EventKind{EventFailed, EventFailed, EventStateChanged}
	if len(events) != len(wantKinds) {
		t.Fatalf("got %d events, want %d: %#v", len(events), len(wantKinds), events)
	}
	for i, ev := range events {
		kind, ok := kindOf(ev)
		if !ok || kind != wantKinds[i] {
			t.Errorf("event %d = %T, want kind %s", i, ev, wantKinds[i])
		}
	}
	changed := events[2].(ContextChanged)
	if changed.State != StateOpen || changed.OpenedAt == nil {
		t.Errorf("ContextChanged = %+v, want State=Open with non-nil OpenedAt", changed)
	}
}

func TestContextRefusesEntryWhileOpen(t *testing.T) {
	c := NewContext("svc", 1, 10*time.Second)
	now := time.Now()
	c.WithClock(fixedClock(now))

	c.Enter()
	c.HandleException(errors.New("boom"))
	c.DrainOutbox()

	err := c.Enter()
	var open *CircuitOpenError
	if !errors.As(err, &open) {
		t.Fatalf("Enter (open, within ttl) = %v, want CircuitOpenError", err)
	}
	if open.Name != "svc" {
		t.Errorf("CircuitOpenError.Name = %q, want %q", open.Name, "svc")
	}
}

func TestContextHalfOpenRecoveryCycle(t *testing.T) {
	c := NewContext("svc", 1, time.Second)
	opened := time.Now()
	c.WithClock(fixedClock(opened))

	c.Enter()
	c.HandleException(errors.New("boom"))
	c.DrainOutbox()

	c.WithClock(fixedClock(opened.Add(2 * time.Second)))
	if err := c.Enter(); err != nil {
		t.Fatalf("Enter (ttl elapsed) = %v, want nil", err)
	}
	if c.State() != StateHalfOpen {
		t.Fatalf("state after ttl elapses = %v, want HalfOpen", c.State())
	}

	c.HandleEndRequest()
	if c.State() != StateClosed {
		t.Fatalf("state after half-open success = %v, want Closed", c.State())
	}

	events := c.DrainOutbox()
	wantKinds := []EventKind{EventStateChanged, EventRecovered, EventStateChanged}
	if len(events) != len(wantKinds) {
		t.Fatalf("got %d events, want %d: %#v", len(events), len(wantKinds), events)
	}
	for i, ev := range events {
		kind, ok := kindOf(ev)
		if !ok || kind != wantKinds[i] {
			t.Errorf("event %d = %T, want kind %s", i, ev, wantKinds[i])
		}
	}
}

func TestContextHalfOpenReopensOnFailure(t *testing.T) {
	c := NewContext("svc", 1, time.Second)
	opened := time.Now()
	c.WithClock(fixedClock(opened))

	c.Enter()
	c.HandleException(errors.New("boom"))
	c.DrainOutbox()

	c.WithClock(fixedClock(opened.Add(2 * time.Second)))
	c.Enter()
	c.DrainOutbox()

	c.HandleException(errors.New("still broken"))
	if c.State() != StateOpen {
		t.Fatalf("state after half-open failure = %v, want Open", c.State())
	}

	events := c.DrainOutbox()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 (no CircuitBreakerFailed on half-open reopen): %#v", len(events), events)
	}
	kind, ok := kindOf(events[0])
	if !ok || kind != EventStateChanged {
		t.Errorf("event = %T, want ContextChanged", events[0])
	}
}

func TestContextClosedSuccessAfterFailuresEmitsRecovered(t *testing.T) {
	c := NewContext("svc", 5, time.Second)

	c.Enter()
	c.HandleException(errors.New("boom"))
	c.DrainOutbox()

	c.Enter()
	c.HandleEndRequest()

	if c.FailureCount() != 0 {
		t.Errorf("failure count after recovery = %d, want 0", c.FailureCount())
	}
	events := c.DrainOutbox()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %#v", len(events), events)
	}
	if _, ok := events[0].(CircuitBreakerRecovered); !ok {
		t.Errorf("event = %T, want CircuitBreakerRecovered", events[0])
	}
}

func TestContextClosedSuccessWithoutPriorFailureEmitsNothing(t *testing.T) {
	c := NewContext("svc", 5, time.Second)

	c.Enter()
	c.HandleEndRequest()

	if events := c.DrainOutbox(); len(events) != 0 {
		t.Errorf("got %d events, want 0: %#v", len(events), events)
	}
}

type notFoundError struct{ msg string }

func (e *notFoundError) Error() string { return e.msg }

func TestContextExcludedErrorDoesNotCountAsFailure(t *testing.T) {
	c := NewContext("svc", 1, time.Second)
	c.SetExcludeList(Policy{ByType[*notFoundError]()})

	c.Enter()
	c.HandleException(&notFoundError{msg: "not found"})

	if c.State() != StateClosed {
		t.Errorf("state after excluded error = %v, want Closed", c.State())
	}
	if c.FailureCount() != 0 {
		t.Errorf("failure count after excluded error = %d, want 0", c.FailureCount())
	}
}

func TestContextExcludeByTypeAndPredicate(t *testing.T) {
	type rateLimitError struct {
		error
		retryAfter time.Duration
	}
	rule := ByTypeAndPredicate(func(e *rateLimitError) bool {
		return e.retryAfter < time.Second
	})

	c := NewContext("svc", 1, time.Second)
	c.SetExcludeList(Policy{rule})

	c.Enter()
	c.HandleException(&rateLimitError{error: errors.New("rate limited"), retryAfter: 500 * time.Millisecond})
	if c.State() != StateClosed || c.FailureCount() != 0 {
		t.Errorf("excluded rate limit error still counted: state=%v count=%d", c.State(), c.FailureCount())
	}

	c.HandleException(&rateLimitError{error: errors.New("rate limited"), retryAfter: 2 * time.Second})
	if c.State() != StateOpen {
		t.Errorf("non-excluded rate limit error did not trip circuit: state=%v", c.State())
	}
}
