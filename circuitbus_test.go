package circuitbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/1mb-dev/circuitbus"
)

func TestEndToEndDecoratorScenario(t *testing.T) {
	factory := circuitbus.NewFactory(
		circuitbus.WithDefaultThreshold(3),
		circuitbus.WithDefaultTTL(time.Hour),
	)
	ctx := context.Background()

	guard, err := factory.GetBreaker(ctx, "payments-api")
	if err != nil {
		t.Fatalf("GetBreaker: %v", err)
	}

	if err := guard.Run(ctx, func() error { return nil }); err != nil {
		t.Fatalf("Run (success) = %v, want nil", err)
	}
	if guard.State() != circuitbus.StateClosed {
		t.Errorf("state after success = %v, want Closed", guard.State())
	}
}

func TestEndToEndOpensAfterThreshold(t *testing.T) {
	factory := circuitbus.NewFactory(
		circuitbus.WithDefaultThreshold(2),
		circuitbus.WithDefaultTTL(time.Hour),
	)
	ctx := context.Background()

	var kinds []circuitbus.EventKind
	factory.AddListener(func(name string, kind circuitbus.EventKind, event circuitbus.Event) {
		kinds = append(kinds, kind)
	})

	guard, _ := factory.GetBreaker(ctx, "payments-api")
	for i := 0; i < 2; i++ {
		guard.Run(ctx, func() error { return errors.New("upstream error") })
	}

	if guard.State() != circuitbus.StateOpen {
		t.Fatalf("state after %d failures (threshold 2) = %v, want Open", 2, guard.State())
	}

	want := []circuitbus.EventKind{
		circuitbus.EventCircuitBreakerCreated,
		circuitbus.EventFailed,
		circuitbus.EventFailed,
		circuitbus.EventStateChanged,
	}
	if len(kinds) != len(want) {
		t.Fatalf("event kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestEndToEndRecoveryCycle(t *testing.T) {
	factory := circuitbus.NewFactory(
		circuitbus.WithDefaultThreshold(1),
		circuitbus.WithDefaultTTL(10*time.Millisecond),
	)
	ctx := context.Background()

	guard, _ := factory.GetBreaker(ctx, "payments-api")
	guard.Run(ctx, func() error { return errors.New("upstream error") })
	if guard.State() != circuitbus.StateOpen {
		t.Fatalf("state after 1 failure (threshold 1) = %v, want Open", guard.State())
	}

	time.Sleep(20 * time.Millisecond)

	guard2, err := factory.GetBreaker(ctx, "payments-api")
	if err != nil {
		t.Fatalf("GetBreaker: %v", err)
	}
	if err := guard2.Run(ctx, func() error { return nil }); err != nil {
		t.Fatalf("Run (probe) = %v, want nil", err)
	}
	if guard2.State() != circuitbus.StateClosed {
		t.Errorf("state after successful probe = %v, want Closed", guard2.State())
	}
}

func TestEndToEndReopensFromHalfOpenOnFailure(t *testing.T) {
	factory := circuitbus.NewFactory(
		circuitbus.WithDefaultThreshold(1),
		circuitbus.WithDefaultTTL(10*time.Millisecond),
	)
	ctx := context.Background()

	guard, _ := factory.GetBreaker(ctx, "payments-api")
	guard.Run(ctx, func() error { return errors.New("upstream error") })

	time.Sleep(20 * time.Millisecond)

	guard2, _ := factory.GetBreaker(ctx, "payments-api")
	err := guard2.Run(ctx, func() error { return errors.New("still failing") })
	if err == nil {
		t.Fatal("Run (failed probe) = nil, want the probe's error")
	}
	if guard2.State() != circuitbus.StateOpen {
		t.Errorf("state after failed probe = %v, want Open", guard2.State())
	}
}

type notFoundError struct{ msg string }

func (e *notFoundError) Error() string { return e.msg }

func TestEndToEndExcludedErrorsDoNotTripCircuit(t *testing.T) {
	factory := circuitbus.NewFactory(
		circuitbus.WithDefaultThreshold(1),
		circuitbus.WithDefaultTTL(time.Hour),
	)
	ctx := context.Background()

	guard, err := factory.GetBreaker(ctx, "payments-api",
		circuitbus.WithExclude(circuitbus.ByType[*notFoundError]()))
	if err != nil {
		t.Fatalf("GetBreaker: %v", err)
	}

	guard.Run(ctx, func() error { return &notFoundError{msg: "no such resource"} })
	if guard.State() != circuitbus.StateClosed {
		t.Errorf("state after excluded error = %v, want Closed", guard.State())
	}
}
