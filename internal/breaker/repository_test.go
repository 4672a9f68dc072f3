package breaker

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryRepositoryGetMissingReturnsNil(t *testing.T) {
	repo := NewInMemoryRepository()
	c, err := repo.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c != nil {
		t.Errorf("Get(missing) = %v, want nil", c)
	}
}

func TestInMemoryRepositoryRegisterIsIdempotent(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	original := NewContext("svc", 5, time.Second)
	if err := repo.Register(ctx, original); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	original.HandleException(errTestFailure)
	original.DrainOutbox()

	duplicate := NewContext("svc", 99, time.Hour)
	if err := repo.Register(ctx, duplicate); err != nil {
		t.Fatalf("second Register: %v", err)
	}

	stored, err := repo.Get(ctx, "svc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored != original {
		t.Errorf("Register overwrote the existing Context")
	}
	if stored.FailureCount() != 1 {
		t.Errorf("stored failure count = %d, want 1 (unchanged by re-registration)", stored.FailureCount())
	}
}

func TestInMemoryRepositoryGetReturnsSameInstance(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	c := NewContext("svc", 5, time.Second)
	repo.Register(ctx, c)

	a, _ := repo.Get(ctx, "svc")
	b, _ := repo.Get(ctx, "svc")
	if a != b {
		t.Errorf("Get returned different instances on successive calls")
	}
}

var errTestFailure = &notFoundError{msg: "simulated failure"}
