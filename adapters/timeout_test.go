package adapters

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithTimeoutSingleAttemptByDefault(t *testing.T) {
	calls := 0
	err := WithTimeout(context.Background(), time.Second, 0, func(ctx context.Context) error {
		calls++
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatalf("expected error to propagate")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one attempt with maxElapsed<=0, got %d", calls)
	}
}

func TestWithTimeoutRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := WithTimeout(context.Background(), 5*time.Second, 2*time.Second, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestWithTimeoutRespectsDeadline(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, 0, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err == nil {
		t.Fatalf("expected deadline exceeded error")
	}
}
