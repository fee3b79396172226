package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond}

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 2, Delay: time.Millisecond}

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("boom %d", calls)
	})
	if err == nil {
		t.Fatalf("expected error after exhaustion")
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if got := err.Error(); got != "after 2 attempts: boom 2" {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestDoPermanentStopsEarly(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 5, Delay: time.Millisecond}

	fatal := errors.New("bad request")
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(fatal)
	})

	if !errors.Is(err, fatal) {
		t.Fatalf("expected the permanent error back, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent errors must not be retried, got %d attempts", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	p := Policy{MaxAttempts: 10, Delay: 50 * time.Millisecond}

	err := p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt before cancel, got %d", calls)
	}
}

func TestZeroPolicyRunsOnce(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("nope")
	})
	if err == nil || calls != 1 {
		t.Fatalf("zero policy must attempt exactly once, got %d calls, err %v", calls, err)
	}
}
