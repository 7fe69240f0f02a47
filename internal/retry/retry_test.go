package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"tasklist-cli/internal/retry"
)

var fastPolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     2 * time.Millisecond,
}

func alwaysStop(error) retry.Action { return retry.Stop }

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	val, err := retry.Do(context.Background(), fastPolicy, retry.Always, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if val != 42 || calls != 3 {
		t.Fatalf("expected 42 after 3 calls, got %d after %d", val, calls)
	}
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := retry.DoVoid(context.Background(), fastPolicy, alwaysStop, func() error {
		calls++
		return permanent
	})
	var permErr *retry.PermanentError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermanentError, got %T: %v", err, err)
	}
	if !errors.Is(err, permanent) {
		t.Fatalf("expected wrapped permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	transient := errors.New("transient")
	var retries []int
	p := fastPolicy
	p.OnRetry = func(attempt int, _ error, _ time.Duration) { retries = append(retries, attempt) }

	err := retry.DoVoid(context.Background(), p, nil, func() error { return transient })
	if !errors.Is(err, transient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if len(retries) != 2 {
		t.Fatalf("expected 2 retries, got %v", retries)
	}
}

func TestDo_ContextCancelStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := retry.Policy{MaxAttempts: 5, InitialBackoff: time.Hour}

	err := retry.DoVoid(ctx, p, nil, func() error { return errors.New("down") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
