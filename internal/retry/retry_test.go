package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(retries int) Config {
	return Config{
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

// TestDoRetriesUntilSuccess checks transient failures are retried.
func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

// TestDoStopsOnPermanentError checks permanent errors return immediately.
func TestDoStopsOnPermanentError(t *testing.T) {
	cause := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), fastConfig(5), nil, func(context.Context) error {
		calls++
		return Permanent(cause)
	})
	if !errors.Is(err, cause) {
		t.Fatalf("error = %v, want wrapped cause", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

// TestDoExhaustsBudget wraps the last error after the final attempt.
func TestDoExhaustsBudget(t *testing.T) {
	cause := errors.New("still down")
	calls := 0
	err := Do(context.Background(), fastConfig(2), nil, func(context.Context) error {
		calls++
		return cause
	})
	if !errors.Is(err, cause) {
		t.Fatalf("error = %v, want wrapped cause", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

// TestDoHonoursCancellation stops waiting when ctx is cancelled.
func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, Multiplier: 1}

	err := Do(ctx, cfg, nil, func(context.Context) error {
		cancel()
		return errors.New("temporary")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

// TestDoCustomClassifier lets callers decide retryability.
func TestDoCustomClassifier(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(error) bool { return false }, func(context.Context) error {
		calls++
		return errors.New("nope")
	})
	if err == nil || calls != 1 {
		t.Fatalf("err = %v calls = %d, want error after 1 call", err, calls)
	}
}
