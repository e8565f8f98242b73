package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func retryAll(error) ErrorClassification {
	return ErrorClassification{Retryable: true, RecordFailure: true}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	exec := NewExecutor(fastRetryConfig())

	calls := 0
	err := exec.Execute(context.Background(), "flaky", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, retryAll)

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestExecuteStopsOnNonRetryableError(t *testing.T) {
	exec := NewExecutor(fastRetryConfig())

	errFatal := errors.New("bad request")
	calls := 0
	err := exec.Execute(context.Background(), "fatal", func(context.Context) error {
		calls++
		return errFatal
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	})

	if !errors.Is(err, errFatal) {
		t.Fatalf("err = %v, want %v", err, errFatal)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestExecuteReturnsLastErrorWhenAttemptsExhausted(t *testing.T) {
	exec := NewExecutor(fastRetryConfig())

	errTransient := errors.New("still down")
	calls := 0
	err := exec.Execute(context.Background(), "down", func(context.Context) error {
		calls++
		return errTransient
	}, retryAll)

	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v, want %v", err, errTransient)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: time.Hour,
		RetryMaxBackoff:     time.Hour,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errTransient := errors.New("transient")
	calls := 0
	err := exec.Execute(ctx, "slow", func(context.Context) error {
		calls++
		cancel()
		return errTransient
	}, retryAll)

	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v, want the last attempt error", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry after cancel)", calls)
	}
}

func TestExecuteOpensCircuitAfterRepeatedFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})

	errDown := errors.New("backend down")
	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "broken", func(context.Context) error {
			return errDown
		}, retryAll)
	}

	calls := 0
	err := exec.Execute(context.Background(), "broken", func(context.Context) error {
		calls++
		return nil
	}, retryAll)

	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("callback ran %d times behind an open breaker", calls)
	}
}

func TestBreakerIgnoresErrorsClassifiedAsNonFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})

	errClient := errors.New("invalid input")
	noFailure := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	for i := 0; i < 5; i++ {
		_ = exec.Execute(context.Background(), "client-errors", func(context.Context) error {
			return errClient
		}, noFailure)
	}

	calls := 0
	err := exec.Execute(context.Background(), "client-errors", func(context.Context) error {
		calls++
		return nil
	}, noFailure)

	if err != nil || calls != 1 {
		t.Fatalf("expected closed circuit (err=%v calls=%d)", err, calls)
	}
}

func TestDelayForCapsAtMaxBackoff(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    10,
		RetryInitialBackoff: 10 * time.Millisecond,
		RetryMaxBackoff:     40 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	// Cap plus at most 25% jitter.
	limit := 40*time.Millisecond + 10*time.Millisecond
	for attempt := 1; attempt <= 8; attempt++ {
		if d := exec.delayFor(attempt); d > limit {
			t.Fatalf("delayFor(%d) = %v, exceeds cap %v", attempt, d, limit)
		}
	}
}
