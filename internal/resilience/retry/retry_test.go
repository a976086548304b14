package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"assetpulse/internal/resilience"
	"assetpulse/internal/resilience/circuitbreaker"
	"assetpulse/internal/resilience/classify"
	"assetpulse/internal/resilience/ratelimit"
)

// newTestExecutor builds an executor whose limiters never sleep, so the only
// recorded sleeps are backoff delays between attempts.
func newTestExecutor(clock resilience.Clock, threshold int) *Executor {
	breakers := circuitbreaker.NewRegistry(circuitbreaker.Config{
		FailureThreshold: threshold,
		Cooldown:         60 * time.Second,
	}, clock)
	limiters := ratelimit.NewKeyed(ratelimit.Options{}, clock)
	return NewExecutor(breakers, limiters, classify.Config{
		BaseDelay: 1 * time.Second,
		MaxDelay:  30 * time.Second,
	}, clock)
}

func opCtx(maxAttempts int) classify.OperationContext {
	return classify.OperationContext{
		Operation:     "analyze",
		AssetID:       "asset-1",
		DependencyKey: "source-a",
		MaxAttempts:   maxAttempts,
	}
}

func TestExecute_SuccessFirstAttempt(t *testing.T) {
	clock := resilience.NewManualClock(time.Now())
	e := newTestExecutor(clock, 5)

	calls := 0
	res := Execute(context.Background(), e, opCtx(3), func(context.Context) (int, error) {
		calls++
		return 42, nil
	})

	if !res.OK {
		t.Fatalf("result not OK: %+v", res.Failure)
	}
	if res.Value != 42 {
		t.Errorf("value = %d, want 42", res.Value)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if sleeps := clock.Sleeps(); len(sleeps) != 0 {
		t.Errorf("sleeps = %v, want none", sleeps)
	}
}

func TestExecute_RetriesThenSucceeds(t *testing.T) {
	clock := resilience.NewManualClock(time.Now())
	e := newTestExecutor(clock, 5)

	calls := 0
	res := Execute(context.Background(), e, opCtx(3), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	})

	if !res.OK {
		t.Fatalf("result not OK: %+v", res.Failure)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if sleeps := clock.Sleeps(); len(sleeps) != 2 {
		t.Errorf("sleeps = %v, want one per non-final failure", sleeps)
	}
}

func TestExecute_NeverExceedsMaxAttempts(t *testing.T) {
	clock := resilience.NewManualClock(time.Now())
	e := newTestExecutor(clock, 100)

	calls := 0
	res := Execute(context.Background(), e, opCtx(3), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("connection refused")
	})

	if res.OK {
		t.Fatal("result should not be OK")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want exactly 3", calls)
	}
	if res.Failure.Kind != classify.KindNetwork {
		t.Errorf("kind = %s, want %s", res.Failure.Kind, classify.KindNetwork)
	}
	if res.Failure.Retryable {
		t.Error("final failure must be non-retryable")
	}
	// No backoff sleep after the final attempt.
	if sleeps := clock.Sleeps(); len(sleeps) != 2 {
		t.Errorf("sleeps = %v, want 2 for 3 attempts", sleeps)
	}
}

func TestExecute_NonRetryableStopsImmediately(t *testing.T) {
	clock := resilience.NewManualClock(time.Now())
	e := newTestExecutor(clock, 5)

	calls := 0
	res := Execute(context.Background(), e, opCtx(3), func(context.Context) (int, error) {
		calls++
		return 0, &classify.HTTPError{StatusCode: 401, Message: "bad key"}
	})

	if res.OK {
		t.Fatal("result should not be OK")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 for a non-retryable failure", calls)
	}
	if res.Failure.Kind != classify.KindAuthentication {
		t.Errorf("kind = %s, want %s", res.Failure.Kind, classify.KindAuthentication)
	}
	if res.Failure.Severity != classify.SeverityCritical {
		t.Errorf("severity = %s, want critical", res.Failure.Severity)
	}
}

func TestExecute_OpenBreakerSkipsOperation(t *testing.T) {
	clock := resilience.NewManualClock(time.Now())
	e := newTestExecutor(clock, 2)

	for i := 0; i < 2; i++ {
		e.Breakers().RecordFailure("source-a")
	}

	calls := 0
	res := Execute(context.Background(), e, opCtx(3), func(context.Context) (int, error) {
		calls++
		return 0, nil
	})

	if res.OK {
		t.Fatal("result should not be OK while the breaker is open")
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
	if res.Failure.Retryable {
		t.Error("breaker-open failure must be non-retryable")
	}
	if !strings.Contains(res.Failure.Message, "circuit breaker open") {
		t.Errorf("message = %q, want breaker-open message", res.Failure.Message)
	}
}

func TestExecute_BreakerOpensMidRun(t *testing.T) {
	clock := resilience.NewManualClock(time.Now())
	e := newTestExecutor(clock, 2)

	calls := 0
	res := Execute(context.Background(), e, opCtx(5), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("connection refused")
	})

	if res.OK {
		t.Fatal("result should not be OK")
	}
	// The second failure trips the breaker, so the third attempt is blocked
	// before the operation runs.
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if !strings.Contains(res.Failure.Message, "circuit breaker open") {
		t.Errorf("message = %q, want breaker-open message", res.Failure.Message)
	}
}

func TestExecute_CanceledDuringBackoff(t *testing.T) {
	clock := resilience.NewManualClock(time.Now())
	e := newTestExecutor(clock, 5)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	res := Execute(ctx, e, opCtx(3), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("connection refused")
	})

	if res.OK {
		t.Fatal("result should not be OK")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if res.Failure.Kind != classify.KindTimeout {
		t.Errorf("kind = %s, want %s", res.Failure.Kind, classify.KindTimeout)
	}
}

func TestExecute_SuccessResetsBreakerAndLimiter(t *testing.T) {
	clock := resilience.NewManualClock(time.Now())
	e := newTestExecutor(clock, 5)

	calls := 0
	res := Execute(context.Background(), e, opCtx(3), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("connection refused")
		}
		return 1, nil
	})
	if !res.OK {
		t.Fatalf("result not OK: %+v", res.Failure)
	}

	if st := e.Breakers().Snapshot()["source-a"]; st.FailureCount != 0 {
		t.Errorf("breaker failure count = %d, want 0 after success", st.FailureCount)
	}
}
