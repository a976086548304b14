// Package retry orchestrates one operation through the circuit breaker,
// rate limiter, and error classifier across a bounded number of attempts.
// It never panics and never leaks a raw error: every outcome is a
// discriminated Result carrying either a value or a structured ErrorAnalysis.
package retry

import (
	"context"
	"fmt"
	"log/slog"

	"assetpulse/internal/resilience"
	"assetpulse/internal/resilience/circuitbreaker"
	"assetpulse/internal/resilience/classify"
	"assetpulse/internal/resilience/ratelimit"
)

// Result is the discriminated outcome of one retried operation.
// Exactly one of Value (when OK) or Failure (when not OK) is meaningful.
type Result[T any] struct {
	OK      bool
	Value   T
	Failure *classify.ErrorAnalysis
}

// Executor threads operations through the shared breaker registry and keyed
// limiters. One executor serves the whole process; it holds no per-call state.
type Executor struct {
	breakers *circuitbreaker.Registry
	limiters *ratelimit.Keyed
	cfg      classify.Config
	clock    resilience.Clock
	logger   *slog.Logger
}

// NewExecutor creates a retry executor. A nil clock defaults to the system
// clock.
func NewExecutor(breakers *circuitbreaker.Registry, limiters *ratelimit.Keyed, cfg classify.Config, clock resilience.Clock) *Executor {
	if clock == nil {
		clock = resilience.NewSystemClock()
	}
	return &Executor{
		breakers: breakers,
		limiters: limiters,
		cfg:      cfg,
		clock:    clock,
		logger:   slog.Default(),
	}
}

// Breakers exposes the executor's breaker registry for observability.
func (e *Executor) Breakers() *circuitbreaker.Registry {
	return e.breakers
}

// Execute runs fn through the breaker, limiter, and classifier for up to
// opCtx.MaxAttempts attempts. The operation is never invoked while its
// breaker is open, never retried after a non-retryable failure, and never
// slept for after the final attempt.
func Execute[T any](ctx context.Context, e *Executor, opCtx classify.OperationContext, fn func(context.Context) (T, error)) Result[T] {
	key := opCtx.DependencyKey
	limiter := e.limiters.Get(key)

	var lastFailure classify.ErrorAnalysis
	for attempt := 1; attempt <= opCtx.MaxAttempts; attempt++ {
		opCtx.Attempt = attempt
		opCtx.StartedAt = e.clock.Now()

		if e.breakers.IsOpen(key) {
			return failure[T](breakerOpenAnalysis(opCtx))
		}

		if err := limiter.WaitForNextCall(ctx); err != nil {
			return failure[T](canceledAnalysis(opCtx, err))
		}

		value, err := fn(ctx)
		opCtx.Duration = e.clock.Now().Sub(opCtx.StartedAt)

		if err == nil {
			e.breakers.RecordSuccess(key)
			limiter.RecordSuccess()
			if attempt > 1 {
				e.logger.Info("operation succeeded after retry",
					slog.String("operation", opCtx.Operation),
					slog.Int("attempt", attempt))
			}
			return Result[T]{OK: true, Value: value}
		}

		lastFailure = classify.Classify(err, opCtx, e.cfg)
		e.breakers.RecordFailure(key)
		limiter.RecordFailure()

		if !lastFailure.Retryable || attempt == opCtx.MaxAttempts {
			e.logger.Warn("operation failed terminally",
				slog.String("operation", opCtx.Operation),
				slog.String("dependency", key),
				slog.String("kind", string(lastFailure.Kind)),
				slog.String("severity", lastFailure.Severity.String()),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			return failure[T](lastFailure)
		}

		e.logger.Warn("operation failed, retrying",
			slog.String("operation", opCtx.Operation),
			slog.String("dependency", key),
			slog.String("kind", string(lastFailure.Kind)),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", opCtx.MaxAttempts),
			slog.Duration("delay", lastFailure.SuggestedDelay))

		if err := e.clock.Sleep(ctx, lastFailure.SuggestedDelay); err != nil {
			return failure[T](canceledAnalysis(opCtx, err))
		}
	}

	return failure[T](lastFailure)
}

func failure[T any](a classify.ErrorAnalysis) Result[T] {
	return Result[T]{Failure: &a}
}

// breakerOpenAnalysis is the synthetic, non-retryable failure surfaced when a
// dependency's breaker is open, so a known-bad upstream is never hammered.
func breakerOpenAnalysis(opCtx classify.OperationContext) classify.ErrorAnalysis {
	return classify.ErrorAnalysis{
		Kind:      classify.KindUnknown,
		Severity:  classify.SeverityHigh,
		Message:   fmt.Sprintf("circuit breaker open for dependency %q", opCtx.DependencyKey),
		Retryable: false,
		Context:   opCtx,
	}
}

// canceledAnalysis converts a context cancellation during waiting into a
// terminal timeout failure.
func canceledAnalysis(opCtx classify.OperationContext, err error) classify.ErrorAnalysis {
	return classify.ErrorAnalysis{
		Kind:      classify.KindTimeout,
		Severity:  classify.SeverityHigh,
		Message:   fmt.Sprintf("wait aborted: %v", err),
		Retryable: false,
		Context:   opCtx,
	}
}
