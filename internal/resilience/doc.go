// Package resilience provides reliability and fault tolerance patterns for the
// metrics fusion pipeline. Its subpackages implement error classification, retry
// with exponential backoff, per-dependency circuit breaking, and adaptive rate
// limiting for calls to unreliable upstream sources.
//
// The package supports:
//   - Structured classification of raw upstream failures (classify)
//   - A circuit breaker registry keyed by dependency (circuitbreaker)
//   - Adaptive per-dependency call spacing and batch pacing (ratelimit)
//   - A retry executor that threads one operation through all of the above (retry)
//
// Usage Example:
//
//	breakers := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig(), resilience.NewSystemClock())
//	limiters := ratelimit.NewKeyed(ratelimit.Conservative(), resilience.NewSystemClock())
//	exec := retry.NewExecutor(breakers, limiters, classify.DefaultConfig(), resilience.NewSystemClock())
//	res := retry.Execute(ctx, exec, opCtx, func(ctx context.Context) (map[string]float64, error) {
//	    return callUpstream(ctx)
//	})
package resilience
