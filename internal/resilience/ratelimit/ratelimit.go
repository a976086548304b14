// Package ratelimit enforces adaptive spacing between calls to one dependency.
// The gap between calls grows with the dependency's consecutive-failure streak
// and resets on success. Logical batches are paced independently of failures.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"assetpulse/internal/resilience"
)

// Options configures a Limiter. Presets differ only in these values, never in
// the spacing algorithm.
type Options struct {
	// BaseDelay is the minimum gap between calls with no recent failures
	BaseDelay time.Duration

	// MaxDelay caps the gap regardless of failure streak length
	MaxDelay time.Duration

	// BatchSize is the number of calls grouped into one logical batch
	BatchSize int

	// BatchDelay is the fixed pause between logical batches
	BatchDelay time.Duration
}

// Conservative returns options for fragile or strictly rate-limited upstreams.
func Conservative() Options {
	return Options{
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
		BatchSize:  5,
		BatchDelay: 10 * time.Second,
	}
}

// Permissive returns options for upstreams that tolerate rapid polling.
func Permissive() Options {
	return Options{
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		BatchSize:  20,
		BatchDelay: 2 * time.Second,
	}
}

// Limiter spaces calls to a single dependency. All methods are safe for
// concurrent use; calls for the same dependency are serialized on the
// limiter's mutex.
type Limiter struct {
	mu                  sync.Mutex
	opts                Options
	clock               resilience.Clock
	consecutiveFailures int
	lastCall            time.Time
}

// NewLimiter creates a limiter with the given options. A nil clock defaults
// to the system clock.
func NewLimiter(opts Options, clock resilience.Clock) *Limiter {
	if clock == nil {
		clock = resilience.NewSystemClock()
	}
	return &Limiter{opts: opts, clock: clock}
}

// WaitForNextCall blocks until enough time has passed since the previous call.
// The required gap is min(MaxDelay, BaseDelay * 2^consecutiveFailures); only
// the remainder beyond the elapsed time is actually slept.
func (l *Limiter) WaitForNextCall(ctx context.Context) error {
	l.mu.Lock()
	delay := l.currentDelayLocked()
	var wait time.Duration
	if !l.lastCall.IsZero() {
		elapsed := l.clock.Now().Sub(l.lastCall)
		if remaining := delay - elapsed; remaining > 0 {
			wait = remaining
		}
	}
	l.mu.Unlock()

	if wait > 0 {
		if err := l.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	l.mu.Lock()
	l.lastCall = l.clock.Now()
	l.mu.Unlock()
	return nil
}

// WaitForBatch pauses for the fixed batch delay, independent of the failure
// streak.
func (l *Limiter) WaitForBatch(ctx context.Context) error {
	return l.clock.Sleep(ctx, l.opts.BatchDelay)
}

// RecordSuccess resets the consecutive-failure streak.
func (l *Limiter) RecordSuccess() {
	l.mu.Lock()
	l.consecutiveFailures = 0
	l.mu.Unlock()
}

// RecordFailure lengthens the gap for subsequent calls.
func (l *Limiter) RecordFailure() {
	l.mu.Lock()
	l.consecutiveFailures++
	l.mu.Unlock()
}

// BatchSize returns the configured batch size.
func (l *Limiter) BatchSize() int {
	return l.opts.BatchSize
}

// CurrentDelay returns the gap the limiter currently enforces between calls.
func (l *Limiter) CurrentDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentDelayLocked()
}

func (l *Limiter) currentDelayLocked() time.Duration {
	// Past 32 doublings the result exceeds any sane MaxDelay anyway.
	if l.consecutiveFailures > 32 {
		return l.opts.MaxDelay
	}
	delay := time.Duration(float64(l.opts.BaseDelay) * math.Pow(2, float64(l.consecutiveFailures)))
	if delay > l.opts.MaxDelay || delay < 0 {
		delay = l.opts.MaxDelay
	}
	return delay
}

// Keyed hands out one limiter per dependency key, all sharing the same
// options. It is a per-process singleton created at startup.
type Keyed struct {
	mu       sync.Mutex
	opts     Options
	clock    resilience.Clock
	limiters map[string]*Limiter
}

// NewKeyed creates a keyed limiter registry.
func NewKeyed(opts Options, clock resilience.Clock) *Keyed {
	if clock == nil {
		clock = resilience.NewSystemClock()
	}
	return &Keyed{
		opts:     opts,
		clock:    clock,
		limiters: make(map[string]*Limiter),
	}
}

// Get returns the limiter for the given dependency key, creating it on first use.
func (k *Keyed) Get(key string) *Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.limiters[key]
	if !ok {
		l = NewLimiter(k.opts, k.clock)
		k.limiters[key] = l
	}
	return l
}

// BatchPacer rides a token bucket to pace whole fusion runs across assets so a
// sweep respects overall upstream capacity.
type BatchPacer struct {
	limiter *rate.Limiter
}

// NewBatchPacer allows runsPerSecond sustained runs with the given burst.
func NewBatchPacer(runsPerSecond float64, burst int) *BatchPacer {
	return &BatchPacer{limiter: rate.NewLimiter(rate.Limit(runsPerSecond), burst)}
}

// Wait blocks until the next run may start or the context is canceled.
func (p *BatchPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
