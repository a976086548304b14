// Package circuitbreaker stops calls to persistently failing dependencies.
// It provides a per-dependency-key registry of consecutive-failure breakers for
// sub-analyzer calls, and a gobreaker-based wrapper for database operations.
package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"

	"assetpulse/internal/resilience"
)

// Config holds the configuration for the breaker registry.
type Config struct {
	// FailureThreshold is the number of failures since the last success
	// required to open a breaker.
	FailureThreshold int

	// Cooldown is how long an open breaker blocks calls before allowing
	// a single probe.
	Cooldown time.Duration
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
	}
}

// State is a read-only snapshot of one breaker used for observability.
// Zero time values mean the field has never been set.
type State struct {
	IsOpen          bool
	FailureCount    int
	LastFailureTime time.Time
	NextAttemptTime time.Time
}

// entry holds the mutable state for one dependency key. All fields are
// guarded by mu so reads and mutations for a key are serialized.
type entry struct {
	mu              sync.Mutex
	isOpen          bool
	probing         bool
	failureCount    int
	lastFailureTime time.Time
	nextAttemptTime time.Time
}

// Registry tracks one circuit breaker per dependency key. It lives for the
// whole process and is shared by all retry executors.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	cfg     Config
	clock   resilience.Clock
	logger  *slog.Logger
}

// NewRegistry creates a breaker registry with the given configuration.
// A nil clock defaults to the system clock.
func NewRegistry(cfg Config, clock resilience.Clock) *Registry {
	if clock == nil {
		clock = resilience.NewSystemClock()
	}
	return &Registry{
		entries: make(map[string]*entry),
		cfg:     cfg,
		clock:   clock,
		logger:  slog.Default(),
	}
}

func (r *Registry) get(key string) *entry {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return e
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.entries[key]; ok {
		return e
	}
	e = &entry{}
	r.entries[key] = e
	return e
}

// IsOpen reports whether calls to the given dependency should be blocked.
// An unknown key is closed. When the cooldown window of an open breaker has
// elapsed, exactly one caller is let through as a probe; further callers keep
// seeing the breaker as open until the probe's outcome is recorded.
func (r *Registry) IsOpen(key string) bool {
	e := r.get(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isOpen {
		return false
	}
	if e.probing {
		return true
	}
	if r.clock.Now().After(e.nextAttemptTime) {
		e.probing = true
		r.logger.Info("circuit breaker probing",
			slog.String("dependency", key),
			slog.Time("opened_until", e.nextAttemptTime))
		return false
	}
	return true
}

// RecordFailure counts one failure against the dependency. Reaching the
// threshold opens the breaker for a fresh cooldown window; a failed probe
// re-opens it immediately.
func (r *Registry) RecordFailure(key string) {
	e := r.get(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := r.clock.Now()
	e.failureCount++
	e.lastFailureTime = now

	wasOpen := e.isOpen && !e.probing
	if e.failureCount >= r.cfg.FailureThreshold {
		e.isOpen = true
		e.probing = false
		e.nextAttemptTime = now.Add(r.cfg.Cooldown)
		if !wasOpen {
			r.logger.Warn("circuit breaker opened",
				slog.String("dependency", key),
				slog.Int("failures", e.failureCount),
				slog.Time("next_attempt", e.nextAttemptTime))
		}
	}
}

// RecordSuccess resets the dependency's breaker to its zero state if any
// failures had been recorded.
func (r *Registry) RecordSuccess(key string) {
	e := r.get(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failureCount == 0 && !e.isOpen {
		return
	}
	if e.isOpen {
		r.logger.Info("circuit breaker closed",
			slog.String("dependency", key))
	}
	e.isOpen = false
	e.probing = false
	e.failureCount = 0
	e.lastFailureTime = time.Time{}
	e.nextAttemptTime = time.Time{}
}

// Snapshot returns a read-only copy of all breaker states keyed by dependency.
func (r *Registry) Snapshot() map[string]State {
	r.mu.RLock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	out := make(map[string]State, len(keys))
	for _, k := range keys {
		e := r.get(k)
		e.mu.Lock()
		out[k] = State{
			IsOpen:          e.isOpen && !e.probing,
			FailureCount:    e.failureCount,
			LastFailureTime: e.lastFailureTime,
			NextAttemptTime: e.nextAttemptTime,
		}
		e.mu.Unlock()
	}
	return out
}
