package circuitbreaker

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// DBBreakerConfig holds the configuration for the database circuit breaker.
type DBBreakerConfig struct {
	// Name identifies the breaker in logs and metrics
	Name string

	// MaxRequests is the number of test requests allowed in half-open state
	MaxRequests uint32

	// Interval is the cyclic period of the closed state to clear counts
	Interval time.Duration

	// Timeout is how long to wait in open state before trying again
	Timeout time.Duration

	// FailureThreshold is the failure ratio required to trip the circuit
	FailureThreshold float64

	// MinRequests is the minimum number of requests before the ratio applies
	MinRequests uint32
}

// DefaultDBBreakerConfig returns configuration tuned for the result sink.
// Opens after 5 consecutive failures, 30 second timeout.
func DefaultDBBreakerConfig() DBBreakerConfig {
	return DBBreakerConfig{
		Name:             "result-sink",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
}

// DBBreaker wraps a database connection with circuit breaker protection so a
// dead database does not stall fusion sweeps.
type DBBreaker struct {
	cb *gobreaker.CircuitBreaker
	db *sql.DB
}

// NewDBBreaker creates a database circuit breaker around db.
func NewDBBreaker(db *sql.DB, cfg DBBreakerConfig) *DBBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("database circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	return &DBBreaker{
		cb: gobreaker.NewCircuitBreaker(settings),
		db: db,
	}
}

// ExecContext executes a statement with circuit breaker protection.
// If the circuit is open, it returns gobreaker.ErrOpenState without hitting
// the database.
func (b *DBBreaker) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.db.ExecContext(ctx, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return result.(sql.Result), nil
}

// QueryRowContext executes a single-row query with circuit breaker protection.
// Note: sql.Row defers errors to Scan, so only open-circuit rejections are
// reported up front.
func (b *DBBreaker) QueryRowContext(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.db.QueryRowContext(ctx, query, args...), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*sql.Row), nil
}

// State returns the current gobreaker state.
func (b *DBBreaker) State() gobreaker.State {
	return b.cb.State()
}
