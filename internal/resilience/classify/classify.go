// Package classify turns raw upstream failures into structured retry decisions.
// It maps errors to a fixed taxonomy of kinds and severities, decides whether a
// retry is worthwhile, and suggests a backoff delay with jitter.
package classify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// ErrorKind categorizes an upstream failure.
type ErrorKind string

const (
	KindRateLimit      ErrorKind = "rate_limit"
	KindAPIError       ErrorKind = "api_error"
	KindAuthentication ErrorKind = "authentication_error"
	KindNetwork        ErrorKind = "network_error"
	KindTimeout        ErrorKind = "timeout_error"
	KindParsing        ErrorKind = "parsing_error"
	KindValidation     ErrorKind = "validation_error"
	KindUnknown        ErrorKind = "unknown"
)

// Severity grades how serious a failure is for alerting and retry decisions.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns a string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// OperationContext describes one attempt of one operation against a dependency.
// A new context value is built per attempt and discarded after the retry decision.
type OperationContext struct {
	Operation     string
	AssetID       string
	DependencyKey string
	Attempt       int
	MaxAttempts   int
	StartedAt     time.Time
	Duration      time.Duration
}

// ErrorAnalysis is the structured decision derived from one failure.
type ErrorAnalysis struct {
	Kind           ErrorKind
	Severity       Severity
	Message        string
	Retryable      bool
	SuggestedDelay time.Duration
	Context        OperationContext
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Config holds the backoff parameters used when suggesting retry delays.
type Config struct {
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration

	// MaxDelay is the ceiling applied after kind multipliers
	MaxDelay time.Duration
}

// DefaultConfig returns a default classification configuration.
func DefaultConfig() Config {
	return Config{
		BaseDelay: 1 * time.Second,
		MaxDelay:  30 * time.Second,
	}
}

// Kind-specific delay multipliers, applied before clamping to MaxDelay.
// Rate-limited calls back off harder; server errors moderately.
const (
	RateLimitDelayMultiplier   = 2.0
	ServerErrorDelayMultiplier = 1.5
)

// Jitter bounds for suggested delays. The band is narrow enough that delays
// stay monotone across attempts for base-2 exponential growth.
const (
	jitterMin = 0.95
	jitterMax = 1.05
)

// Classify analyzes a raw failure in the context of one attempt and returns a
// structured decision. Rules are ordered; the first match wins. When the attempt
// was the last allowed one, the result is forced non-retryable with severity at
// least High regardless of kind.
func Classify(err error, opCtx OperationContext, cfg Config) ErrorAnalysis {
	analysis := classifyKind(err, opCtx, cfg)

	if opCtx.Attempt >= opCtx.MaxAttempts {
		analysis.Retryable = false
		if analysis.Severity < SeverityHigh {
			analysis.Severity = SeverityHigh
		}
	}
	return analysis
}

func classifyKind(err error, opCtx OperationContext, cfg Config) ErrorAnalysis {
	base := ErrorAnalysis{
		Kind:      KindUnknown,
		Severity:  SeverityMedium,
		Message:   err.Error(),
		Retryable: true,
		Context:   opCtx,
	}
	msg := strings.ToLower(err.Error())

	var httpErr *HTTPError
	hasStatus := errors.As(err, &httpErr)

	switch {
	case (hasStatus && httpErr.StatusCode == http.StatusTooManyRequests) ||
		strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		base.Kind = KindRateLimit
		base.Severity = SeverityLow
		base.SuggestedDelay = suggestDelay(cfg, opCtx.Attempt, RateLimitDelayMultiplier)

	case hasStatus && (httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden):
		base.Kind = KindAuthentication
		base.Severity = SeverityCritical
		base.Retryable = false

	case hasStatus && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500:
		base.Kind = KindAPIError
		base.Severity = SeverityMedium
		base.Retryable = false

	case hasStatus && httpErr.StatusCode >= 500:
		base.Kind = KindAPIError
		base.Severity = SeverityHigh
		base.SuggestedDelay = suggestDelay(cfg, opCtx.Attempt, ServerErrorDelayMultiplier)

	case isTimeout(err) || strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		base.Kind = KindTimeout
		base.Severity = SeverityMedium
		base.SuggestedDelay = suggestDelay(cfg, opCtx.Attempt, 1.0)

	case isNetwork(err) || strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") || strings.Contains(msg, "no such host"):
		base.Kind = KindNetwork
		base.Severity = SeverityMedium
		base.SuggestedDelay = suggestDelay(cfg, opCtx.Attempt, 1.0)

	case strings.Contains(msg, "parse") || strings.Contains(msg, "unmarshal") ||
		strings.Contains(msg, "invalid character") || strings.Contains(msg, "unexpected end of json"):
		base.Kind = KindParsing
		base.Severity = SeverityLow
		base.Retryable = false

	default:
		base.SuggestedDelay = suggestDelay(cfg, opCtx.Attempt, 1.0)
	}

	return base
}

// isTimeout reports whether err is a timeout from the net stack or a context deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isNetwork reports whether err is a low-level connectivity failure.
func isNetwork(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH)
}

// suggestDelay computes min(maxDelay, baseDelay * 2^(attempt-1) * jitter) with
// the kind multiplier applied before clamping. Jitter stays inside
// [jitterMin, jitterMax] so delays never decrease between attempts.
func suggestDelay(cfg Config, attempt int, multiplier float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt-1))

	// #nosec G404 -- math/rand is fine for backoff jitter; no security impact.
	jitter := jitterMin + rand.Float64()*(jitterMax-jitterMin)

	delay := time.Duration(base * jitter * multiplier)
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
