// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as MetricSample and FusionResult,
// along with their validation rules and domain-specific errors.
package entity

import "time"

// Provenance marks where a metric value came from.
type Provenance string

const (
	// ProvenanceReal marks a metric measured by a sub-analyzer.
	ProvenanceReal Provenance = "real"

	// ProvenanceFallback marks a metric estimated by the deterministic fallback model.
	ProvenanceFallback Provenance = "fallback"
)

// MetricSample represents a single named metric with its confidence and origin.
type MetricSample struct {
	Name       string
	Value      float64
	Confidence float64 // in [0, 1]
	Provenance Provenance
}

// Strategy identifies how a FusionResult was assembled from real and fallback metrics.
type Strategy string

const (
	// StrategyRealOnly means every expected metric was measured by a sub-analyzer.
	StrategyRealOnly Strategy = "real_only"

	// StrategyRealPrimary means most metrics are real, gaps filled from the fallback model.
	StrategyRealPrimary Strategy = "real_primary"

	// StrategyHybrid means real and fallback metrics are blended with cross-metric
	// adjustments.
	StrategyHybrid Strategy = "hybrid"

	// StrategyMathematicalFallback means too few real metrics arrived and the whole
	// vector was computed from the fallback model.
	StrategyMathematicalFallback Strategy = "mathematical_fallback"

	// StrategyErrorFallback means every sub-analyzer failed terminally and the result
	// is a pure fallback vector at minimal confidence.
	StrategyErrorFallback Strategy = "error_fallback"
)

// FusionResult is the composite outcome of one fusion run for a single asset.
// It is immutable once returned by the engine.
type FusionResult struct {
	AssetID           string
	RunID             string
	Metrics           map[string]MetricSample
	OverallConfidence float64 // in [0, 1]
	Coverage          float64 // obtained real metrics / expected metrics
	Strategy          Strategy
	ComputedAt        time.Time
}

// AssetSnapshot is the contextual market snapshot supplied by the caller.
// The fallback model derives metric estimates from it; it must be treated as
// read-only and performs no I/O.
type AssetSnapshot struct {
	AssetID       string
	VolumeUSD24h  float64
	MarketCapUSD  float64
	Volatility30d float64
	AgeDays       int
}
