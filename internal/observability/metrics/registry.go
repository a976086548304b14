// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fusion metrics track fusion run outcomes and quality
var (
	// FusionRunsTotal counts fusion runs by selected strategy
	FusionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fusion_runs_total",
			Help: "Total number of fusion runs by blending strategy",
		},
		[]string{"strategy"},
	)

	// FusionCoverage observes the fraction of metrics obtained from real sources
	FusionCoverage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fusion_coverage_ratio",
			Help:    "Fraction of expected metrics obtained from real sub-analyzers",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// FusionDuration measures end-to-end fusion run duration in seconds
	FusionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fusion_run_duration_seconds",
			Help:    "Fusion run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Analyzer metrics track sub-analyzer reliability
var (
	// AnalyzerCallsTotal counts analyzer invocation outcomes
	AnalyzerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_calls_total",
			Help: "Total number of sub-analyzer calls by analyzer and outcome",
		},
		[]string{"analyzer", "outcome"},
	)

	// AnalyzerFailuresTotal counts terminal analyzer failures by error kind
	AnalyzerFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_failures_total",
			Help: "Terminal sub-analyzer failures by analyzer and error kind",
		},
		[]string{"analyzer", "kind"},
	)
)

// Resilience metrics surface breaker and sink health
var (
	// BreakerOpen reports whether the breaker for a dependency is open (1) or closed (0)
	BreakerOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_open",
			Help: "Circuit breaker state per dependency (1 = open)",
		},
		[]string{"dependency"},
	)

	// SinkSavesTotal counts result sink writes by status
	SinkSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_saves_total",
			Help: "Total number of fusion result saves by status",
		},
		[]string{"status"},
	)
)

// Worker metrics track scheduled sweep behavior
var (
	// SweepDuration measures the duration of one full asset sweep in seconds
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Duration of a full scheduled fusion sweep in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// SweepAssetsTotal counts assets processed by sweep outcome
	SweepAssetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_assets_total",
			Help: "Assets processed by scheduled sweeps, by outcome",
		},
		[]string{"outcome"},
	)
)
