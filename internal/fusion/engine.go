// Package fusion blends partial measurements from unreliable sub-analyzers
// into a single confidence-scored metric vector. Each sub-analyzer runs
// through the retry executor; whatever arrives is merged, coverage is
// measured, and a blending strategy fills the gaps from the deterministic
// fallback model.
package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"assetpulse/internal/domain/entity"
	"assetpulse/internal/observability/metrics"
	"assetpulse/internal/observability/tracing"
	"assetpulse/internal/resilience/classify"
	"assetpulse/internal/resilience/retry"

	"go.opentelemetry.io/otel/attribute"
)

// Cross-metric adjustment heuristics for the hybrid strategy. The ×1.2 boost
// is carried over from the operational tuning of the source system; it is a
// documented heuristic, not a derived law, and both knobs are overridable
// through Config.
const (
	DefaultHybridNudgeFactor        = 1.2
	DefaultHybridDeviationThreshold = 0.25
)

// Confidence floors and ceilings for degraded strategies.
const (
	DefaultFallbackConfidence      = 0.3
	DefaultErrorFallbackConfidence = 0.15
	DefaultHybridCeiling           = 0.6
)

// Config holds the tunable parameters of the fusion engine.
type Config struct {
	// FanOut bounds how many sub-analyzers run concurrently (min 1)
	FanOut int

	// MaxAttempts caps attempts per sub-analyzer call
	MaxAttempts int

	// AnalyzerTimeout is the deadline applied to each sub-analyzer call
	AnalyzerTimeout time.Duration

	// Metrics is the expected metric vector; defaults to ExpectedMetrics
	Metrics []string

	// HybridCeiling caps overall confidence for hybrid results
	HybridCeiling float64

	// FallbackConfidence is pinned on mathematical_fallback results and
	// attached to fallback-filled samples
	FallbackConfidence float64

	// ErrorFallbackConfidence is pinned on error_fallback results
	ErrorFallbackConfidence float64

	// HybridDeviationThreshold is the absolute real-vs-predicted gap beyond
	// which correlated metrics get nudged
	HybridDeviationThreshold float64

	// HybridNudgeFactor bounds the multiplicative nudge applied to
	// correlated fallback metrics
	HybridNudgeFactor float64

	// Correlated maps a metric to the metrics nudged when it deviates
	Correlated map[string][]string
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		FanOut:                   4,
		MaxAttempts:              3,
		AnalyzerTimeout:          15 * time.Second,
		Metrics:                  ExpectedMetrics,
		HybridCeiling:            DefaultHybridCeiling,
		FallbackConfidence:       DefaultFallbackConfidence,
		ErrorFallbackConfidence:  DefaultErrorFallbackConfidence,
		HybridDeviationThreshold: DefaultHybridDeviationThreshold,
		HybridNudgeFactor:        DefaultHybridNudgeFactor,
		Correlated: map[string][]string{
			MetricMomentum:       {MetricSentiment},
			MetricLiquidityScore: {MetricTurnoverRatio},
		},
	}
}

// Engine runs sub-analyzers through the retry executor and fuses their
// output. It is safe for concurrent use across assets.
type Engine struct {
	executor  *retry.Executor
	analyzers []Analyzer
	cfg       Config
	logger    *slog.Logger
}

// NewEngine creates a fusion engine over the given analyzers.
func NewEngine(executor *retry.Executor, analyzers []Analyzer, cfg Config) *Engine {
	if cfg.FanOut < 1 {
		cfg.FanOut = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = ExpectedMetrics
	}
	return &Engine{
		executor:  executor,
		analyzers: analyzers,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// analyzerOutcome is the per-analyzer result collected before merging.
type analyzerOutcome struct {
	values  map[string]float64
	failure *classify.ErrorAnalysis
}

// Fuse computes the composite metric vector for one asset. It never returns
// an error and never panics: every failure path degrades to a defined
// strategy with an explicit confidence. Canceling ctx aborts outstanding
// analyzer calls and the result is computed over whatever had completed.
func (e *Engine) Fuse(ctx context.Context, snap entity.AssetSnapshot) (result entity.FusionResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in fusion engine, degrading to error fallback",
				slog.String("asset_id", snap.AssetID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			result = entity.FusionResult{
				AssetID:           snap.AssetID,
				RunID:             uuid.New().String(),
				Metrics:           e.fallbackVector(FallbackModel(snap), e.cfg.ErrorFallbackConfidence),
				OverallConfidence: e.cfg.ErrorFallbackConfidence,
				Strategy:          entity.StrategyErrorFallback,
				ComputedAt:        time.Now(),
			}
		}
	}()
	return e.fuse(ctx, snap)
}

func (e *Engine) fuse(ctx context.Context, snap entity.AssetSnapshot) entity.FusionResult {
	start := time.Now()
	runID := uuid.New().String()
	logger := e.logger.With(
		slog.String("run_id", runID),
		slog.String("asset_id", snap.AssetID))

	ctx, span := tracing.GetTracer().Start(ctx, "fusion.run")
	defer span.End()
	span.SetAttributes(attribute.String("asset.id", snap.AssetID))

	outcomes := e.runAnalyzers(ctx, snap, logger)

	result := e.assemble(snap, runID, outcomes, logger)
	result.ComputedAt = start

	span.SetAttributes(
		attribute.String("fusion.strategy", string(result.Strategy)),
		attribute.Float64("fusion.coverage", result.Coverage))
	metrics.RecordFusionRun(string(result.Strategy), result.Coverage, time.Since(start))

	logger.Info("fusion run completed",
		slog.String("strategy", string(result.Strategy)),
		slog.Float64("coverage", result.Coverage),
		slog.Float64("overall_confidence", result.OverallConfidence),
		slog.Duration("duration", time.Since(start)))
	return result
}

// runAnalyzers fans the sub-analyzers out through the retry executor,
// bounded by the configured fan-out limit. Outcomes land in declaration
// order so the later merge is deterministic.
func (e *Engine) runAnalyzers(ctx context.Context, snap entity.AssetSnapshot, logger *slog.Logger) []analyzerOutcome {
	outcomes := make([]analyzerOutcome, len(e.analyzers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.FanOut)

	for i, a := range e.analyzers {
		i, a := i, a
		g.Go(func() error {
			outcome := e.runOne(gctx, a, snap, logger)
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()
	return outcomes
}

// runOne executes a single analyzer with retries, a per-call deadline, and
// panic recovery.
func (e *Engine) runOne(ctx context.Context, a Analyzer, snap entity.AssetSnapshot, logger *slog.Logger) analyzerOutcome {
	opCtx := classify.OperationContext{
		Operation:     "analyze",
		AssetID:       snap.AssetID,
		DependencyKey: a.Name,
		MaxAttempts:   e.cfg.MaxAttempts,
	}

	res := retry.Execute(ctx, e.executor, opCtx, func(ctx context.Context) (map[string]float64, error) {
		callCtx := ctx
		if e.cfg.AnalyzerTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.cfg.AnalyzerTimeout)
			defer cancel()
		}
		return e.safeAnalyze(callCtx, a, snap)
	})

	if !res.OK {
		metrics.RecordAnalyzerFailure(a.Name, string(res.Failure.Kind))
		logger.Warn("sub-analyzer failed",
			slog.String("analyzer", a.Name),
			slog.String("kind", string(res.Failure.Kind)),
			slog.String("message", res.Failure.Message))
		return analyzerOutcome{failure: res.Failure}
	}

	metrics.RecordAnalyzerSuccess(a.Name)
	return analyzerOutcome{values: res.Value}
}

// safeAnalyze invokes the analyzer function, converting panics into errors so
// a misbehaving analyzer degrades like any other failure.
func (e *Engine) safeAnalyze(ctx context.Context, a Analyzer, snap entity.AssetSnapshot) (values map[string]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in sub-analyzer",
				slog.String("analyzer", a.Name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			values = nil
			err = fmt.Errorf("analyzer %s panicked: %v", a.Name, r)
		}
	}()
	return a.Analyze(ctx, snap.AssetID, snap)
}

// assemble merges analyzer outcomes, measures coverage, selects the blending
// strategy, and fills gaps from the fallback model.
func (e *Engine) assemble(snap entity.AssetSnapshot, runID string, outcomes []analyzerOutcome, logger *slog.Logger) entity.FusionResult {
	expected := make(map[string]bool, len(e.cfg.Metrics))
	for _, name := range e.cfg.Metrics {
		expected[name] = true
	}

	// First-writer-wins merge in analyzer declaration order.
	merged := make(map[string]entity.MetricSample, len(e.cfg.Metrics))
	allFailed := true
	for i, a := range e.analyzers {
		out := outcomes[i]
		if out.failure != nil {
			continue
		}
		allFailed = false
		for _, name := range a.Metrics {
			v, ok := out.values[name]
			if !ok || !expected[name] {
				continue
			}
			if _, taken := merged[name]; taken {
				continue
			}
			merged[name] = entity.MetricSample{
				Name:       name,
				Value:      v,
				Confidence: a.Confidence,
				Provenance: entity.ProvenanceReal,
			}
		}
	}

	n := len(e.cfg.Metrics)
	coverage := float64(len(merged)) / float64(n)
	fallback := FallbackModel(snap)

	result := entity.FusionResult{
		AssetID:  snap.AssetID,
		RunID:    runID,
		Coverage: coverage,
	}

	switch {
	case allFailed && len(e.analyzers) > 0:
		result.Strategy = entity.StrategyErrorFallback
		result.Coverage = 0
		result.Metrics = e.fallbackVector(fallback, e.cfg.ErrorFallbackConfidence)
		result.OverallConfidence = e.cfg.ErrorFallbackConfidence

	case coverage == 1.0:
		result.Strategy = entity.StrategyRealOnly
		result.Metrics = merged
		result.OverallConfidence = averageConfidence(merged)

	case coverage >= 0.7:
		result.Strategy = entity.StrategyRealPrimary
		result.OverallConfidence = averageConfidence(merged)
		e.fillMissing(merged, fallback)
		result.Metrics = merged

	case coverage >= 0.3:
		result.Strategy = entity.StrategyHybrid
		e.fillMissing(merged, fallback)
		e.applyHybridNudges(merged, fallback, logger)
		result.Metrics = merged
		result.OverallConfidence = math.Min(averageConfidence(merged), e.cfg.HybridCeiling)

	default:
		result.Strategy = entity.StrategyMathematicalFallback
		result.Metrics = e.fallbackVector(fallback, e.cfg.FallbackConfidence)
		result.OverallConfidence = e.cfg.FallbackConfidence
	}

	return result
}

// fallbackVector builds a complete vector from the fallback model at the
// given pinned confidence.
func (e *Engine) fallbackVector(fallback map[string]float64, confidence float64) map[string]entity.MetricSample {
	out := make(map[string]entity.MetricSample, len(e.cfg.Metrics))
	for _, name := range e.cfg.Metrics {
		out[name] = entity.MetricSample{
			Name:       name,
			Value:      fallback[name],
			Confidence: confidence,
			Provenance: entity.ProvenanceFallback,
		}
	}
	return out
}

// fillMissing completes the merged vector with fallback estimates so no
// metric is ever left undefined.
func (e *Engine) fillMissing(merged map[string]entity.MetricSample, fallback map[string]float64) {
	for _, name := range e.cfg.Metrics {
		if _, ok := merged[name]; ok {
			continue
		}
		merged[name] = entity.MetricSample{
			Name:       name,
			Value:      fallback[name],
			Confidence: e.cfg.FallbackConfidence,
			Provenance: entity.ProvenanceFallback,
		}
	}
}

// applyHybridNudges adjusts fallback-filled metrics correlated with real
// metrics that deviate strongly from their predicted values. The nudge is a
// bounded multiplicative factor; values stay clamped to [0, 1].
func (e *Engine) applyHybridNudges(merged map[string]entity.MetricSample, fallback map[string]float64, logger *slog.Logger) {
	factor := math.Min(e.cfg.HybridNudgeFactor, DefaultHybridNudgeFactor)
	for name, correlated := range e.cfg.Correlated {
		sample, ok := merged[name]
		if !ok || sample.Provenance != entity.ProvenanceReal {
			continue
		}
		if math.Abs(sample.Value-fallback[name]) <= e.cfg.HybridDeviationThreshold {
			continue
		}
		for _, target := range correlated {
			t, ok := merged[target]
			if !ok || t.Provenance != entity.ProvenanceFallback {
				continue
			}
			t.Value = clamp01(t.Value * factor)
			merged[target] = t
			logger.Debug("hybrid nudge applied",
				slog.String("source_metric", name),
				slog.String("target_metric", target),
				slog.Float64("factor", factor))
		}
	}
}

// averageConfidence is the metric-count-weighted mean confidence of the
// contributing samples.
func averageConfidence(samples map[string]entity.MetricSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.Confidence
	}
	return sum / float64(len(samples))
}
