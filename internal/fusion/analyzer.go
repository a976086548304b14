package fusion

import (
	"context"

	"assetpulse/internal/domain/entity"
)

// AnalyzeFunc queries one upstream source and returns a partial metric map.
// Implementations must respect context cancellation and may be invoked
// repeatedly by the retry executor.
type AnalyzeFunc func(ctx context.Context, assetID string, snap entity.AssetSnapshot) (map[string]float64, error)

// Analyzer describes one pluggable sub-analyzer: the subset of the metric
// vector it produces and the fixed confidence attached to its measurements.
type Analyzer struct {
	// Name identifies the analyzer in logs, metrics, and breaker keys
	Name string

	// Confidence is attached to every metric this analyzer produces, in [0, 1]
	Confidence float64

	// Metrics lists the metric names this analyzer is expected to produce.
	// Values outside this list are discarded.
	Metrics []string

	// Analyze performs the upstream call
	Analyze AnalyzeFunc
}
