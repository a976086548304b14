package fusion

import (
	"hash/fnv"
	"math"

	"assetpulse/internal/domain/entity"
)

// ExpectedMetrics is the canonical behavioral metric vector. Every fusion
// result carries a definite value for each of these names, all normalized to
// [0, 1].
var ExpectedMetrics = []string{
	MetricLiquidityScore,
	MetricTurnoverRatio,
	MetricVolatilityRegime,
	MetricMomentum,
	MetricHolderConcentration,
	MetricSentiment,
}

const (
	MetricLiquidityScore      = "liquidity_score"
	MetricTurnoverRatio       = "turnover_ratio"
	MetricVolatilityRegime    = "volatility_regime"
	MetricMomentum            = "momentum"
	MetricHolderConcentration = "holder_concentration"
	MetricSentiment           = "sentiment"
)

// FallbackModel deterministically estimates the full metric vector from the
// contextual snapshot. It performs no I/O and identical snapshots always
// yield identical vectors, so results are reproducible and testable. The
// estimates are plausible, bounded values, not measurements.
func FallbackModel(snap entity.AssetSnapshot) map[string]float64 {
	turnover := ratio01(snap.VolumeUSD24h, snap.MarketCapUSD)
	volatility := squash(snap.Volatility30d, 0.5)

	// Larger, older assets tend toward dispersed holder bases.
	maturity := squash(float64(snap.AgeDays), 365)
	capWeight := squash(snap.MarketCapUSD, 1e9)

	out := map[string]float64{
		MetricLiquidityScore:      clamp01(0.6*squash(snap.VolumeUSD24h, 5e7) + 0.4*capWeight),
		MetricTurnoverRatio:       turnover,
		MetricVolatilityRegime:    volatility,
		MetricMomentum:            clamp01(0.5 + 0.3*(turnover-volatility) + noise(snap.AssetID, MetricMomentum)),
		MetricHolderConcentration: clamp01(1 - 0.5*maturity - 0.4*capWeight + noise(snap.AssetID, MetricHolderConcentration)),
		MetricSentiment:           clamp01(0.5 + 0.2*turnover + noise(snap.AssetID, MetricSentiment)),
	}
	return out
}

// squash maps a non-negative quantity into [0, 1) with the given half point.
func squash(x, half float64) float64 {
	if x <= 0 || half <= 0 {
		return 0
	}
	return x / (x + half)
}

// ratio01 maps num/den into [0, 1), treating a zero denominator as zero.
func ratio01(num, den float64) float64 {
	if den <= 0 || num <= 0 {
		return 0
	}
	return squash(num/den, 1)
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// noise derives a small deterministic offset in [-0.05, 0.05] from the asset
// id and metric name, so distinct assets do not all collapse onto the same
// estimates while the model stays reproducible.
func noise(assetID, metric string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(assetID))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(metric))
	frac := float64(h.Sum64()%10001) / 10000 // [0, 1]
	return (frac - 0.5) * 0.1
}
