// Package postgres persists fusion results. One row is kept per asset;
// writes are idempotent on asset id and protected by a database circuit
// breaker so a dead database cannot stall a sweep.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"assetpulse/internal/domain/entity"
	"assetpulse/internal/observability/metrics"
	"assetpulse/internal/resilience/circuitbreaker"
)

// Sink upserts FusionResult records into the fusion_results table.
type Sink struct {
	db     *circuitbreaker.DBBreaker
	logger *slog.Logger
}

// NewSink creates a sink over the given database handle, wrapping it with the
// default database circuit breaker.
func NewSink(db *sql.DB) *Sink {
	return &Sink{
		db:     circuitbreaker.NewDBBreaker(db, circuitbreaker.DefaultDBBreakerConfig()),
		logger: slog.Default(),
	}
}

const upsertQuery = `
INSERT INTO fusion_results (asset_id, run_id, strategy, coverage, overall_confidence, metrics, computed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (asset_id) DO UPDATE SET
	run_id             = EXCLUDED.run_id,
	strategy           = EXCLUDED.strategy,
	coverage           = EXCLUDED.coverage,
	overall_confidence = EXCLUDED.overall_confidence,
	metrics            = EXCLUDED.metrics,
	computed_at        = EXCLUDED.computed_at`

// Save upserts one fusion result, keyed by asset id. Saving the same result
// twice is a no-op beyond refreshing the row.
func (s *Sink) Save(ctx context.Context, result entity.FusionResult) error {
	payload, err := json.Marshal(result.Metrics)
	if err != nil {
		metrics.RecordSinkSave(false)
		return fmt.Errorf("marshal metrics for asset %s: %w", result.AssetID, err)
	}

	_, err = s.db.ExecContext(ctx, upsertQuery,
		result.AssetID,
		result.RunID,
		string(result.Strategy),
		result.Coverage,
		result.OverallConfidence,
		payload,
		result.ComputedAt,
	)
	if err != nil {
		metrics.RecordSinkSave(false)
		return fmt.Errorf("save fusion result for asset %s: %w", result.AssetID, err)
	}

	metrics.RecordSinkSave(true)
	s.logger.Debug("fusion result saved",
		slog.String("asset_id", result.AssetID),
		slog.String("run_id", result.RunID),
		slog.String("strategy", string(result.Strategy)))
	return nil
}
