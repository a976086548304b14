package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"assetpulse/internal/domain/entity"
	"assetpulse/internal/fusion"
	"assetpulse/internal/observability/metrics"
	"assetpulse/internal/resilience/circuitbreaker"
	"assetpulse/internal/resilience/ratelimit"
)

// SnapshotProvider supplies the contextual market snapshot for an asset.
// The worker treats it as an external collaborator; the fallback model only
// ever sees the returned value, never the provider.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, assetID string) (entity.AssetSnapshot, error)
}

// ResultSink accepts completed fusion results, idempotent on asset id.
type ResultSink interface {
	Save(ctx context.Context, result entity.FusionResult) error
}

// Sweeper runs one fusion pass over the configured asset list, bounded by a
// worker pool and paced by the batch pacer so upstream capacity is respected
// across assets.
type Sweeper struct {
	engine    *fusion.Engine
	snapshots SnapshotProvider
	sink      ResultSink
	breakers  *circuitbreaker.Registry
	pacer     *ratelimit.BatchPacer
	cfg       Config
	logger    *slog.Logger
}

// NewSweeper creates a sweeper. The sink may be nil to run without persistence.
func NewSweeper(engine *fusion.Engine, snapshots SnapshotProvider, sink ResultSink, breakers *circuitbreaker.Registry, cfg Config, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		engine:    engine,
		snapshots: snapshots,
		sink:      sink,
		breakers:  breakers,
		pacer:     ratelimit.NewBatchPacer(cfg.RunsPerSecond, cfg.MaxConcurrentAssets),
		cfg:       cfg,
		logger:    logger,
	}
}

// SweepStats summarizes one sweep.
type SweepStats struct {
	Assets    int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Sweep fuses every configured asset once. Individual asset failures are
// logged and counted, never fatal; the sweep always runs to completion
// unless the context is canceled.
func (s *Sweeper) Sweep(ctx context.Context) SweepStats {
	start := time.Now()
	stats := SweepStats{Assets: len(s.cfg.Assets)}

	results := make(chan bool, len(s.cfg.Assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrentAssets)

	for _, assetID := range s.cfg.Assets {
		assetID := assetID
		g.Go(func() error {
			if err := s.pacer.Wait(gctx); err != nil {
				results <- false
				return nil
			}
			results <- s.sweepOne(gctx, assetID)
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	for ok := range results {
		if ok {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}

	s.syncBreakerGauges()

	stats.Duration = time.Since(start)
	metrics.RecordSweep(stats.Duration, stats.Succeeded, stats.Failed)
	s.logger.Info("sweep completed",
		slog.Int("assets", stats.Assets),
		slog.Int("succeeded", stats.Succeeded),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", stats.Duration))
	return stats
}

// sweepOne fuses a single asset and persists the result.
func (s *Sweeper) sweepOne(ctx context.Context, assetID string) bool {
	runCtx := ctx
	if s.cfg.FuseTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.FuseTimeout)
		defer cancel()
	}

	snap, err := s.snapshots.Snapshot(runCtx, assetID)
	if err != nil {
		s.logger.Warn("snapshot unavailable, skipping asset",
			slog.String("asset_id", assetID),
			slog.Any("error", err))
		return false
	}

	result := s.engine.Fuse(runCtx, snap)

	if s.sink != nil {
		if err := s.sink.Save(runCtx, result); err != nil {
			s.logger.Error("failed to save fusion result",
				slog.String("asset_id", assetID),
				slog.Any("error", err))
			return false
		}
	}
	return true
}

// syncBreakerGauges reflects the current breaker snapshot into Prometheus.
func (s *Sweeper) syncBreakerGauges() {
	if s.breakers == nil {
		return
	}
	for dep, st := range s.breakers.Snapshot() {
		metrics.SetBreakerOpen(dep, st.IsOpen)
	}
}
