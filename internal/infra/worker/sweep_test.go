package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetpulse/internal/domain/entity"
	"assetpulse/internal/fusion"
	"assetpulse/internal/resilience"
	"assetpulse/internal/resilience/circuitbreaker"
	"assetpulse/internal/resilience/classify"
	"assetpulse/internal/resilience/ratelimit"
	"assetpulse/internal/resilience/retry"
)

type fakeSnapshots struct {
	failing map[string]bool
}

func (f *fakeSnapshots) Snapshot(_ context.Context, assetID string) (entity.AssetSnapshot, error) {
	if f.failing[assetID] {
		return entity.AssetSnapshot{}, errors.New("snapshot service down")
	}
	return entity.AssetSnapshot{
		AssetID:      assetID,
		VolumeUSD24h: 1e7,
		MarketCapUSD: 1e9,
		AgeDays:      100,
	}, nil
}

type fakeSink struct {
	mu    sync.Mutex
	saved []entity.FusionResult
	err   error
}

func (f *fakeSink) Save(_ context.Context, result entity.FusionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, result)
	return nil
}

func (f *fakeSink) results() []entity.FusionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.FusionResult, len(f.saved))
	copy(out, f.saved)
	return out
}

func newSweepEngine() (*fusion.Engine, *circuitbreaker.Registry) {
	clock := resilience.NewManualClock(time.Now())
	breakers := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig(), clock)
	limiters := ratelimit.NewKeyed(ratelimit.Options{}, clock)
	executor := retry.NewExecutor(breakers, limiters, classify.DefaultConfig(), clock)

	all := fusion.Analyzer{
		Name:       "all-in-one",
		Confidence: 0.9,
		Metrics:    fusion.ExpectedMetrics,
		Analyze: func(context.Context, string, entity.AssetSnapshot) (map[string]float64, error) {
			out := make(map[string]float64, len(fusion.ExpectedMetrics))
			for _, m := range fusion.ExpectedMetrics {
				out[m] = 0.5
			}
			return out, nil
		},
	}
	return fusion.NewEngine(executor, []fusion.Analyzer{all}, fusion.DefaultConfig()), breakers
}

func sweepConfig(assets ...string) Config {
	cfg := DefaultConfig()
	cfg.Assets = assets
	cfg.RunsPerSecond = 1000
	return cfg
}

func TestSweep_FusesAndPersistsEveryAsset(t *testing.T) {
	engine, breakers := newSweepEngine()
	sink := &fakeSink{}
	s := NewSweeper(engine, &fakeSnapshots{}, sink, breakers, sweepConfig("btc", "eth", "sol"), discardLogger())

	stats := s.Sweep(context.Background())

	assert.Equal(t, 3, stats.Assets)
	assert.Equal(t, 3, stats.Succeeded)
	assert.Equal(t, 0, stats.Failed)

	saved := sink.results()
	require.Len(t, saved, 3)
	ids := make(map[string]bool)
	for _, r := range saved {
		ids[r.AssetID] = true
		assert.Equal(t, entity.StrategyRealOnly, r.Strategy)
	}
	assert.True(t, ids["btc"] && ids["eth"] && ids["sol"])
}

func TestSweep_SnapshotFailureSkipsAsset(t *testing.T) {
	engine, breakers := newSweepEngine()
	sink := &fakeSink{}
	snapshots := &fakeSnapshots{failing: map[string]bool{"eth": true}}
	s := NewSweeper(engine, snapshots, sink, breakers, sweepConfig("btc", "eth"), discardLogger())

	stats := s.Sweep(context.Background())

	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, sink.results(), 1)
	assert.Equal(t, "btc", sink.results()[0].AssetID)
}

func TestSweep_SinkFailureCountsAsFailed(t *testing.T) {
	engine, breakers := newSweepEngine()
	sink := &fakeSink{err: errors.New("db down")}
	s := NewSweeper(engine, &fakeSnapshots{}, sink, breakers, sweepConfig("btc"), discardLogger())

	stats := s.Sweep(context.Background())

	assert.Equal(t, 0, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
}

func TestSweep_NilSinkRunsWithoutPersistence(t *testing.T) {
	engine, breakers := newSweepEngine()
	s := NewSweeper(engine, &fakeSnapshots{}, nil, breakers, sweepConfig("btc", "eth"), discardLogger())

	stats := s.Sweep(context.Background())

	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 0, stats.Failed)
}

func TestSweep_EmptyAssetList(t *testing.T) {
	engine, breakers := newSweepEngine()
	s := NewSweeper(engine, &fakeSnapshots{}, nil, breakers, sweepConfig(), discardLogger())

	stats := s.Sweep(context.Background())

	assert.Equal(t, 0, stats.Assets)
	assert.Equal(t, 0, stats.Succeeded)
	assert.Equal(t, 0, stats.Failed)
}
