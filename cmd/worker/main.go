package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	"assetpulse/internal/fusion"
	"assetpulse/internal/infra/analyzer"
	"assetpulse/internal/infra/sink/postgres"
	"assetpulse/internal/infra/snapshot"
	workerPkg "assetpulse/internal/infra/worker"
	"assetpulse/internal/observability/logging"
	"assetpulse/internal/resilience"
	"assetpulse/internal/resilience/circuitbreaker"
	"assetpulse/internal/resilience/classify"
	"assetpulse/internal/resilience/ratelimit"
	"assetpulse/internal/resilience/retry"
	"assetpulse/pkg/config"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	workerConfig := workerPkg.LoadConfigFromEnv(logger)
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("fan_out", workerConfig.FanOut),
		slog.Int("max_concurrent_assets", workerConfig.MaxConcurrentAssets),
		slog.Duration("fuse_timeout", workerConfig.FuseTimeout),
		slog.Int("assets", len(workerConfig.Assets)))

	if len(workerConfig.Assets) == 0 {
		logger.Error("no assets configured, set SWEEP_ASSETS")
		os.Exit(1)
	}

	// Shared resilience singletons, created once at startup and injected.
	clock := resilience.NewSystemClock()
	breakers := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig(), clock)
	limiters := ratelimit.NewKeyed(limiterOptions(), clock)
	executor := retry.NewExecutor(breakers, limiters, classify.DefaultConfig(), clock)

	analyzersFile, err := analyzer.LoadFile(workerConfig.AnalyzersFile)
	if err != nil {
		logger.Error("failed to load analyzers file", slog.Any("error", err))
		os.Exit(1)
	}
	analyzers := analyzersFile.Build(analyzer.NewClient(0))
	logger.Info("analyzers loaded", slog.Int("count", len(analyzers)))

	engineConfig := fusion.DefaultConfig()
	engineConfig.FanOut = workerConfig.FanOut
	engine := fusion.NewEngine(executor, analyzers, engineConfig)

	snapshotURL := config.GetEnvString("SNAPSHOT_URL", "http://localhost:8600")
	snapshots := snapshot.NewHTTPProvider(snapshotURL, 0)

	var sink workerPkg.ResultSink
	if dsn := config.GetEnvString("DATABASE_URL", ""); dsn != "" {
		database := initDatabase(logger, dsn)
		defer func() {
			if err := database.Close(); err != nil {
				logger.Error("failed to close database", slog.Any("error", err))
			}
		}()
		sink = postgres.NewSink(database)
		logger.Info("result sink initialized")
	} else {
		logger.Warn("DATABASE_URL not set, results will not be persisted")
	}

	sweeper := workerPkg.NewSweeper(engine, snapshots, sink, breakers, workerConfig, logger)

	startMetricsServer(ctx, logger, workerConfig.MetricsPort)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, breakers, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	location, err := time.LoadLocation(workerConfig.Timezone)
	if err != nil {
		logger.Error("failed to load timezone", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler := cron.New(cron.WithLocation(location))
	if _, err := scheduler.AddFunc(workerConfig.CronSchedule, func() {
		sweeper.Sweep(ctx)
	}); err != nil {
		logger.Error("failed to schedule sweep", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	healthServer.SetReady(true)
	logger.Info("worker started", slog.String("schedule", workerConfig.CronSchedule))

	// Run an initial sweep immediately so a fresh deployment produces
	// results before the first cron tick.
	sweeper.Sweep(ctx)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("scheduler stop timed out")
	}
	logger.Info("worker stopped")
}

// limiterOptions picks the limiter preset via environment, conservative by
// default.
func limiterOptions() ratelimit.Options {
	if config.GetEnvString("RATE_LIMIT_PRESET", "conservative") == "permissive" {
		return ratelimit.Permissive()
	}
	return ratelimit.Conservative()
}

// initDatabase opens the postgres connection for the result sink and
// verifies connectivity.
func initDatabase(logger *slog.Logger, dsn string) *sql.DB {
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	database.SetMaxOpenConns(10)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		logger.Error("failed to ping database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}
