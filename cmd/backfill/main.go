package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"candleCache/config"
	"candleCache/internal/adapters/binanceclient"
	"candleCache/internal/adapters/dukascopy"
	"candleCache/internal/adapters/logger"
	"candleCache/internal/adapters/sqlite"
	"candleCache/internal/backfill"
	"candleCache/internal/domain"
	"candleCache/internal/ports"
)

func main() {
	instrumentFlag := flag.String("instrument", "", "instrument code to backfill (overrides BACKFILL_INSTRUMENT)")
	daysFlag := flag.Int("days", 0, "history horizon in days (overrides BACKFILL_DAYS_BACK)")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if *instrumentFlag != "" {
		cfg.BackfillInstrument = *instrumentFlag
	}
	if *daysFlag > 0 {
		cfg.BackfillDaysBack = *daysFlag
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	// 3. Remote candle cache (SQLite)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize candle cache: %v", err)
	}
	defer repo.Close()

	// 4. Upstream fetcher
	fetcher, err := newFetcher(cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize upstream fetcher: %v", err)
	}

	// 5. Run the job until done or interrupted
	job, err := backfill.New(backfill.Config{
		Logger:     appLogger,
		Fetcher:    fetcher,
		Cache:      repo,
		Instrument: cfg.BackfillInstrument,
		Timeframe:  domain.Timeframe(cfg.BackfillTimeframe),
		DaysBack:   cfg.BackfillDaysBack,
		ChunkDays:  cfg.BackfillChunkDays,
		ChunkPause: cfg.BackfillChunkPause,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize backfill job: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := job.Run(ctx); err != nil {
		log.Fatalf("Backfill aborted: %v", err)
	}

	if count, err := repo.Count(ctx, domain.NormalizeInstrument(cfg.BackfillInstrument)); err == nil {
		appLogger.Info(ctx, "Cache row count after backfill", map[string]interface{}{
			"instrument": domain.NormalizeInstrument(cfg.BackfillInstrument),
			"rows":       count,
		})
	}
}

// newFetcher selects the upstream adapter from configuration.
func newFetcher(cfg *config.Config, appLogger ports.Logger) (ports.HistoricalFetcher, error) {
	if cfg.Provider == config.ProviderBinance {
		return binanceclient.New(binanceclient.Config{
			APIKey:     cfg.BinanceAPIKey,
			SecretKey:  cfg.BinanceSecretKey,
			UseTestnet: cfg.BinanceTestnet,
			Logger:     appLogger,
		})
	}
	return dukascopy.New(dukascopy.Config{
		BaseURL: cfg.DukascopyBaseURL,
		Timeout: cfg.FetchTimeout,
		Logger:  appLogger,
	})
}
