// Package backfill implements the batch job that walks a deep history
// window in fixed-size chunks and populates the remote candle cache.
package backfill

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"candleCache/internal/domain"
	"candleCache/internal/ports"
)

// Job fetches a long historical window chunk by chunk and upserts each
// chunk into the remote candle cache. Chunks are processed strictly in
// increasing time order; re-running the job is safe because chunk bounds are
// calendar-derived and every write is an idempotent upsert.
type Job struct {
	logger  ports.Logger
	fetcher ports.HistoricalFetcher
	cache   ports.CandleCache
	limiter *rate.Limiter

	instrument string
	timeframe  domain.Timeframe
	daysBack   int
	chunkDays  int
}

// Config holds configuration for one backfill run.
type Config struct {
	Logger  ports.Logger
	Fetcher ports.HistoricalFetcher
	Cache   ports.CandleCache

	Instrument string
	Timeframe  domain.Timeframe
	// DaysBack is the history horizon: the run covers [now-DaysBack, now).
	DaysBack int
	// ChunkDays is the per-request window width. Kept small (default 2) to
	// avoid upstream timeouts on large ranges.
	ChunkDays int
	// ChunkPause is the courtesy delay between upstream requests.
	ChunkPause time.Duration
}

// New creates a backfill job.
func New(cfg Config) (*Job, error) {
	if cfg.Logger == nil || cfg.Fetcher == nil || cfg.Cache == nil {
		return nil, fmt.Errorf("missing required dependencies for backfill job")
	}
	if cfg.Instrument == "" {
		return nil, fmt.Errorf("instrument is required for backfill job")
	}
	if cfg.DaysBack <= 0 {
		return nil, fmt.Errorf("daysBack must be positive")
	}

	chunkDays := cfg.ChunkDays
	if chunkDays <= 0 {
		chunkDays = 2
	}
	timeframe := cfg.Timeframe
	if timeframe == "" {
		timeframe = domain.TimeframeM1
	}

	// The limiter admits the first chunk immediately and paces the rest.
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.ChunkPause > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.ChunkPause), 1)
	}

	return &Job{
		logger:     cfg.Logger,
		fetcher:    cfg.Fetcher,
		cache:      cfg.Cache,
		limiter:    limiter,
		instrument: cfg.Instrument,
		timeframe:  timeframe,
		daysBack:   cfg.DaysBack,
		chunkDays:  chunkDays,
	}, nil
}

// Run walks the history window chunk by chunk until the cursor reaches now.
// A failed chunk is logged and skipped, never retried within the run; the
// next invocation re-requests the same calendar window and fills the gap.
// Run returns an error only when the context ends the job early.
func (j *Job) Run(ctx context.Context) error {
	symbol := domain.NormalizeInstrument(j.instrument)
	now := time.Now().UTC()
	chunk := time.Duration(j.chunkDays) * 24 * time.Hour

	currentFrom := now.AddDate(0, 0, -j.daysBack)
	totalChunks := 0
	failedChunks := 0
	totalRows := 0
	runStart := time.Now()

	j.logger.Info(ctx, "Starting backfill", map[string]interface{}{
		"instrument": symbol,
		"timeframe":  string(j.timeframe),
		"from":       currentFrom.Format(time.RFC3339),
		"to":         now.Format(time.RFC3339),
		"chunkDays":  j.chunkDays,
	})

	for currentFrom.Before(now) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("backfill interrupted: %w", err)
		}

		currentTo := currentFrom.Add(chunk)
		if currentTo.After(now) {
			currentTo = now
		}

		if err := j.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("backfill interrupted: %w", err)
		}

		totalChunks++
		candles, err := j.fetcher.FetchRange(ctx, symbol, j.timeframe, currentFrom, currentTo)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("backfill interrupted: %w", ctx.Err())
			}
			failedChunks++
			j.logger.Error(ctx, err, "Chunk fetch failed, continuing with next chunk", map[string]interface{}{
				"instrument": symbol,
				"from":       currentFrom.Format(time.RFC3339),
				"to":         currentTo.Format(time.RFC3339),
			})
			currentFrom = currentTo
			continue
		}

		if len(candles) > 0 {
			candles = domain.SortCandles(candles)
			if err := j.cache.Upsert(ctx, symbol, candles); err != nil {
				failedChunks++
				j.logger.Error(ctx, err, "Chunk upsert failed, continuing with next chunk", map[string]interface{}{
					"instrument": symbol,
					"from":       currentFrom.Format(time.RFC3339),
					"count":      len(candles),
				})
			} else {
				totalRows += len(candles)
			}
		}

		j.logger.Debug(ctx, "Chunk done", map[string]interface{}{
			"instrument": symbol,
			"from":       currentFrom.Format(time.RFC3339),
			"to":         currentTo.Format(time.RFC3339),
			"rows":       len(candles),
		})

		currentFrom = currentTo
	}

	j.logger.Info(ctx, "Backfill complete", map[string]interface{}{
		"instrument": symbol,
		"chunks":     totalChunks,
		"failed":     failedChunks,
		"rows":       totalRows,
		"elapsed":    time.Since(runStart).Round(time.Second).String(),
	})
	return nil
}
