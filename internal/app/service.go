// Package app contains the candle resolution service, the orchestrator of
// the two cache tiers and the upstream datafeed.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"candleCache/config"
	"candleCache/internal/domain"
	"candleCache/internal/ports"
)

// CandleService resolves candle requests at the lowest latency and cost,
// keeping both cache tiers warm. Resolution order: local store, remote
// cache, upstream fetch; results are written back into whichever tiers
// missed.
type CandleService struct {
	cfg     *config.Config
	logger  ports.Logger
	local   ports.LocalCandleStore
	remote  ports.CandleCache
	fetcher ports.HistoricalFetcher

	// Tracks fire-and-forget cache write-backs so shutdown can drain them.
	writeBacks sync.WaitGroup
}

// NewCandleService creates a new resolution service instance.
func NewCandleService(
	cfg *config.Config,
	logger ports.Logger,
	local ports.LocalCandleStore,
	remote ports.CandleCache,
	fetcher ports.HistoricalFetcher,
) (*CandleService, error) {

	// Validate dependencies. The local store is optional: without it the
	// service degrades to remote-cache-plus-upstream resolution.
	if cfg == nil || logger == nil || remote == nil || fetcher == nil {
		return nil, fmt.Errorf("missing required dependencies for CandleService")
	}
	if cfg.CoverageRatio <= 0 || cfg.CoverageRatio > 1 {
		return nil, fmt.Errorf("configuration CoverageRatio must be between 0 and 1")
	}
	if cfg.UpsertBatchSize <= 0 {
		return nil, fmt.Errorf("configuration UpsertBatchSize must be positive")
	}
	if cfg.FetchTimeout <= 0 {
		return nil, fmt.Errorf("configuration FetchTimeout must be positive")
	}

	return &CandleService{
		cfg:     cfg,
		logger:  logger,
		local:   local,
		remote:  remote,
		fetcher: fetcher,
	}, nil
}

// GetCandles returns candles for the instrument within [from, to].
// "No data in range" is never an error: upstream and cache failures degrade
// to whatever cached data exists, or to an empty result. An error is
// returned only when the caller's context ends the request.
func (s *CandleService) GetCandles(ctx context.Context, instrument string, timeframe domain.Timeframe, from, to time.Time) ([]domain.Candle, error) {
	symbol := domain.NormalizeInstrument(instrument)
	fromSec, toSec := from.Unix(), to.Unix()

	// 1. Local store.
	if s.local != nil {
		if candles, ok := s.local.Read(ctx, symbol, timeframe, fromSec, toSec); ok {
			s.logger.Debug(ctx, "Local store hit", map[string]interface{}{"instrument": symbol, "count": len(candles)})
			return candles, nil
		}
	}

	// 2. Remote cache with the coverage-based freshness decision.
	expectedCount := (toSec - fromSec) / timeframe.Seconds()

	cached, cacheErr := s.remote.QueryRange(ctx, symbol, from, to)
	if cacheErr != nil {
		s.logger.Warn(ctx, "Remote cache query failed, continuing to upstream", map[string]interface{}{"instrument": symbol, "error": cacheErr.Error()})
	}
	if cacheErr == nil && expectedCount > 0 && float64(len(cached)) >= s.cfg.CoverageRatio*float64(expectedCount) {
		s.logger.Debug(ctx, "Remote cache hit", map[string]interface{}{
			"instrument": symbol,
			"count":      len(cached),
			"expected":   expectedCount,
		})
		if s.local != nil {
			s.local.Write(ctx, symbol, timeframe, cached)
		}
		return cached, nil
	}

	// 3. Upstream fetch, bounded so a stalled provider cannot hang the
	// request past the configured timeout.
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	fetched, fetchErr := s.fetcher.FetchRange(fetchCtx, symbol, timeframe, from, to)
	if fetchErr != nil {
		if errors.Is(fetchErr, context.Canceled) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn(ctx, "Upstream fetch failed, falling back to cache", map[string]interface{}{"instrument": symbol, "error": fetchErr.Error()})
	}
	if len(fetched) == 0 {
		// Fall back to the stale cache even below the coverage threshold;
		// an empty result beats an error for "no data in range".
		if len(cached) > 0 {
			return cached, nil
		}
		return []domain.Candle{}, nil
	}

	// Provider ordering is assumed ascending but not trusted.
	fetched = domain.SortCandles(fetched)

	s.writeBackRemote(symbol, fetched)
	if s.local != nil {
		s.local.Write(ctx, symbol, timeframe, fetched)
	}

	s.logger.Info(ctx, "Upstream fetch served", map[string]interface{}{
		"instrument": symbol,
		"count":      len(fetched),
		"from":       from.Format(time.RFC3339),
		"to":         to.Format(time.RFC3339),
	})
	return fetched, nil
}

// writeBackRemote upserts candles into the remote cache in bounded batches
// without holding the request open. Failures are logged, not retried; every
// write is an idempotent upsert so a later request simply redoes the work.
func (s *CandleService) writeBackRemote(symbol string, candles []domain.Candle) {
	s.writeBacks.Add(1)
	go func() {
		defer s.writeBacks.Done()

		// Detached from the request lifecycle on purpose: the response is
		// not held open waiting for cache population.
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FetchTimeout)
		defer cancel()

		batchSize := s.cfg.UpsertBatchSize
		for start := 0; start < len(candles); start += batchSize {
			end := start + batchSize
			if end > len(candles) {
				end = len(candles)
			}
			if err := s.remote.Upsert(ctx, symbol, candles[start:end]); err != nil {
				s.logger.Error(ctx, err, "Remote cache write-back failed", map[string]interface{}{
					"instrument": symbol,
					"batch":      fmt.Sprintf("%d-%d", start, end),
				})
			}
		}
	}()
}

// Wait blocks until all in-flight cache write-backs have finished. Called
// during shutdown to avoid losing the tail of the cache population.
func (s *CandleService) Wait() {
	s.writeBacks.Wait()
}
