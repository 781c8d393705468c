package ports

import (
	"context"
	"time"

	"candleCache/internal/domain"
)

// HistoricalFetcher retrieves raw OHLCV bars from an upstream datafeed.
// Implementations translate provider-native timestamps and field names into
// domain.Candle (Unix seconds). Callers must not assume the returned slice
// is sorted.
type HistoricalFetcher interface {
	// FetchRange returns all bars for instrument/timeframe within [from, to].
	// An empty range is reported as an empty slice, not an error.
	FetchRange(ctx context.Context, instrument string, timeframe domain.Timeframe, from, to time.Time) ([]domain.Candle, error)
}
