package ports

import (
	"context"
	"time"

	"candleCache/internal/domain"
)

// KeyValueStore is the persistence interface required by the local candle
// store. Values are opaque byte blobs; keys are plain strings.
type KeyValueStore interface {
	// Get retrieves the value stored under key.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, overwriting any existing value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Keys returns all keys matching the given glob-style pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// CandleCache is the server-side persistent candle cache, keyed by
// (instrument, time). All writes are idempotent upserts.
type CandleCache interface {
	// QueryRange returns cached candles for instrument within [from, to],
	// ordered ascending by time.
	QueryRange(ctx context.Context, instrument string, from, to time.Time) ([]domain.Candle, error)
	// Upsert inserts or updates the given candles for instrument, using
	// (instrument, time) as the conflict target. Re-applying the same batch
	// is safe and produces no duplicate rows.
	Upsert(ctx context.Context, instrument string, candles []domain.Candle) error
}

// LocalCandleStore is the first cache tier consulted by the resolution
// service. Reads apply the coverage check and partial-hit fallback; writes
// merge and widen the stored entry. Storage failures never surface to the
// caller — they degrade to a miss or a dropped write.
type LocalCandleStore interface {
	// Read returns candles for the key filtered to [from, to] and whether
	// the lookup counts as a hit. A miss returns (nil, false).
	Read(ctx context.Context, instrument string, timeframe domain.Timeframe, from, to int64) ([]domain.Candle, bool)
	// Write merges candles into the entry for the key. Empty input is a no-op.
	Write(ctx context.Context, instrument string, timeframe domain.Timeframe, candles []domain.Candle)
}
