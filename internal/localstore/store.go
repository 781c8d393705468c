// Package localstore implements the first cache tier: one merged, sorted
// candle entry per (instrument, timeframe) key in a key-value store, with
// watermark time bounds that only ever widen.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"candleCache/internal/domain"
	"candleCache/internal/ports"
)

const keyPrefix = "candles:"

// Compile-time interface check.
var _ ports.LocalCandleStore = (*Store)(nil)

// Store reads and writes cache entries through a KeyValueStore. Storage
// failures are logged and degrade to a miss (read) or a dropped write —
// they never propagate to the caller.
type Store struct {
	kv     ports.KeyValueStore
	logger ports.Logger

	boundsTolerance float64 // fraction of the requested range
	minPartial      int     // minimum overlap to serve a partial hit
}

// Config holds configuration for the local candle store.
type Config struct {
	KV     ports.KeyValueStore
	Logger ports.Logger
	// BoundsTolerance is the fraction of the requested range by which the
	// stored watermarks may fall short of the request and still count as
	// covered. Zero or negative selects the default of 0.1.
	BoundsTolerance float64
	// MinPartialCandles is the smallest filtered overlap worth returning
	// when the coverage check fails. Zero or negative selects the default
	// of 10.
	MinPartialCandles int
}

// New creates a local candle store over the given key-value store.
func New(cfg Config) (*Store, error) {
	if cfg.KV == nil {
		return nil, fmt.Errorf("key-value store is required for local candle store")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for local candle store")
	}

	tolerance := cfg.BoundsTolerance
	if tolerance <= 0 {
		tolerance = 0.1
	}
	minPartial := cfg.MinPartialCandles
	if minPartial <= 0 {
		minPartial = 10
	}

	return &Store{
		kv:              cfg.KV,
		logger:          cfg.Logger,
		boundsTolerance: tolerance,
		minPartial:      minPartial,
	}, nil
}

func entryKey(instrument string, timeframe domain.Timeframe) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, instrument, timeframe)
}

// Read looks up the entry for (instrument, timeframe) and applies the
// coverage check against [from, to]. A covered entry returns its candles
// filtered to the range. An entry failing the check still returns the
// overlap when it holds more than the partial-hit floor; otherwise the
// lookup is a miss.
func (s *Store) Read(ctx context.Context, instrument string, timeframe domain.Timeframe, from, to int64) ([]domain.Candle, bool) {
	key := entryKey(instrument, timeframe)

	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logger.Warn(ctx, "Local store read failed, treating as miss", map[string]interface{}{"key": key, "error": err.Error()})
		}
		return nil, false
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.logger.Warn(ctx, "Local store entry corrupted, treating as miss", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}

	tolerance := int64(float64(to-from) * s.boundsTolerance)
	if entry.FromTime > from+tolerance || entry.ToTime < to-tolerance {
		// Partial miss: serve the overlap if it is worth anything.
		filtered := domain.FilterRange(entry.Data, from, to)
		if len(filtered) > s.minPartial {
			s.logger.Debug(ctx, "Local store partial hit", map[string]interface{}{"key": key, "count": len(filtered)})
			return filtered, true
		}
		return nil, false
	}

	// A full hit may still return fewer rows than the range implies if the
	// underlying data has gaps; that is not re-checked here.
	return domain.FilterRange(entry.Data, from, to), true
}

// Write merges candles into the entry for (instrument, timeframe). Incoming
// candles win on time collisions and the stored bounds widen to cover the
// incoming extents. Empty input is a no-op.
func (s *Store) Write(ctx context.Context, instrument string, timeframe domain.Timeframe, candles []domain.Candle) {
	if len(candles) == 0 {
		return
	}
	key := entryKey(instrument, timeframe)

	var entry domain.CacheEntry
	raw, err := s.kv.Get(ctx, key)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &entry); err != nil {
			s.logger.Warn(ctx, "Local store entry corrupted, rebuilding", map[string]interface{}{"key": key, "error": err.Error()})
			entry = domain.CacheEntry{}
		}
	case errors.Is(err, ports.ErrNotFound):
		// First write for this key.
	default:
		s.logger.Warn(ctx, "Local store read-before-write failed, dropping write", map[string]interface{}{"key": key, "error": err.Error()})
		return
	}

	merged := domain.MergeCandles(entry.Data, candles)
	minTime, maxTime := domain.CandleTimeBounds(candles)
	if len(entry.Data) == 0 && entry.FromTime == 0 && entry.ToTime == 0 {
		entry.FromTime, entry.ToTime = minTime, maxTime
	} else {
		if minTime < entry.FromTime {
			entry.FromTime = minTime
		}
		if maxTime > entry.ToTime {
			entry.ToTime = maxTime
		}
	}
	entry.Data = merged

	encoded, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn(ctx, "Local store entry encoding failed, dropping write", map[string]interface{}{"key": key, "error": err.Error()})
		return
	}
	if err := s.kv.Set(ctx, key, encoded); err != nil {
		s.logger.Warn(ctx, "Local store write failed, dropping write", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// Info enumerates all stored entries. Diagnostics only; the result is not
// authoritative.
func (s *Store) Info(ctx context.Context) []domain.CacheInfo {
	keys, err := s.kv.Keys(ctx, keyPrefix+"*")
	if err != nil {
		s.logger.Warn(ctx, "Local store key scan failed", map[string]interface{}{"error": err.Error()})
		return nil
	}

	infos := make([]domain.CacheInfo, 0, len(keys))
	for _, key := range keys {
		parts := strings.Split(strings.TrimPrefix(key, keyPrefix), ":")
		if len(parts) != 2 {
			continue
		}

		raw, err := s.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		var entry domain.CacheEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}

		infos = append(infos, domain.CacheInfo{
			Instrument: parts[0],
			Timeframe:  parts[1],
			FromTime:   entry.FromTime,
			ToTime:     entry.ToTime,
			Count:      len(entry.Data),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Instrument != infos[j].Instrument {
			return infos[i].Instrument < infos[j].Instrument
		}
		return infos[i].Timeframe < infos[j].Timeframe
	})
	return infos
}

// Clear deletes all cache entries. Manual reset only; nothing calls this
// automatically.
func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.kv.Keys(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to scan local store keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete local store entries: %w", err)
	}
	s.logger.Info(ctx, "Local store cleared", map[string]interface{}{"entries": len(keys)})
	return nil
}

// SizeEstimate approximates the store's footprint by summing the serialized
// length of every entry. Advisory only; there is no eviction policy.
func (s *Store) SizeEstimate(ctx context.Context) int64 {
	keys, err := s.kv.Keys(ctx, keyPrefix+"*")
	if err != nil {
		s.logger.Warn(ctx, "Local store key scan failed", map[string]interface{}{"error": err.Error()})
		return 0
	}

	var total int64
	for _, key := range keys {
		raw, err := s.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		total += int64(len(raw))
	}
	return total
}
