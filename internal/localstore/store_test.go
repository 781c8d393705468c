package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candleCache/internal/domain"
	"candleCache/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// memKV implements ports.KeyValueStore in memory, optionally failing every
// operation.
type memKV struct {
	data    map[string][]byte
	failAll bool
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Get(ctx context.Context, key string) ([]byte, error) {
	if m.failAll {
		return nil, errors.New("kv unavailable")
	}
	val, ok := m.data[key]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return val, nil
}

func (m *memKV) Set(ctx context.Context, key string, value []byte) error {
	if m.failAll {
		return errors.New("kv unavailable")
	}
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(ctx context.Context, keys ...string) error {
	if m.failAll {
		return errors.New("kv unavailable")
	}
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	if m.failAll {
		return nil, errors.New("kv unavailable")
	}
	var keys []string
	for key := range m.data {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func newTestStore(t *testing.T) (*Store, *memKV) {
	t.Helper()
	kv := newMemKV()
	store, err := New(Config{KV: kv, Logger: &mockLogger{}})
	require.NoError(t, err)
	return store, kv
}

// candlesBetween builds candles with times from, from+step, ... up to and
// including to when aligned.
func candlesBetween(from, to, step int64) []domain.Candle {
	var candles []domain.Candle
	for ts := from; ts <= to; ts += step {
		candles = append(candles, domain.Candle{Time: ts, Open: 1, High: 1, Low: 1, Close: 1})
	}
	return candles
}

func TestStore_ReadMissWhenEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	candles, ok := store.Read(context.Background(), "usatechidxusd", domain.TimeframeM1, 100, 200)
	assert.False(t, ok)
	assert.Nil(t, candles)
}

func TestStore_ReadFullHit(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Write(ctx, "usatechidxusd", domain.TimeframeM1, candlesBetween(0, 6000, 60))

	candles, ok := store.Read(ctx, "usatechidxusd", domain.TimeframeM1, 600, 1200)
	require.True(t, ok)
	require.Len(t, candles, 11) // 600..1200 inclusive at 60s steps
	assert.Equal(t, int64(600), candles[0].Time)
	assert.Equal(t, int64(1200), candles[len(candles)-1].Time)
}

func TestStore_ReadPartialHit(t *testing.T) {
	// Entry covers [100, 200] with 50 candles; request [150, 500].
	// Tolerance is (500-150)*0.1 = 35, so the coverage check fails
	// (200 < 500-35), but the overlap holds more than 10 candles and is
	// served anyway.
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Write(ctx, "usatechidxusd", domain.TimeframeM1, candlesBetween(100, 198, 2))

	candles, ok := store.Read(ctx, "usatechidxusd", domain.TimeframeM1, 150, 500)
	require.True(t, ok, "overlap above the partial-hit floor must be served")
	assert.Len(t, candles, 25) // 150..198 at 2s steps
	for _, c := range candles {
		assert.GreaterOrEqual(t, c.Time, int64(150))
		assert.LessOrEqual(t, c.Time, int64(500))
	}
}

func TestStore_ReadPartialBelowFloorIsMiss(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// Only 5 candles overlap the requested range.
	store.Write(ctx, "usatechidxusd", domain.TimeframeM1, candlesBetween(100, 340, 60))

	candles, ok := store.Read(ctx, "usatechidxusd", domain.TimeframeM1, 100, 100000)
	assert.False(t, ok)
	assert.Nil(t, candles)
}

func TestStore_WriteEmptyIsNoop(t *testing.T) {
	store, kv := newTestStore(t)

	store.Write(context.Background(), "usatechidxusd", domain.TimeframeM1, nil)
	assert.Empty(t, kv.data)
}

func TestStore_WriteIdempotent(t *testing.T) {
	store, kv := newTestStore(t)
	ctx := context.Background()
	candles := candlesBetween(100, 400, 60)

	store.Write(ctx, "usatechidxusd", domain.TimeframeM1, candles)
	first := append([]byte(nil), kv.data["candles:usatechidxusd:m1"]...)

	store.Write(ctx, "usatechidxusd", domain.TimeframeM1, candles)
	second := kv.data["candles:usatechidxusd:m1"]

	assert.Equal(t, first, second, "writing the same candles twice must not change the stored state")
}

func TestStore_WriteBoundsOnlyWiden(t *testing.T) {
	store, kv := newTestStore(t)
	ctx := context.Background()

	readEntry := func() domain.CacheEntry {
		var entry domain.CacheEntry
		require.NoError(t, json.Unmarshal(kv.data["candles:usatechidxusd:m1"], &entry))
		return entry
	}

	store.Write(ctx, "usatechidxusd", domain.TimeframeM1, candlesBetween(200, 300, 10))
	entry := readEntry()
	assert.Equal(t, int64(200), entry.FromTime)
	assert.Equal(t, int64(300), entry.ToTime)

	// Earlier candles widen FromTime.
	store.Write(ctx, "usatechidxusd", domain.TimeframeM1, candlesBetween(100, 150, 10))
	entry = readEntry()
	assert.Equal(t, int64(100), entry.FromTime)
	assert.Equal(t, int64(300), entry.ToTime)

	// A narrower write never shrinks the bounds.
	store.Write(ctx, "usatechidxusd", domain.TimeframeM1, candlesBetween(120, 130, 10))
	entry = readEntry()
	assert.Equal(t, int64(100), entry.FromTime)
	assert.Equal(t, int64(300), entry.ToTime)

	// Data stays strictly ascending and deduplicated across all merges.
	for i := 1; i < len(entry.Data); i++ {
		assert.Greater(t, entry.Data[i].Time, entry.Data[i-1].Time)
	}
}

func TestStore_IncomingWinsOnCollision(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Write(ctx, "xauusd", domain.TimeframeM1, []domain.Candle{{Time: 60, Close: 1.0}, {Time: 120, Close: 2.0}})
	store.Write(ctx, "xauusd", domain.TimeframeM1, []domain.Candle{{Time: 120, Close: 9.9}})

	candles, ok := store.Read(ctx, "xauusd", domain.TimeframeM1, 60, 120)
	require.True(t, ok)
	require.Len(t, candles, 2)
	assert.Equal(t, 9.9, candles[1].Close)
}

func TestStore_StorageErrorsDegrade(t *testing.T) {
	kv := newMemKV()
	kv.failAll = true
	store, err := New(Config{KV: kv, Logger: &mockLogger{}})
	require.NoError(t, err)
	ctx := context.Background()

	// Read degrades to a miss, write to a silent no-op; neither panics or
	// surfaces the storage error.
	candles, ok := store.Read(ctx, "usatechidxusd", domain.TimeframeM1, 100, 200)
	assert.False(t, ok)
	assert.Nil(t, candles)

	store.Write(ctx, "usatechidxusd", domain.TimeframeM1, candlesBetween(100, 200, 10))

	assert.Nil(t, store.Info(ctx))
	assert.Zero(t, store.SizeEstimate(ctx))
	assert.Error(t, store.Clear(ctx))
}

func TestStore_InfoClearSize(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Write(ctx, "usatechidxusd", domain.TimeframeM1, candlesBetween(100, 400, 60))
	store.Write(ctx, "xauusd", domain.TimeframeM5, candlesBetween(500, 800, 300))

	infos := store.Info(ctx)
	require.Len(t, infos, 2)
	assert.Equal(t, "usatechidxusd", infos[0].Instrument)
	assert.Equal(t, "m1", infos[0].Timeframe)
	assert.Equal(t, int64(100), infos[0].FromTime)
	assert.Equal(t, int64(400), infos[0].ToTime)
	assert.Equal(t, 6, infos[0].Count)
	assert.Equal(t, "xauusd", infos[1].Instrument)

	assert.Positive(t, store.SizeEstimate(ctx))

	require.NoError(t, store.Clear(ctx))
	assert.Empty(t, store.Info(ctx))
	assert.Zero(t, store.SizeEstimate(ctx))
}
