package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"candleCache/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "candle-cache-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, cleanup
}

func minuteCandles(start time.Time, count int) []domain.Candle {
	candles := make([]domain.Candle, 0, count)
	for i := 0; i < count; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		candles = append(candles, domain.Candle{
			Time:   ts.Unix(),
			Open:   100 + float64(i),
			High:   101 + float64(i),
			Low:    99 + float64(i),
			Close:  100.5 + float64(i),
			Volume: float64(10 * i),
		})
	}
	return candles
}

func TestRepository_UpsertAndQueryRange(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	candles := minuteCandles(start, 60)

	require.NoError(t, repo.Upsert(ctx, "usatechidxusd", candles))

	got, err := repo.QueryRange(ctx, "usatechidxusd", start, start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 60)

	// Ascending by time, values round-tripped intact.
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Time, got[i-1].Time)
	}
	assert.Equal(t, candles[0], got[0])
	assert.Equal(t, candles[59], got[59])
}

func TestRepository_UpsertIdempotent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	candles := minuteCandles(start, 30)

	require.NoError(t, repo.Upsert(ctx, "usatechidxusd", candles))
	require.NoError(t, repo.Upsert(ctx, "usatechidxusd", candles))

	count, err := repo.Count(ctx, "usatechidxusd")
	require.NoError(t, err)
	assert.Equal(t, int64(30), count, "re-upserting an identical window must not create duplicate rows")
}

func TestRepository_UpsertOverwritesOnConflict(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	ts := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Upsert(ctx, "xauusd", []domain.Candle{{Time: ts.Unix(), Close: 1.0}}))
	require.NoError(t, repo.Upsert(ctx, "xauusd", []domain.Candle{{Time: ts.Unix(), Close: 9.9}}))

	got, err := repo.QueryRange(ctx, "xauusd", ts.Add(-time.Minute), ts.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 9.9, got[0].Close)
}

func TestRepository_QueryRangeScopesInstrumentAndWindow(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Upsert(ctx, "usatechidxusd", minuteCandles(start, 10)))
	require.NoError(t, repo.Upsert(ctx, "xauusd", minuteCandles(start, 10)))

	got, err := repo.QueryRange(ctx, "usatechidxusd", start.Add(2*time.Minute), start.Add(5*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 4) // minutes 2..5 inclusive

	empty, err := repo.QueryRange(ctx, "eurusd", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepository_UpsertEmptyIsNoop(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "usatechidxusd", nil))

	count, err := repo.Count(ctx, "usatechidxusd")
	require.NoError(t, err)
	assert.Zero(t, count)
}
