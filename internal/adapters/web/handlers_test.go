package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candleCache/config"
	"candleCache/internal/app"
	"candleCache/internal/domain"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockRemote struct {
	rows []domain.Candle
}

func (m *mockRemote) QueryRange(ctx context.Context, instrument string, from, to time.Time) ([]domain.Candle, error) {
	return m.rows, nil
}

func (m *mockRemote) Upsert(ctx context.Context, instrument string, candles []domain.Candle) error {
	return nil
}

type mockFetcher struct {
	candles []domain.Candle
	windows []struct{ from, to time.Time }
}

func (m *mockFetcher) FetchRange(ctx context.Context, instrument string, timeframe domain.Timeframe, from, to time.Time) ([]domain.Candle, error) {
	m.windows = append(m.windows, struct{ from, to time.Time }{from, to})
	return m.candles, nil
}

func newTestServer(t *testing.T, remote *mockRemote, fetcher *mockFetcher) *Server {
	t.Helper()

	cfg := &config.Config{
		CoverageRatio:   0.8,
		UpsertBatchSize: 1000,
		FetchTimeout:    5 * time.Second,
	}
	service, err := app.NewCandleService(cfg, &mockLogger{}, nil, remote, fetcher)
	require.NoError(t, err)

	server, err := NewServer(Config{Port: 0, Logger: &mockLogger{}, Service: service})
	require.NoError(t, err)
	return server
}

func doRequest(server *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestGetCandles_BadRequests(t *testing.T) {
	server := newTestServer(t, &mockRemote{}, &mockFetcher{})

	tests := []struct {
		name   string
		target string
	}{
		{name: "missing instrument", target: "/api/v1/candles?from=100&to=200"},
		{name: "missing range", target: "/api/v1/candles?instrument=nq"},
		{name: "unparseable date", target: "/api/v1/candles?instrument=nq&date=yesterday"},
		{name: "unparseable from", target: "/api/v1/candles?instrument=nq&from=soon&to=200"},
		{name: "inverted range", target: "/api/v1/candles?instrument=nq&from=200&to=100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(server, http.MethodGet, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetCandles_EmptyRangeReturnsEmptyArray(t *testing.T) {
	// No cached data, upstream has nothing: 200 with [], never an error.
	server := newTestServer(t, &mockRemote{}, &mockFetcher{})

	rec := doRequest(server, http.MethodGet, "/api/v1/candles?instrument=nq&from=2024-12-01T00:00:00Z&to=2024-12-02T00:00:00Z")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetCandles_ReturnsCandlesAscending(t *testing.T) {
	start := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, 0, 30)
	for i := 0; i < 30; i++ {
		candles = append(candles, domain.Candle{
			Time: start.Add(time.Duration(i) * time.Minute).Unix(),
			Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 3,
		})
	}
	server := newTestServer(t, &mockRemote{}, &mockFetcher{candles: candles})

	rec := doRequest(server, http.MethodGet, "/api/v1/candles?instrument=nq&from=2024-12-01T00:00:00Z&to=2024-12-01T00:30:00Z")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []domain.Candle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 30)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Time, got[i-1].Time)
	}
	assert.Equal(t, candles[0], got[0])
}

func TestGetCandles_DateWindow(t *testing.T) {
	fetcher := &mockFetcher{}
	server := newTestServer(t, &mockRemote{}, fetcher)

	tradeTime := time.Date(2024, 12, 1, 14, 30, 0, 0, time.UTC)
	rec := doRequest(server, http.MethodGet, fmt.Sprintf("/api/v1/candles?instrument=nq&date=%s", tradeTime.Format(time.RFC3339)))
	require.Equal(t, http.StatusOK, rec.Code)

	// A single-trade request covers two hours before and four after.
	require.Len(t, fetcher.windows, 1)
	assert.Equal(t, tradeTime.Add(-2*time.Hour), fetcher.windows[0].from)
	assert.Equal(t, tradeTime.Add(4*time.Hour), fetcher.windows[0].to)
}

func TestGetCandles_UnixSecondParams(t *testing.T) {
	fetcher := &mockFetcher{}
	server := newTestServer(t, &mockRemote{}, fetcher)

	from := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	rec := doRequest(server, http.MethodGet, fmt.Sprintf("/api/v1/candles?instrument=nq&from=%d&to=%d", from.Unix(), to.Unix()))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, fetcher.windows, 1)
	assert.True(t, fetcher.windows[0].from.Equal(from))
	assert.True(t, fetcher.windows[0].to.Equal(to))
}

func TestCacheEndpoints_WithoutLocalStore(t *testing.T) {
	server := newTestServer(t, &mockRemote{}, &mockFetcher{})

	assert.Equal(t, http.StatusServiceUnavailable, doRequest(server, http.MethodGet, "/api/v1/cache/info").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(server, http.MethodGet, "/api/v1/cache/size").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(server, http.MethodDelete, "/api/v1/cache").Code)
}

func TestHealth(t *testing.T) {
	server := newTestServer(t, &mockRemote{}, &mockFetcher{})

	rec := doRequest(server, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}
