// Package dukascopy implements the ports.HistoricalFetcher interface against
// a Dukascopy-style historical datafeed gateway serving index, forex, and
// commodity instruments.
package dukascopy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"candleCache/internal/domain"
	"candleCache/internal/ports"
)

// Default address of the self-hosted datafeed gateway.
const defaultBaseURL = "http://localhost:4001"

// Compile-time interface check.
var _ ports.HistoricalFetcher = (*Client)(nil)

// Client fetches historical OHLCV bars over the gateway's JSON API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     ports.Logger
}

// Config holds configuration specific to the datafeed client adapter.
type Config struct {
	BaseURL string
	Timeout time.Duration // per-request transport timeout
	Logger  ports.Logger
}

// New creates a new datafeed client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for datafeed client")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     cfg.Logger,
	}, nil
}

// bar mirrors the provider's wire format: millisecond timestamps, and either
// a real volume or a tick-count volume depending on the instrument class.
type bar struct {
	Timestamp  int64    `json:"timestamp"`
	Open       float64  `json:"open"`
	High       float64  `json:"high"`
	Low        float64  `json:"low"`
	Close      float64  `json:"close"`
	Volume     *float64 `json:"volume"`
	TickVolume float64  `json:"tickVolume"`
}

// FetchRange returns all bars for instrument/timeframe within [from, to],
// converting provider millisecond timestamps to Unix seconds.
func (c *Client) FetchRange(ctx context.Context, instrument string, timeframe domain.Timeframe, from, to time.Time) ([]domain.Candle, error) {
	endpoint := fmt.Sprintf("%s/v1/ohlc", c.baseURL)

	params := url.Values{}
	params.Set("instrument", instrument)
	params.Set("timeframe", string(timeframe))
	params.Set("from", strconv.FormatInt(from.UnixMilli(), 10))
	params.Set("to", strconv.FormatInt(to.UnixMilli(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build datafeed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("datafeed request for %s failed (%v): %w", instrument, err, ports.ErrConnectionFailed)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("datafeed throttled request for %s: %w", instrument, ports.ErrRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		// Unknown instrument: reported as an empty range, not an error.
		return []domain.Candle{}, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("datafeed returned status %d for %s: %w", resp.StatusCode, instrument, ports.ErrUpstreamUnavailable)
	}

	var bars []bar
	if err := json.NewDecoder(resp.Body).Decode(&bars); err != nil {
		return nil, fmt.Errorf("failed to decode datafeed response for %s (%v): %w", instrument, err, ports.ErrBadResponse)
	}

	candles := make([]domain.Candle, 0, len(bars))
	for _, b := range bars {
		volume := b.TickVolume
		if b.Volume != nil {
			volume = *b.Volume
		}
		candles = append(candles, domain.Candle{
			Time:   b.Timestamp / 1000,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: volume,
		})
	}

	c.logger.Debug(ctx, "Datafeed range fetched", map[string]interface{}{
		"instrument": instrument,
		"timeframe":  string(timeframe),
		"from":       from.Format(time.RFC3339),
		"to":         to.Format(time.RFC3339),
		"count":      len(candles),
	})
	return candles, nil
}
