// Package binanceclient implements the ports.HistoricalFetcher interface for
// crypto instruments using the go-binance library.
package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"candleCache/internal/domain"
	"candleCache/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// Maximum klines per request allowed by the futures API.
	maxKlinesPerRequest = 1500
)

// Compile-time interface check.
var _ ports.HistoricalFetcher = (*Client)(nil)

// Client fetches historical klines from Binance futures. Kline endpoints are
// public, so API keys are optional.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using the global futures.UseTestnet
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL})

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Invalid signature
			mappedErr = ports.ErrAuthenticationFailed
		case -2014, -2015: // API-key format invalid / bad permissions
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1120, -1121: // Parameter errors
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrUpstreamUnavailable
		}
		c.logger.Error(ctx, mappedErr, "Binance API error", fields)
		return fmt.Errorf("%s: %s: %w", operation, apiErr.Message, mappedErr)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, err)
	}

	c.logger.Error(ctx, err, "Binance request failed", fields)
	return fmt.Errorf("%s (%v): %w", operation, err, ports.ErrConnectionFailed)
}

// interval maps a domain timeframe to the Binance kline interval notation.
func interval(tf domain.Timeframe) string {
	switch tf {
	case domain.TimeframeM1:
		return "1m"
	case domain.TimeframeM5:
		return "5m"
	case domain.TimeframeM15:
		return "15m"
	case domain.TimeframeH1:
		return "1h"
	case domain.TimeframeD1:
		return "1d"
	default:
		return "1m"
	}
}

// FetchRange fetches all klines for the instrument within [from, to], paging
// through the API in maxKlinesPerRequest chunks. Binance symbols pass through
// the instrument normalizer unchanged, so upper-casing the code is enough
// (e.g. "ethusdt" -> "ETHUSDT").
func (c *Client) FetchRange(ctx context.Context, instrument string, timeframe domain.Timeframe, from, to time.Time) ([]domain.Candle, error) {
	op := "FetchRange"
	symbol := strings.ToUpper(instrument)

	var candles []domain.Candle
	cursor := from

	for {
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(interval(timeframe)).
			StartTime(cursor.UnixMilli()).
			EndTime(to.UnixMilli()).
			Limit(maxKlinesPerRequest).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, k := range klines {
			candle, err := translateKline(k)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
			}
			candles = append(candles, candle)
		}
		last := klines[len(klines)-1]
		cursor = time.UnixMilli(last.CloseTime)
		if cursor.After(to) || len(klines) < maxKlinesPerRequest {
			break
		}
	}

	return candles, nil
}

// translateKline converts a Binance kline (string prices, millisecond open
// time) into a domain candle.
func translateKline(k *futures.Kline) (domain.Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("invalid open price %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("invalid high price %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("invalid low price %q: %w", k.Low, err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("invalid close price %q: %w", k.Close, err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("invalid volume %q: %w", k.Volume, err)
	}

	return domain.Candle{
		Time:   k.OpenTime / 1000,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}
