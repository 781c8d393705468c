package main

import (
	"context"
	"log"

	"candleCache/config"
	"candleCache/internal/adapters/binanceclient"
	"candleCache/internal/adapters/dukascopy"
	"candleCache/internal/adapters/logger"
	"candleCache/internal/adapters/redisstore"
	"candleCache/internal/adapters/sqlite"
	"candleCache/internal/adapters/web"
	"candleCache/internal/app"
	"candleCache/internal/localstore"
	"candleCache/internal/ports"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewLogrusLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Remote candle cache (SQLite)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize candle cache: %v", err)
	}
	defer repo.Close()

	// 4. Local candle store (Redis). Optional: the service runs without it.
	var local *localstore.Store
	kv, err := redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Logger:   appLogger,
	})
	if err != nil {
		appLogger.Warn(context.Background(), "Local store unavailable, running without first cache tier", map[string]interface{}{"error": err.Error()})
	} else {
		defer kv.Close()
		local, err = localstore.New(localstore.Config{
			KV:                kv,
			Logger:            appLogger,
			BoundsTolerance:   cfg.BoundsTolerance,
			MinPartialCandles: cfg.MinPartialCandles,
		})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize local store: %v", err)
		}
	}

	// 5. Upstream fetcher
	fetcher, err := newFetcher(cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize upstream fetcher: %v", err)
	}

	// 6. Resolution service
	var localPort ports.LocalCandleStore
	if local != nil {
		localPort = local
	}
	service, err := app.NewCandleService(cfg, appLogger, localPort, repo, fetcher)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize candle service: %v", err)
	}
	defer service.Wait() // drain in-flight cache write-backs on shutdown

	// 7. HTTP server
	server, err := web.NewServer(web.Config{
		Port:    cfg.Port,
		Logger:  appLogger,
		Service: service,
		Local:   local,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize web server: %v", err)
	}

	appLogger.Info(context.Background(), "Starting candle API server", map[string]interface{}{"port": cfg.Port, "provider": cfg.Provider})
	if err := server.Run(); err != nil {
		log.Fatalf("FATAL: Server stopped: %v", err)
	}
}

// newFetcher selects the upstream adapter from configuration.
func newFetcher(cfg *config.Config, appLogger ports.Logger) (ports.HistoricalFetcher, error) {
	if cfg.Provider == config.ProviderBinance {
		return binanceclient.New(binanceclient.Config{
			APIKey:     cfg.BinanceAPIKey,
			SecretKey:  cfg.BinanceSecretKey,
			UseTestnet: cfg.BinanceTestnet,
			Logger:     appLogger,
		})
	}
	return dukascopy.New(dukascopy.Config{
		BaseURL: cfg.DukascopyBaseURL,
		Timeout: cfg.FetchTimeout,
		Logger:  appLogger,
	})
}
