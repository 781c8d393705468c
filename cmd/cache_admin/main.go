package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"candleCache/config"
	"candleCache/internal/adapters/logger"
	"candleCache/internal/adapters/redisstore"
	"candleCache/internal/localstore"
)

// Maintenance CLI for the local candle store: list entries, report the
// approximate footprint, or wipe everything. The store has no eviction
// policy, so "clear" is the only way to reclaim space.
func main() {
	action := flag.String("action", "info", "one of: info, size, clear")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(logger.LevelWarn)

	kv, err := redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Logger:   appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to connect to local store: %v", err)
	}
	defer kv.Close()

	store, err := localstore.New(localstore.Config{
		KV:                kv,
		Logger:            appLogger,
		BoundsTolerance:   cfg.BoundsTolerance,
		MinPartialCandles: cfg.MinPartialCandles,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize local store: %v", err)
	}

	ctx := context.Background()

	switch *action {
	case "info":
		infos := store.Info(ctx)
		if len(infos) == 0 {
			fmt.Println("local store is empty")
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INSTRUMENT\tTIMEFRAME\tFROM\tTO\tCOUNT")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
				info.Instrument,
				info.Timeframe,
				time.Unix(info.FromTime, 0).UTC().Format(time.RFC3339),
				time.Unix(info.ToTime, 0).UTC().Format(time.RFC3339),
				info.Count,
			)
		}
		w.Flush()
	case "size":
		fmt.Printf("%d bytes\n", store.SizeEstimate(ctx))
	case "clear":
		if err := store.Clear(ctx); err != nil {
			log.Fatalf("FATAL: Failed to clear local store: %v", err)
		}
		fmt.Println("local store cleared")
	default:
		log.Fatalf("unknown action %q (want info, size, or clear)", *action)
	}
}
