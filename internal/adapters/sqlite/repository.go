package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"candleCache/internal/domain"
	"candleCache/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Compile-time interface check.
var _ ports.CandleCache = (*Repository)(nil)

// Repository implements the ports.CandleCache interface using SQLite.
// Candles are keyed by (instrument, time), which makes every write an
// idempotent upsert.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/candle_cache.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// The request handlers and the backfill job share this cache; SQLite
	// handles concurrency internally but the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS candles (
		instrument TEXT NOT NULL,
		time TIMESTAMP NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (instrument, time)
	);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// QueryRange returns cached candles for the instrument within [from, to],
// ordered ascending by time.
func (r *Repository) QueryRange(ctx context.Context, instrument string, from, to time.Time) ([]domain.Candle, error) {
	const query = `
	SELECT time, open, high, low, close, volume
	FROM candles
	WHERE instrument = ? AND time >= ? AND time <= ?
	ORDER BY time ASC`

	rows, err := r.db.QueryContext(ctx, query, instrument, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query candles for %s (%v): %w", instrument, err, ports.ErrQueryFailed)
	}
	defer rows.Close()

	candles := make([]domain.Candle, 0)
	for rows.Next() {
		var (
			c  domain.Candle
			ts time.Time
		)
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle row for %s: %w", instrument, err)
		}
		c.Time = ts.Unix()
		candles = append(candles, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candle rows for %s: %w", instrument, err)
	}
	return candles, nil
}

// Upsert inserts or updates candles for the instrument using the
// (instrument, time) primary key as the conflict target. The batch is
// applied inside a single transaction.
func (r *Repository) Upsert(ctx context.Context, instrument string, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	const query = `
	INSERT INTO candles (instrument, time, open, high, low, close, volume)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (instrument, time) DO UPDATE SET
		open = excluded.open,
		high = excluded.high,
		low = excluded.low,
		close = excluded.close,
		volume = excluded.volume`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin upsert transaction for %s (%v): %w", instrument, err, ports.ErrUpdateFailed)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare upsert statement for %s: %w", instrument, err)
	}
	defer stmt.Close()

	for _, c := range candles {
		ts := time.Unix(c.Time, 0).UTC()
		if _, err := stmt.ExecContext(ctx, instrument, ts, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert candle %s@%d (%v): %w", instrument, c.Time, err, ports.ErrUpdateFailed)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert for %s (%v): %w", instrument, err, ports.ErrUpdateFailed)
	}
	r.logger.Debug(ctx, "Candles upserted", map[string]interface{}{"instrument": instrument, "count": len(candles)})
	return nil
}

// Count returns the number of cached rows for the instrument. Used by the
// backfill job for its end-of-run summary.
func (r *Repository) Count(ctx context.Context, instrument string) (int64, error) {
	const query = `SELECT COUNT(*) FROM candles WHERE instrument = ?`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, instrument).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count candles for %s: %w", instrument, err)
	}
	return count, nil
}
