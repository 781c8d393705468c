// Package redisstore implements the ports.KeyValueStore interface using
// Redis. It backs the local candle store tier.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"candleCache/internal/ports"
)

// Compile-time interface check.
var _ ports.KeyValueStore = (*Store)(nil)

// Store is a Redis-backed key-value store.
type Store struct {
	client *redis.Client
	logger ports.Logger
}

// Config holds configuration for the Redis store.
type Config struct {
	Addr     string
	Password string
	DB       int
	Logger   ports.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Redis store")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s (%v): %w", cfg.Addr, err, ports.ErrDBConnection)
	}
	cfg.Logger.Info(ctx, "Redis connection established", map[string]interface{}{"addr": cfg.Addr, "db": cfg.DB})

	return &Store{client: client, logger: cfg.Logger}, nil
}

// Close closes the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Get retrieves the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key. Entries do not expire; the local candle store
// has no eviction policy and is cleared manually.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

// Delete removes the given keys.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis DEL: %w", err)
	}
	return nil
}

// Keys returns all keys matching pattern. SCAN is used instead of KEYS to
// avoid blocking the server on large keyspaces.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis SCAN %s: %w", pattern, err)
	}
	return keys, nil
}
