/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache keeps third-party lookups in Redis so repeated searches from
// the editor do not hammer the station directory or Spotify.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_radio/internal/config"
	"github.com/friendsincode/hearth_radio/internal/telemetry"
)

// Default TTLs.
const (
	DefaultStationSearchTTL = 10 * time.Minute
	DefaultPlaylistMetaTTL  = time.Hour
)

// Key prefixes.
const (
	KeyStationSearch = "hearth:cache:station_search:" // + normalized query
	KeyPlaylistMeta  = "hearth:cache:playlist_meta:"  // + spotify playlist id
	keyPattern       = "hearth:cache:*"
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StationSearchTTL time.Duration
	PlaylistMetaTTL  time.Duration

	// DisableOnError trips the breaker on the first Redis failure.
	DisableOnError bool
}

// ConfigFrom derives cache settings from process config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		RedisAddr:        cfg.RedisAddr,
		RedisPassword:    cfg.RedisPassword,
		RedisDB:          cfg.RedisDB,
		StationSearchTTL: DefaultStationSearchTTL,
		PlaylistMetaTTL:  DefaultPlaylistMetaTTL,
		DisableOnError:   true,
	}
}

// Cache is a Redis-backed cache that degrades to a no-op when Redis is gone.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New connects to Redis. An unreachable server yields a disabled cache, not an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Warn().Err(err).Msg("redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("redis cache initialized")
	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, cfg Config, logger zerolog.Logger) *Cache {
	if cfg.StationSearchTTL <= 0 {
		cfg.StationSearchTTL = DefaultStationSearchTTL
	}
	if cfg.PlaylistMetaTTL <= 0 {
		cfg.PlaylistMetaTTL = DefaultPlaylistMetaTTL
	}
	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable reports whether the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to redis error")
	}
}

func (c *Cache) get(ctx context.Context, name, key string, dest any) bool {
	if !c.IsAvailable() {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		telemetry.CacheRequestsTotal.WithLabelValues(name, "miss").Inc()
		return false
	}
	if err != nil {
		telemetry.CacheRequestsTotal.WithLabelValues(name, "error").Inc()
		c.handleError(err, "get")
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		telemetry.CacheRequestsTotal.WithLabelValues(name, "error").Inc()
		return false
	}
	telemetry.CacheRequestsTotal.WithLabelValues(name, "hit").Inc()
	return true
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}
	return nil
}

// StationSearchKey normalizes a directory query into its cache key.
func StationSearchKey(query string) string {
	return KeyStationSearch + strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// GetStationSearch loads cached directory results into dest.
func (c *Cache) GetStationSearch(ctx context.Context, query string, dest any) bool {
	return c.get(ctx, "station_search", StationSearchKey(query), dest)
}

// SetStationSearch stores directory results.
func (c *Cache) SetStationSearch(ctx context.Context, query string, results any) error {
	return c.set(ctx, StationSearchKey(query), results, c.config.StationSearchTTL)
}

// GetPlaylistMeta loads cached Spotify playlist metadata into dest.
func (c *Cache) GetPlaylistMeta(ctx context.Context, id string, dest any) bool {
	return c.get(ctx, "playlist_meta", KeyPlaylistMeta+id, dest)
}

// SetPlaylistMeta stores Spotify playlist metadata.
func (c *Cache) SetPlaylistMeta(ctx context.Context, id string, meta any) error {
	return c.set(ctx, KeyPlaylistMeta+id, meta, c.config.PlaylistMetaTTL)
}

// FlushAll removes every hearth cache key.
func (c *Cache) FlushAll(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
