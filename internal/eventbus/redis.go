/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_radio/internal/events"
)

const redisChannelPrefix = "hearth:events:"

// RedisBus fans events out to other instances through Redis pub/sub.
// Local subscribers are always served by an in-process bus, so the bus keeps
// working (single instance) when Redis is unreachable.
type RedisBus struct {
	client *redis.Client
	logger zerolog.Logger
	local  *events.Bus
	nodeID string
	cfg    RedisConfig

	mu       sync.Mutex
	channels map[events.EventType]*redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Circuit breaker state
	useFallback bool
	failCount   int
	lastCheck   time.Time
}

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Circuit breaker
	MaxFailures   int
	CheckInterval time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		PoolSize:      10,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxFailures:   5,
		CheckInterval: 30 * time.Second,
	}
}

// NewRedisBus creates a Redis-backed event bus.
// Falls back to local-only delivery if Redis is unavailable.
func NewRedisBus(cfg RedisConfig, nodeID string, logger zerolog.Logger) *RedisBus {
	ctx, cancel := context.WithCancel(context.Background())
	rb := &RedisBus{
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}),
		logger:   logger.With().Str("component", "redis_bus").Logger(),
		local:    events.NewBus(),
		nodeID:   nodeID,
		cfg:      cfg,
		channels: make(map[events.EventType]*redis.PubSub),
		ctx:      ctx,
		cancel:   cancel,
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := rb.client.Ping(pingCtx).Err(); err != nil {
		rb.logger.Warn().Err(err).Msg("Redis connection failed, using in-memory fallback")
		rb.useFallback = true
		rb.lastCheck = time.Now()
		return rb
	}

	rb.logger.Info().Str("addr", cfg.Addr).Msg("Redis event bus initialized")
	return rb
}

// Subscribe registers a local subscriber and makes sure remote events of this type are relayed.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := rb.local.Subscribe(eventType)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.useFallback {
		return sub
	}
	if _, exists := rb.channels[eventType]; exists {
		return sub
	}

	pubsub := rb.client.Subscribe(rb.ctx, redisChannelPrefix+string(eventType))
	confirmCtx, cancel := context.WithTimeout(rb.ctx, rb.cfg.ReadTimeout)
	defer cancel()
	if _, err := pubsub.Receive(confirmCtx); err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("redis subscribe failed")
		_ = pubsub.Close()
		rb.recordFailureLocked()
		return sub
	}
	rb.channels[eventType] = pubsub

	rb.wg.Add(1)
	go rb.receive(eventType, pubsub)
	return sub
}

func (rb *RedisBus) receive(eventType events.EventType, pubsub *redis.PubSub) {
	defer rb.wg.Done()
	ch := pubsub.Channel()
	for {
		select {
		case <-rb.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			env, err := unmarshalMessage([]byte(msg.Payload))
			if err != nil {
				rb.logger.Error().Err(err).Msg("failed to unmarshal Redis message")
				continue
			}
			if env.NodeID == rb.nodeID {
				continue
			}
			rb.local.Publish(eventType, env.Payload)
			rb.logger.Debug().
				Str("event_type", string(eventType)).
				Str("source_node", env.NodeID).
				Msg("delivered Redis event to local subscribers")
		}
	}
}

// Publish delivers locally and then to other instances.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.local.Publish(eventType, payload)

	if !rb.remoteEnabled() {
		return
	}

	data, err := marshalMessage(eventType, payload, rb.nodeID)
	if err != nil {
		rb.logger.Error().Err(err).Msg("failed to marshal Redis message")
		return
	}

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()
	if err := rb.client.Publish(ctx, redisChannelPrefix+string(eventType), data).Err(); err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to Redis")
		rb.mu.Lock()
		rb.recordFailureLocked()
		rb.mu.Unlock()
		return
	}

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
}

// Unsubscribe removes a local subscriber. The Redis subscription stays open for
// the bus lifetime since other local subscribers may share it.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.local.Unsubscribe(eventType, sub)
}

// Close stops the receivers and closes the Redis client.
func (rb *RedisBus) Close() error {
	rb.cancel()

	rb.mu.Lock()
	for eventType, pubsub := range rb.channels {
		_ = pubsub.Close()
		delete(rb.channels, eventType)
	}
	rb.mu.Unlock()
	rb.wg.Wait()

	if err := rb.client.Close(); err != nil {
		rb.logger.Error().Err(err).Msg("failed to close Redis client")
		return err
	}
	rb.logger.Info().Msg("Redis event bus closed")
	return nil
}

// remoteEnabled reports whether Redis is in use, probing it again once the
// check interval has passed since the breaker opened.
func (rb *RedisBus) remoteEnabled() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if !rb.useFallback {
		return true
	}
	if time.Since(rb.lastCheck) < rb.cfg.CheckInterval {
		return false
	}
	rb.lastCheck = time.Now()

	ctx, cancel := context.WithTimeout(rb.ctx, rb.cfg.DialTimeout)
	defer cancel()
	if err := rb.client.Ping(ctx).Err(); err != nil {
		return false
	}
	rb.useFallback = false
	rb.failCount = 0
	rb.logger.Info().Msg("reconnected to Redis, disabling fallback")
	return true
}

func (rb *RedisBus) recordFailureLocked() {
	rb.failCount++
	if rb.failCount >= rb.cfg.MaxFailures && !rb.useFallback {
		rb.logger.Warn().Int("fail_count", rb.failCount).Msg("Redis failure threshold reached, switching to in-memory fallback")
		rb.useFallback = true
		rb.lastCheck = time.Now()
	}
}
