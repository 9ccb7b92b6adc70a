/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package leadership elects one instance to run singleton background work
// when several API processes share a database.
package leadership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_radio/internal/config"
	"github.com/friendsincode/hearth_radio/internal/telemetry"
)

const (
	defaultElectionKey     = "hearth:leader:worker"
	defaultLeaseDuration   = 15 * time.Second
	defaultRenewalInterval = 5 * time.Second
)

// renew extends the lease only while we still own it.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// release deletes the lease only while we still own it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// ElectionConfig configures leader election.
type ElectionConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ElectionKey is the Redis key holding the current leader's instance id.
	ElectionKey string
	// LeaseDuration is how long a lease survives without renewal.
	LeaseDuration time.Duration
	// RenewalInterval is how often the leader renews and followers retry.
	RenewalInterval time.Duration
	InstanceID      string
}

// ConfigFrom derives election settings from process config.
func ConfigFrom(cfg *config.Config) ElectionConfig {
	return ElectionConfig{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		InstanceID:    cfg.InstanceID,
	}
}

func (c *ElectionConfig) applyDefaults() {
	if c.ElectionKey == "" {
		c.ElectionKey = defaultElectionKey
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = defaultLeaseDuration
	}
	if c.RenewalInterval <= 0 {
		c.RenewalInterval = defaultRenewalInterval
	}
	if c.InstanceID == "" {
		c.InstanceID = uuid.NewString()
	}
}

// Election holds or campaigns for a Redis lease.
type Election struct {
	client *redis.Client
	logger zerolog.Logger
	config ElectionConfig

	isLeader atomic.Bool
	leaderCh chan bool

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewElection connects to Redis.
func NewElection(cfg ElectionConfig, logger zerolog.Logger) (*Election, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewElectionWithClient(client, cfg, logger), nil
}

// NewElectionWithClient wraps an existing client. The election owns it afterwards.
func NewElectionWithClient(client *redis.Client, cfg ElectionConfig, logger zerolog.Logger) *Election {
	cfg.applyDefaults()
	return &Election{
		client:   client,
		logger:   logger.With().Str("component", "leader_election").Str("instance_id", cfg.InstanceID).Logger(),
		config:   cfg,
		leaderCh: make(chan bool, 1),
		done:     make(chan struct{}),
	}
}

// Start campaigns in the background until Stop or ctx cancellation.
func (e *Election) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.logger.Info().Dur("lease", e.config.LeaseDuration).Msg("starting leader election")

	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.config.RenewalInterval)
		defer ticker.Stop()

		for {
			e.campaign(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends the campaign, releases a held lease and closes the client.
func (e *Election) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		if e.cancel != nil {
			e.cancel()
			<-e.done
		}
		if e.isLeader.Load() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if rerr := releaseScript.Run(ctx, e.client, []string{e.config.ElectionKey}, e.config.InstanceID).Err(); rerr != nil {
				e.logger.Error().Err(rerr).Msg("failed to release leadership")
			}
			e.setLeader(false)
		}
		err = e.client.Close()
	})
	return err
}

// IsLeader reports whether this instance holds the lease.
func (e *Election) IsLeader() bool {
	return e.isLeader.Load()
}

// LeaderCh receives leadership transitions. Only the latest is buffered.
func (e *Election) LeaderCh() <-chan bool {
	return e.leaderCh
}

// InstanceID identifies this process in the election.
func (e *Election) InstanceID() string {
	return e.config.InstanceID
}

// Leader returns the current leader's instance id, or "" when the lease is free.
func (e *Election) Leader(ctx context.Context) (string, error) {
	id, err := e.client.Get(ctx, e.config.ElectionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get leader: %w", err)
	}
	return id, nil
}

func (e *Election) campaign(ctx context.Context) {
	held, err := e.acquire(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Error().Err(err).Msg("leadership campaign failed")
		}
		e.setLeader(false)
		return
	}
	e.setLeader(held)
}

func (e *Election) acquire(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, e.config.ElectionKey, e.config.InstanceID, e.config.LeaseDuration).Result()
	if err != nil {
		return false, fmt.Errorf("set lease: %w", err)
	}
	if ok {
		return true, nil
	}

	renewed, err := renewScript.Run(ctx, e.client, []string{e.config.ElectionKey},
		e.config.InstanceID, e.config.LeaseDuration.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return renewed == 1, nil
}

func (e *Election) setLeader(leader bool) {
	if e.isLeader.Swap(leader) == leader {
		return
	}

	id := e.config.InstanceID
	if leader {
		e.logger.Info().Msg("acquired leadership")
		telemetry.LeaderElectionStatus.WithLabelValues(id).Set(1)
		telemetry.LeaderElectionChanges.WithLabelValues(id, "acquired").Inc()
	} else {
		e.logger.Warn().Msg("lost leadership")
		telemetry.LeaderElectionStatus.WithLabelValues(id).Set(0)
		telemetry.LeaderElectionChanges.WithLabelValues(id, "lost").Inc()
	}

	// keep only the newest transition
	select {
	case <-e.leaderCh:
	default:
	}
	select {
	case e.leaderCh <- leader:
	default:
	}
}
