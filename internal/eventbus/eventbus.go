/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus selects and builds the event broker that carries store changes between instances.
package eventbus

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_radio/internal/config"
	"github.com/friendsincode/hearth_radio/internal/events"
)

// New builds the broker configured in cfg and a closer for it.
func New(cfg *config.Config, logger zerolog.Logger) (events.Broker, func() error) {
	nodeID := cfg.InstanceID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	switch cfg.EventBus {
	case config.EventBusRedis:
		rc := DefaultRedisConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		bus := NewRedisBus(rc, nodeID, logger)
		return bus, bus.Close
	case config.EventBusNATS:
		bus := NewNATSBus(cfg.NATSURL, nodeID, logger)
		return bus, bus.Close
	default:
		return events.NewBus(), func() error { return nil }
	}
}
