/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_radio/internal/events"
)

const natsSubjectPrefix = "hearth.events."

// NATSBus relays events between instances over core NATS subjects.
type NATSBus struct {
	conn   *nats.Conn
	logger zerolog.Logger
	local  *events.Bus
	nodeID string

	mu   sync.Mutex
	subs map[events.EventType]*nats.Subscription
}

// NewNATSBus connects to NATS. When the server cannot be reached the bus
// delivers to local subscribers only.
func NewNATSBus(url, nodeID string, logger zerolog.Logger) *NATSBus {
	nb := &NATSBus{
		logger: logger.With().Str("component", "nats_bus").Logger(),
		local:  events.NewBus(),
		nodeID: nodeID,
		subs:   make(map[events.EventType]*nats.Subscription),
	}

	conn, err := nats.Connect(url,
		nats.Name("hearth-radio "+nodeID),
		nats.Timeout(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				nb.logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			nb.logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		nb.logger.Warn().Err(err).Str("url", url).Msg("NATS connection failed, using in-memory fallback")
		return nb
	}

	nb.conn = conn
	nb.logger.Info().Str("url", conn.ConnectedUrl()).Msg("NATS event bus initialized")
	return nb
}

// Subscribe registers a local subscriber and relays remote events of this type.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := nb.local.Subscribe(eventType)
	if nb.conn == nil {
		return sub
	}

	nb.mu.Lock()
	defer nb.mu.Unlock()
	if _, ok := nb.subs[eventType]; ok {
		return sub
	}

	s, err := nb.conn.Subscribe(natsSubjectPrefix+string(eventType), func(msg *nats.Msg) {
		env, err := unmarshalMessage(msg.Data)
		if err != nil {
			nb.logger.Error().Err(err).Msg("failed to unmarshal NATS message")
			return
		}
		if env.NodeID == nb.nodeID {
			return
		}
		nb.local.Publish(eventType, env.Payload)
	})
	if err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("NATS subscribe failed")
		return sub
	}
	nb.subs[eventType] = s
	return sub
}

// Publish delivers locally and to other instances.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.Publish(eventType, payload)
	if nb.conn == nil {
		return
	}

	data, err := marshalMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to marshal NATS message")
		return
	}
	if err := nb.conn.Publish(natsSubjectPrefix+string(eventType), data); err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
	}
}

// Unsubscribe removes a local subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.local.Unsubscribe(eventType, sub)
}

// Connected reports whether a NATS connection is live.
func (nb *NATSBus) Connected() bool {
	return nb.conn != nil && nb.conn.IsConnected()
}

// Close drains the connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}
	nb.mu.Lock()
	for eventType, s := range nb.subs {
		_ = s.Unsubscribe()
		delete(nb.subs, eventType)
	}
	nb.mu.Unlock()
	return nb.conn.Drain()
}
