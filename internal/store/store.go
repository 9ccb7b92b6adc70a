/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store persists schedule blocks, the source library and settings, and
// announces every change on the event bus.
package store

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/hearth_radio/internal/events"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the gorm-backed persistence layer.
type Store struct {
	db     *gorm.DB
	bus    events.Broker
	logger zerolog.Logger
}

// New creates a store. bus may be nil, in which case no change events are emitted.
func New(db *gorm.DB, bus events.Broker, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Subscribe returns a channel carrying every event of the given types and a
// function that releases the subscription. The channel closes after release.
func (s *Store) Subscribe(types ...events.EventType) (<-chan events.Event, func()) {
	if s.bus == nil {
		ch := make(chan events.Event)
		var once sync.Once
		return ch, func() { once.Do(func() { close(ch) }) }
	}

	subs := make([]events.Subscriber, len(types))
	for i, t := range types {
		subs[i] = s.bus.Subscribe(t)
	}

	stop := make(chan struct{})
	out := events.Merge(stop, types, subs)

	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(stop)
			for i, t := range types {
				s.bus.Unsubscribe(t, subs[i])
			}
		})
	}
}

// Publish emits an event that does not originate from a store write, such as
// a Spotify connection change.
func (s *Store) Publish(t events.EventType, payload events.Payload) {
	s.publish(t, payload)
}

func (s *Store) publish(t events.EventType, payload events.Payload) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(t, payload)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
