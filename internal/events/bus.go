/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	// Store change notifications.
	EventBlocksChanged   EventType = "blocks.changed"
	EventSettingsChanged EventType = "settings.changed"
	EventLibraryChanged  EventType = "library.changed"

	// Player state, published by the orchestrator.
	EventPlaybackState EventType = "playback.state"
	EventNowPlaying    EventType = "now_playing"

	// Spotify connection lifecycle.
	EventSpotifyConnected    EventType = "spotify.connected"
	EventSpotifyDisconnected EventType = "spotify.disconnected"
)

// ChangeTypes are the events the player re-resolves on.
var ChangeTypes = []EventType{EventBlocksChanged, EventSettingsChanged, EventLibraryChanged}

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Broker is satisfied by the in-process bus and the distributed buses.
type Broker interface {
	Subscribe(eventType EventType) Subscriber
	Publish(eventType EventType, payload Payload)
	Unsubscribe(eventType EventType, sub Subscriber)
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Full subscribers miss the event.
// The read lock is held across the sends so Unsubscribe cannot close a
// channel mid-delivery.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes and closes the subscriber. Unknown subscribers are ignored.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			b.subs[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// SubscriberCount reports how many subscribers are registered for eventType.
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}

// Merge fans several subscriptions into one channel until stop is closed.
// The returned channel is closed once every input is closed or stop fires.
func Merge(stop <-chan struct{}, types []EventType, subs []Subscriber) <-chan Event {
	out := make(chan Event, len(subs)*8)
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(t EventType, sub Subscriber) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				case payload, ok := <-sub:
					if !ok {
						return
					}
					select {
					case out <- Event{Type: t, Payload: payload}:
					case <-stop:
						return
					}
				}
			}
		}(types[i], sub)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Event pairs a payload with its type.
type Event struct {
	Type    EventType `json:"type"`
	Payload Payload   `json:"payload"`
}
