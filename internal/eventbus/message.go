/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/hearth_radio/internal/events"
)

// wireVersion is bumped when the envelope changes incompatibly. Peers drop
// messages from newer versions rather than misreading them.
const wireVersion = 1

var errNewerWireVersion = errors.New("bus message from a newer wire version")

// envelope is the wire format shared by the Redis and NATS buses.
type envelope struct {
	Version   int              `json:"v"`
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	SentAt    time.Time        `json:"sent_at"`
	NodeID    string           `json:"node_id"`
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	if payload == nil {
		payload = events.Payload{}
	}
	return json.Marshal(envelope{
		Version:   wireVersion,
		EventType: eventType,
		Payload:   payload,
		SentAt:    time.Now().UTC(),
		NodeID:    nodeID,
	})
}

func unmarshalMessage(data []byte) (*envelope, error) {
	var msg envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal bus message: %w", err)
	}
	if msg.Version > wireVersion {
		return nil, fmt.Errorf("%w: %d", errNewerWireVersion, msg.Version)
	}
	if msg.EventType == "" {
		return nil, errors.New("bus message without event type")
	}
	return &msg, nil
}
