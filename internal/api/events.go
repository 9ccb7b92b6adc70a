/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/hearth_radio/internal/events"
	"github.com/friendsincode/hearth_radio/internal/telemetry"
)

const pingInterval = 15 * time.Second

// streamTypes are the events a client may subscribe to.
var streamTypes = []events.EventType{
	events.EventBlocksChanged,
	events.EventSettingsChanged,
	events.EventLibraryChanged,
	events.EventPlaybackState,
	events.EventNowPlaying,
	events.EventSpotifyConnected,
	events.EventSpotifyDisconnected,
}

// handleEvents streams change notifications so open editors and kiosks refresh.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIWebSocketConnections.Inc()
	defer telemetry.APIWebSocketConnections.Dec()

	eventTypes := parseEventTypes(r.URL.Query().Get("types"))
	if len(eventTypes) == 0 {
		eventTypes = streamTypes
	}

	// CloseRead answers control frames and cancels ctx once the client goes away.
	ctx := conn.CloseRead(r.Context())

	stream, release := a.store.Subscribe(eventTypes...)
	defer release()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				a.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		case evt, ok := <-stream:
			if !ok {
				conn.Close(ws.StatusGoingAway, "shutting down")
				return
			}
			if err := a.writeEvent(ctx, conn, evt); err != nil {
				a.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

func (a *API) writeEvent(ctx context.Context, conn *ws.Conn, evt events.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, ws.MessageText, data)
}

// parseEventTypes keeps only known types from a comma-separated list.
func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]events.EventType, 0, len(parts))
	for _, part := range parts {
		t := events.EventType(strings.TrimSpace(part))
		if slices.Contains(streamTypes, t) && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
