/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/friendsincode/hearth_radio/internal/events"
	"github.com/friendsincode/hearth_radio/internal/models"
)

const searchLimitMax = 50

func (a *API) spotifyConfigured(w http.ResponseWriter) bool {
	if a.spotify == nil || a.spotifyAPI == nil {
		writeError(w, http.StatusServiceUnavailable, "spotify_not_configured")
		return false
	}
	return true
}

func (a *API) handleSpotifyAuthorize(w http.ResponseWriter, r *http.Request) {
	if !a.spotifyConfigured(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": a.spotify.AuthorizeURL()})
}

func (a *API) handleSpotifyCallback(w http.ResponseWriter, r *http.Request) {
	if !a.spotifyConfigured(w) {
		return
	}
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		a.logger.Warn().Str("reason", reason).Msg("spotify authorization declined")
		writeError(w, http.StatusBadRequest, "spotify_denied")
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if err := a.spotify.Exchange(r.Context(), state, code); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.store.Publish(events.EventSpotifyConnected, events.Payload{})
	a.logger.Info().Msg("spotify connected")
	writeJSON(w, http.StatusOK, map[string]bool{"connected": true})
}

func (a *API) handleSpotifyDisconnect(w http.ResponseWriter, r *http.Request) {
	if !a.spotifyConfigured(w) {
		return
	}
	if err := a.spotify.Disconnect(r.Context()); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.store.Publish(events.EventSpotifyDisconnected, events.Payload{})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSpotifyPlaylists(w http.ResponseWriter, r *http.Request) {
	if !a.spotifyConfigured(w) {
		return
	}
	playlists, err := a.spotifyAPI.MyPlaylists(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": nonNil(playlists)})
}

func (a *API) handleSpotifySearch(w http.ResponseWriter, r *http.Request) {
	if !a.spotifyConfigured(w) {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query_required")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = min(n, searchLimitMax)
	}

	playlists, err := a.spotifyAPI.SearchPlaylists(r.Context(), q, limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": nonNil(playlists)})
}

func (a *API) handleSpotifyNowPlaying(w http.ResponseWriter, r *http.Request) {
	if !a.spotifyConfigured(w) {
		return
	}
	np, err := a.spotifyAPI.CurrentlyPlaying(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"now_playing": np})
}

func nonNil(in []models.ExternalPlaylist) []models.ExternalPlaylist {
	if in == nil {
		return []models.ExternalPlaylist{}
	}
	return in
}
