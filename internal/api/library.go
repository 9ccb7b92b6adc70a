/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/hearth_radio/internal/models"
	"github.com/friendsincode/hearth_radio/internal/spotify"
)

type stationRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	StreamURL   string `json:"stream_url"`
	Color       string `json:"color"`
	// RadioBrowserUUID imports a directory entry instead of the fields above.
	RadioBrowserUUID string `json:"radio_browser_uuid"`
}

type playlistRequest struct {
	Name       string   `json:"name"`
	StationIDs []string `json:"station_ids"`
	Color      string   `json:"color"`
}

type externalRequest struct {
	URL string `json:"url"`
}

func (a *API) handleLibrary(w http.ResponseWriter, r *http.Request) {
	lib, err := a.store.Library(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if lib.Stations == nil {
		lib.Stations = []models.Station{}
	}
	if lib.Playlists == nil {
		lib.Playlists = []models.StationPlaylist{}
	}
	if lib.External == nil {
		lib.External = []models.ExternalPlaylist{}
	}
	writeJSON(w, http.StatusOK, lib)
}

func (a *API) handleStationSave(w http.ResponseWriter, r *http.Request) {
	var req stationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var station models.Station
	if req.RadioBrowserUUID != "" {
		if a.stations == nil {
			writeError(w, http.StatusServiceUnavailable, "directory_not_configured")
			return
		}
		found, err := a.stations.ByUUID(r.Context(), req.RadioBrowserUUID)
		if err != nil {
			a.logger.Warn().Err(err).Str("uuid", req.RadioBrowserUUID).Msg("station lookup failed")
			writeError(w, http.StatusBadGateway, "directory_error")
			return
		}
		if found == nil {
			writeError(w, http.StatusNotFound, "station_not_found")
			return
		}
		station = found.LibraryStation()
	} else {
		station = models.Station{
			ID:          strings.TrimSpace(req.ID),
			Name:        strings.TrimSpace(req.Name),
			Description: strings.TrimSpace(req.Description),
			StreamURL:   strings.TrimSpace(req.StreamURL),
			Color:       req.Color,
		}
	}

	if station.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	if !validStreamURL(station.StreamURL) {
		writeError(w, http.StatusBadRequest, "invalid_stream_url")
		return
	}

	if err := a.store.SaveStation(r.Context(), &station); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, station)
}

func validStreamURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// handleStationDelete removes the station. Blocks that referenced it stay
// in the schedule as orphans.
func (a *API) handleStationDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteStation(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePlaylistCreate(w http.ResponseWriter, r *http.Request) {
	a.savePlaylist(w, r, "")
}

func (a *API) handlePlaylistUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lib, err := a.store.Library(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if _, ok := lib.Playlist(id); !ok {
		writeError(w, http.StatusNotFound, "playlist_not_found")
		return
	}
	a.savePlaylist(w, r, id)
}

func (a *API) savePlaylist(w http.ResponseWriter, r *http.Request, id string) {
	var req playlistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	lib, err := a.store.Library(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	for _, sid := range req.StationIDs {
		if _, ok := lib.Station(sid); !ok {
			writeError(w, http.StatusBadRequest, "unknown_station")
			return
		}
	}

	playlist := models.StationPlaylist{
		ID:         id,
		Name:       name,
		StationIDs: req.StationIDs,
		Color:      req.Color,
	}
	if err := a.store.SavePlaylist(r.Context(), &playlist); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, playlist)
}

func (a *API) handlePlaylistDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeletePlaylist(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExternalAdd accepts a share link or URI, fetches the playlist's
// metadata and stores it in the library.
func (a *API) handleExternalAdd(w http.ResponseWriter, r *http.Request) {
	if a.spotifyAPI == nil {
		writeError(w, http.StatusServiceUnavailable, "spotify_not_configured")
		return
	}
	var req externalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := spotify.ExtractPlaylistID(req.URL)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	ctx := r.Context()
	var meta models.ExternalPlaylist
	if a.metaCache == nil || !a.metaCache.GetPlaylistMeta(ctx, id, &meta) {
		meta, err = a.spotifyAPI.PlaylistMeta(ctx, id)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		if a.metaCache != nil {
			if err := a.metaCache.SetPlaylistMeta(ctx, id, meta); err != nil {
				a.logger.Debug().Err(err).Str("playlist", id).Msg("playlist meta not cached")
			}
		}
	}

	if err := a.store.SaveExternal(ctx, &meta); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (a *API) handleExternalDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteExternal(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleStationSearch(w http.ResponseWriter, r *http.Request) {
	if a.stations == nil {
		writeError(w, http.StatusServiceUnavailable, "directory_not_configured")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query_required")
		return
	}

	results, err := a.stations.Search(r.Context(), q)
	if err != nil {
		a.logger.Warn().Err(err).Str("query", q).Msg("station search failed")
		writeError(w, http.StatusBadGateway, "directory_error")
		return
	}

	out := make([]models.Station, 0, len(results))
	for _, s := range results {
		out = append(out, s.LibraryStation())
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}
