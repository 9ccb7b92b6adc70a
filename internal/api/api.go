/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api serves the JSON API consumed by the schedule editor and the
// kiosk player view.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_radio/internal/auth"
	"github.com/friendsincode/hearth_radio/internal/logbuffer"
	"github.com/friendsincode/hearth_radio/internal/playback"
	"github.com/friendsincode/hearth_radio/internal/radiobrowser"
	"github.com/friendsincode/hearth_radio/internal/schedule"
	"github.com/friendsincode/hearth_radio/internal/spotify"
	"github.com/friendsincode/hearth_radio/internal/store"
	"github.com/friendsincode/hearth_radio/internal/version"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Deps collects the services the API needs. Spotify, Stations, Player,
// Logs and Updates may be nil.
type Deps struct {
	Store      *store.Store
	Mutator    *schedule.Mutator
	Gate       *auth.Gate
	JWTSecret  []byte
	Location   *time.Location
	Clock      playback.Clock
	Spotify    *spotify.Auth
	SpotifyAPI *spotify.Client
	Stations   *radiobrowser.Client
	MetaCache  MetaCache
	Player     *playback.Orchestrator
	Logs       *logbuffer.Buffer
	Updates    *version.Checker
}

// MetaCache holds playlist metadata fetched while adding to the library.
type MetaCache interface {
	GetPlaylistMeta(ctx context.Context, id string, dest any) bool
	SetPlaylistMeta(ctx context.Context, id string, meta any) error
}

// API exposes HTTP handlers.
type API struct {
	store      *store.Store
	mutator    *schedule.Mutator
	gate       *auth.Gate
	jwtSecret  []byte
	loc        *time.Location
	clock      playback.Clock
	spotify    *spotify.Auth
	spotifyAPI *spotify.Client
	stations   *radiobrowser.Client
	metaCache  MetaCache
	player     *playback.Orchestrator
	logBuffer  *logbuffer.Buffer
	updates    *version.Checker
	logger     zerolog.Logger
	audit      zerolog.Logger

	// unlockLimit and searchLimit guard endpoints that are costly or brute-forceable.
	unlockLimit func(http.Handler) http.Handler
	searchLimit func(http.Handler) http.Handler
}

// New creates the API router wrapper.
func New(deps Deps, logger zerolog.Logger) *API {
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	clock := deps.Clock
	if clock == nil {
		clock = playback.RealClock{}
	}
	return &API{
		store:       deps.Store,
		mutator:     deps.Mutator,
		gate:        deps.Gate,
		jwtSecret:   deps.JWTSecret,
		loc:         loc,
		clock:       clock,
		spotify:     deps.Spotify,
		spotifyAPI:  deps.SpotifyAPI,
		stations:    deps.Stations,
		metaCache:   deps.MetaCache,
		player:      deps.Player,
		logBuffer:   deps.Logs,
		updates:     deps.Updates,
		logger:      logger.With().Str("component", "api").Logger(),
		audit:       logger.With().Str("component", "audit").Logger(),
		unlockLimit: rateLimit(10, time.Minute),
		searchLimit: rateLimit(30, time.Minute),
	}
}

// Routes registers every endpoint under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Get("/now-playing", a.handleNowPlaying)
		r.Get("/next", a.handleNext)
		r.Get("/schedule/blocks", a.handleBlocksList)
		r.Get("/schedule/export.ics", a.handleScheduleExport)
		r.Get("/library", a.handleLibrary)
		r.Get("/settings/public", a.handlePublicSettings)
		r.Get("/events", a.handleEvents)
		r.Get("/version", a.handleVersion)
		r.With(a.unlockLimit).Post("/auth/unlock", a.handleUnlock)
		r.With(auth.Optional(a.jwtSecret)).Get("/auth/session", a.handleSession)

		// The OAuth redirect lands here from accounts.spotify.com without a
		// bearer token. The state parameter ties it to an authorize call made
		// by an unlocked session.
		r.Get("/spotify/callback", a.handleSpotifyCallback)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))
			pr.Use(a.auditEdits)

			pr.Route("/schedule", func(r chi.Router) {
				r.Post("/assign", a.handleAssign)
				r.Post("/assign-run", a.handleAssignRun)
				r.Post("/clear", a.handleClear)
				r.Post("/resize", a.handleResize)
				r.Get("/run-bounds", a.handleRunBounds)
			})

			pr.Route("/settings", func(r chi.Router) {
				r.Get("/", a.handleSettingsGet)
				r.Put("/{key}", a.handleSettingPut)
				r.Post("/pin", a.handlePINChange)
			})

			// Registered flat: mounting /library would shadow the public GET.
			pr.Post("/library/stations", a.handleStationSave)
			pr.Delete("/library/stations/{id}", a.handleStationDelete)
			pr.Post("/library/playlists", a.handlePlaylistCreate)
			pr.Put("/library/playlists/{id}", a.handlePlaylistUpdate)
			pr.Delete("/library/playlists/{id}", a.handlePlaylistDelete)
			pr.Post("/library/external", a.handleExternalAdd)
			pr.Delete("/library/external/{id}", a.handleExternalDelete)

			pr.With(a.searchLimit).Get("/stations/search", a.handleStationSearch)

			pr.Route("/spotify", func(r chi.Router) {
				r.Get("/authorize", a.handleSpotifyAuthorize)
				r.Post("/disconnect", a.handleSpotifyDisconnect)
				r.Get("/playlists", a.handleSpotifyPlaylists)
				r.With(a.searchLimit).Get("/search", a.handleSpotifySearch)
				r.Get("/now-playing", a.handleSpotifyNowPlaying)
			})

			pr.Get("/system/logs", a.handleSystemLogs)
		})
	})
}

// rateLimit returns a per-IP limiter that answers with a JSON 429.
func rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded")
		}),
	)
}

// auditEdits logs every write made by an unlocked session.
func (a *API) auditEdits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		a.audit.Info().
			Str("client", auth.SessionClient(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("edit")
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// decodeJSON reads a bounded body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return false
	}
	return true
}

// writeServiceError maps package sentinels to statuses. Anything unknown is a 500.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, schedule.ErrInvalidSlot):
		writeError(w, http.StatusBadRequest, "invalid_slot")
	case errors.Is(err, schedule.ErrInvalidSource):
		writeError(w, http.StatusBadRequest, "invalid_source")
	case errors.Is(err, auth.ErrMalformedPIN):
		writeError(w, http.StatusBadRequest, "malformed_pin")
	case errors.Is(err, spotify.ErrInvalidPlaylistURL):
		writeError(w, http.StatusBadRequest, "invalid_playlist_url")
	case errors.Is(err, spotify.ErrNotConnected):
		writeError(w, http.StatusConflict, "spotify_not_connected")
	case errors.Is(err, spotify.ErrUnknownState):
		writeError(w, http.StatusBadRequest, "invalid_oauth_state")
	default:
		var apiErr *spotify.APIError
		if errors.As(err, &apiErr) {
			a.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("spotify request failed")
			writeError(w, http.StatusBadGateway, "spotify_error")
			return
		}
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

// clientKey identifies a client for PIN lockout. RealIP has already
// rewritten RemoteAddr when the server sits behind a proxy.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (a *API) now() time.Time {
	return a.clock.Now().In(a.loc)
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"version": version.Version}
	if a.updates != nil {
		info := a.updates.Info()
		resp["latest_version"] = info.LatestVersion
		resp["update_available"] = info.UpdateAvailable
		resp["release_url"] = info.ReleaseURL
	}
	writeJSON(w, http.StatusOK, resp)
}
