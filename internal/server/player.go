/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/friendsincode/hearth_radio/internal/config"
	"github.com/friendsincode/hearth_radio/internal/db"
	"github.com/friendsincode/hearth_radio/internal/eventbus"
	"github.com/friendsincode/hearth_radio/internal/events"
	"github.com/friendsincode/hearth_radio/internal/models"
	"github.com/friendsincode/hearth_radio/internal/playback"
	"github.com/friendsincode/hearth_radio/internal/playout"
	"github.com/friendsincode/hearth_radio/internal/spotify"
	"github.com/friendsincode/hearth_radio/internal/store"
	"github.com/friendsincode/hearth_radio/internal/telemetry"
)

// Player is the orchestrator together with its audio adapters.
type Player struct {
	orchestrator *playback.Orchestrator
	stream       *playout.DirectStream
	connect      *spotify.Connect
}

func newPlayer(cfg *config.Config, st *store.Store, bus events.Broker, spotifyAPI *spotify.Client, logger zerolog.Logger) *Player {
	p := &Player{stream: playout.NewDirectStream(cfg, logger)}
	adapters := map[models.SourceType]playback.Adapter{
		models.SourceStation: p.stream,
	}
	if spotifyAPI != nil {
		p.connect = spotify.NewConnect(spotifyAPI, cfg.SpotifyDeviceName, logger)
		adapters[models.SourceSpotify] = p.connect
	} else {
		logger.Info().Msg("spotify not configured, playlist blocks will be silent")
	}

	p.orchestrator = playback.New(st, adapters, playback.Options{
		Location:  cfg.Location,
		Publisher: bus,
	}, logger)
	return p
}

// Run drives playback and device discovery until ctx ends.
func (p *Player) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if p.connect != nil {
		g.Go(func() error {
			p.connect.Run(ctx)
			return nil
		})
	}
	g.Go(func() error { return p.orchestrator.Run(ctx) })
	return g.Wait()
}

func (p *Player) closeAdapters() error {
	return p.stream.Close()
}

// Standalone is the kiosk process: the player against the shared database
// and bus, with only /healthz and /metrics exposed.
type Standalone struct {
	cfg     *config.Config
	logger  zerolog.Logger
	db      *gorm.DB
	player  *Player
	closers []func() error
}

// NewStandalone connects to the database and bus and builds the player.
func NewStandalone(cfg *config.Config, logger zerolog.Logger) (*Standalone, error) {
	s := &Standalone{cfg: cfg, logger: logger}

	database, err := db.Connect(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	s.closers = append(s.closers, func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.db = database

	bus, closeBus := eventbus.New(cfg, logger)
	s.closers = append(s.closers, closeBus)
	if cfg.EventBus == config.EventBusMemory {
		logger.Warn().Msg("in-memory event bus: edits made by a separate serve process are picked up on the next minute tick only")
	}

	st := store.New(database, bus, logger)

	var spotifyAPI *spotify.Client
	if cfg.SpotifyEnabled() {
		spotifyAPI = spotify.NewClient(spotify.APIBase, spotify.NewAuth(cfg, st, logger), logger)
	}

	s.player = newPlayer(cfg, st, bus, spotifyAPI, logger)
	s.closers = append(s.closers, s.player.closeAdapters)
	return s, nil
}

// Run plays until ctx is cancelled.
func (s *Standalone) Run(ctx context.Context) error {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := map[string]any{"status": "ok", "player": s.player.orchestrator.State()}
		if err := ping(r.Context(), s.db); err != nil {
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	})
	r.Handle("/metrics", telemetry.Handler())
	httpSrv := &http.Server{
		Addr:              s.cfg.MetricsBind,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info().Str("addr", httpSrv.Addr).Msg("player health listener")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return s.player.Run(ctx) })
	return g.Wait()
}

// Close stops audio and releases the database and bus.
func (s *Standalone) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}
