/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires the store, API, background workers and optionally the
// player into one process.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/friendsincode/hearth_radio/internal/api"
	"github.com/friendsincode/hearth_radio/internal/auth"
	"github.com/friendsincode/hearth_radio/internal/cache"
	"github.com/friendsincode/hearth_radio/internal/config"
	"github.com/friendsincode/hearth_radio/internal/db"
	"github.com/friendsincode/hearth_radio/internal/enrich"
	"github.com/friendsincode/hearth_radio/internal/eventbus"
	"github.com/friendsincode/hearth_radio/internal/events"
	"github.com/friendsincode/hearth_radio/internal/leadership"
	"github.com/friendsincode/hearth_radio/internal/logbuffer"
	"github.com/friendsincode/hearth_radio/internal/radiobrowser"
	"github.com/friendsincode/hearth_radio/internal/schedule"
	"github.com/friendsincode/hearth_radio/internal/spotify"
	"github.com/friendsincode/hearth_radio/internal/store"
	"github.com/friendsincode/hearth_radio/internal/telemetry"
	"github.com/friendsincode/hearth_radio/internal/version"
)

// Options selects optional parts of the process.
type Options struct {
	// WithPlayer embeds the player so one process serves the API and plays audio.
	WithPlayer bool
}

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db         *gorm.DB
	bus        events.Broker
	store      *store.Store
	cache      *cache.Cache
	election   *leadership.Election
	spotify    *spotify.Auth
	spotifyAPI *spotify.Client
	stations   *radiobrowser.Client
	enricher   *enrich.Worker
	updates    *version.Checker
	player     *Player
	logBuffer  *logbuffer.Buffer
	api        *api.API

	bgCancel context.CancelFunc
	bg       *errgroup.Group
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger, opts Options) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("hearth-radio-api"))
	router.Use(telemetry.MetricsMiddleware)
	// The event stream is long-lived; everything else gets a deadline.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(30 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(opts); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// Zero so the websocket stream is not cut; the middleware bounds the rest.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data: https:; connect-src 'self' ws: wss:; frame-ancestors 'none'; base-uri 'self'")

		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies(opts Options) error {
	database, err := db.Connect(s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	s.DeferClose(func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	s.db = database

	bus, closeBus := eventbus.New(s.cfg, s.logger)
	s.bus = bus
	s.DeferClose(closeBus)

	s.store = store.New(database, bus, s.logger)

	// Redis is optional for a single household; without it searches go uncached.
	if s.cfg.EventBus == config.EventBusRedis || s.cfg.LeaderElectionEnabled {
		c, err := cache.New(cache.ConfigFrom(s.cfg), s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = c
			s.DeferClose(c.Close)
		}
	}

	if s.cfg.LeaderElectionEnabled {
		election, err := leadership.NewElection(leadership.ConfigFrom(s.cfg), s.logger)
		if err != nil {
			return fmt.Errorf("create leader election: %w", err)
		}
		s.election = election
		s.DeferClose(election.Stop)
		s.logger.Info().
			Str("redis_addr", s.cfg.RedisAddr).
			Str("instance_id", election.InstanceID()).
			Msg("leader election enabled for background jobs")
	}

	var searchCache radiobrowser.SearchCache
	if s.cache != nil {
		searchCache = s.cache
	}
	s.stations = radiobrowser.NewClient(s.cfg, searchCache, s.logger)

	if s.cfg.SpotifyEnabled() {
		s.spotify = spotify.NewAuth(s.cfg, s.store, s.logger)
		s.spotifyAPI = spotify.NewClient(spotify.APIBase, s.spotify, s.logger)
	}

	var playlists enrich.PlaylistSource
	if s.spotifyAPI != nil {
		playlists = s.spotifyAPI
	}
	s.enricher = enrich.NewWorker(s.store, playlists, s.stations, s.logger)

	if opts.WithPlayer {
		s.player = newPlayer(s.cfg, s.store, s.bus, s.spotifyAPI, s.logger)
		s.DeferClose(s.player.closeAdapters)
	}

	s.updates = version.NewChecker(s.logger)

	gate := auth.NewGate(s.cfg, s.store, s.logger)
	deps := api.Deps{
		Store:      s.store,
		Mutator:    schedule.NewMutator(s.store, s.logger),
		Gate:       gate,
		JWTSecret:  []byte(s.cfg.JWTSigningKey),
		Location:   s.cfg.Location,
		Spotify:    s.spotify,
		SpotifyAPI: s.spotifyAPI,
		Stations:   s.stations,
		Logs:       s.logBuffer,
		Updates:    s.updates,
	}
	if s.cache != nil {
		deps.MetaCache = s.cache
	}
	if s.player != nil {
		deps.Player = s.player.orchestrator
	}
	s.api = api.New(deps, s.logger)

	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	s.bg = g

	var leader leadership.Leader = leadership.Solo{}
	if s.election != nil {
		s.election.Start(ctx)
		leader = s.election
	}

	enrichRunner := leadership.NewRunner(leader, "enrichment", s.enricher.Run, s.logger)
	g.Go(func() error {
		enrichRunner.Run(ctx)
		return nil
	})

	g.Go(func() error {
		s.updates.Run(ctx)
		return nil
	})

	if s.player != nil {
		g.Go(func() error {
			if err := s.player.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("player exited")
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	})
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	if err := s.bg.Wait(); err != nil {
		s.logger.Warn().Err(err).Msg("background worker stopped with error")
	}
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", telemetry.Handler())
	s.api.Routes(s.router)
}

// handleHealth reports database reachability and, when elections run, leadership.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	status := http.StatusOK

	if err := ping(r.Context(), s.db); err != nil {
		resp["status"] = "degraded"
		resp["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if s.election != nil {
		resp["leader"] = s.election.IsLeader()
	}
	if s.player != nil {
		resp["player"] = s.player.orchestrator.State()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func ping(ctx context.Context, database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
