/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package enrich keeps library metadata fresh: playlist artwork and track
// counts from Spotify, and moved stream URLs from the station directory.
package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/friendsincode/hearth_radio/internal/models"
	"github.com/friendsincode/hearth_radio/internal/radiobrowser"
	"github.com/friendsincode/hearth_radio/internal/spotify"
	"github.com/friendsincode/hearth_radio/internal/telemetry"
)

const (
	// DefaultInterval between full passes.
	DefaultInterval = 6 * time.Hour
	// DefaultStagger spaces out third-party calls within a pass.
	DefaultStagger = 150 * time.Millisecond
)

// Library is the store surface the worker reads and writes.
type Library interface {
	Library(ctx context.Context) (models.Library, error)
	SaveStation(ctx context.Context, station *models.Station) error
	SaveExternal(ctx context.Context, playlist *models.ExternalPlaylist) error
}

// PlaylistSource fetches playlist metadata. *spotify.Client satisfies it.
type PlaylistSource interface {
	PlaylistMeta(ctx context.Context, id string) (models.ExternalPlaylist, error)
}

// StationSource looks up directory stations. *radiobrowser.Client satisfies it.
type StationSource interface {
	ByUUID(ctx context.Context, uuid string) (*radiobrowser.Station, error)
}

// Worker refreshes metadata on an interval. Either source may be nil.
type Worker struct {
	lib       Library
	playlists PlaylistSource
	stations  StationSource
	limiter   *rate.Limiter
	interval  time.Duration
	logger    zerolog.Logger
}

// NewWorker creates a worker with the default interval and stagger.
func NewWorker(lib Library, playlists PlaylistSource, stations StationSource, logger zerolog.Logger) *Worker {
	return &Worker{
		lib:       lib,
		playlists: playlists,
		stations:  stations,
		limiter:   rate.NewLimiter(rate.Every(DefaultStagger), 1),
		interval:  DefaultInterval,
		logger:    logger.With().Str("component", "enrichment").Logger(),
	}
}

// Run refreshes immediately and then every interval until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.RefreshAll(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn().Err(err).Msg("enrichment pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RefreshAll performs one pass. Per-item failures are logged and skipped.
func (w *Worker) RefreshAll(ctx context.Context) error {
	lib, err := w.lib.Library(ctx)
	if err != nil {
		return err
	}

	updated := 0
	if w.playlists != nil {
		for _, p := range lib.External {
			ok, err := w.refreshPlaylist(ctx, p)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				if errors.Is(err, spotify.ErrNotConnected) {
					w.logger.Debug().Msg("spotify not connected, skipping playlists")
					break
				}
				w.logger.Debug().Err(err).Str("playlist", p.ID).Msg("playlist refresh failed")
				continue
			}
			if ok {
				updated++
			}
		}
	}

	if w.stations != nil {
		for _, s := range lib.Stations {
			ok, err := w.refreshStation(ctx, s)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				w.logger.Debug().Err(err).Str("station", s.ID).Msg("station refresh failed")
				continue
			}
			if ok {
				updated++
			}
		}
	}

	w.logger.Debug().Int("updated", updated).Msg("enrichment pass complete")
	return nil
}

func (w *Worker) refreshPlaylist(ctx context.Context, p models.ExternalPlaylist) (bool, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return false, err
	}
	meta, err := w.playlists.PlaylistMeta(ctx, p.ID)
	if err != nil {
		telemetry.EnrichmentUpdatesTotal.WithLabelValues("error").Inc()
		return false, err
	}
	if meta.TrackCount == p.TrackCount && meta.ImageURL == p.ImageURL && (meta.Name == "" || meta.Name == p.Name) {
		telemetry.EnrichmentUpdatesTotal.WithLabelValues("unchanged").Inc()
		return false, nil
	}

	p.TrackCount = meta.TrackCount
	p.ImageURL = meta.ImageURL
	if meta.Name != "" {
		p.Name = meta.Name
	}
	if err := w.lib.SaveExternal(ctx, &p); err != nil {
		telemetry.EnrichmentUpdatesTotal.WithLabelValues("error").Inc()
		return false, err
	}
	telemetry.EnrichmentUpdatesTotal.WithLabelValues("updated").Inc()
	return true, nil
}

// refreshStation follows a directory station to its current stream URL.
// Stations that did not come from the directory are left alone: their ids
// are not directory UUIDs.
func (w *Worker) refreshStation(ctx context.Context, s models.Station) (bool, error) {
	if _, err := uuid.Parse(s.ID); err != nil {
		return false, nil
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return false, err
	}
	found, err := w.stations.ByUUID(ctx, s.ID)
	if err != nil {
		telemetry.EnrichmentUpdatesTotal.WithLabelValues("error").Inc()
		return false, err
	}
	if found == nil || found.URLResolved == s.StreamURL {
		telemetry.EnrichmentUpdatesTotal.WithLabelValues("unchanged").Inc()
		return false, nil
	}

	w.logger.Info().Str("station", s.Name).Str("stream_url", found.URLResolved).Msg("station stream moved")
	s.StreamURL = found.URLResolved
	if err := w.lib.SaveStation(ctx, &s); err != nil {
		telemetry.EnrichmentUpdatesTotal.WithLabelValues("error").Inc()
		return false, err
	}
	telemetry.EnrichmentUpdatesTotal.WithLabelValues("updated").Inc()
	return true, nil
}
