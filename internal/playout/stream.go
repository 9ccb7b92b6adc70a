/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playout plays direct internet radio streams through GStreamer.
package playout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_radio/internal/config"
	"github.com/friendsincode/hearth_radio/internal/models"
	"github.com/friendsincode/hearth_radio/internal/playback"
	"github.com/friendsincode/hearth_radio/internal/schedule"
)

// ErrNoStream is returned when a choice carries no playable stream URL.
var ErrNoStream = errors.New("station has no stream url")

// DirectStream is the playback adapter for station sources. A gst-launch
// playbin cannot be retuned in place, so switching and volume changes relaunch
// the process, and pause stops it: a live stream has nothing to hold.
type DirectStream struct {
	bin    string
	sink   string
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	pipeline *Pipeline
	url      string
	volume   int
}

var _ playback.Adapter = (*DirectStream)(nil)

// NewDirectStream builds the adapter from config.
func NewDirectStream(cfg *config.Config, logger zerolog.Logger) *DirectStream {
	ctx, cancel := context.WithCancel(context.Background())
	l := logger.With().Str("component", "direct_stream").Logger()
	return &DirectStream{
		bin:      cfg.GStreamerBin,
		sink:     cfg.AudioSink,
		logger:   l,
		ctx:      ctx,
		cancel:   cancel,
		pipeline: NewPipeline(cfg.GStreamerBin, l),
		volume:   70,
	}
}

// Ready is always closed: there is no handshake.
func (d *DirectStream) Ready() <-chan struct{} {
	return playback.ReadyNow()
}

// Start plays the station at volume.
func (d *DirectStream) Start(_ context.Context, choice schedule.PlaybackChoice, volume int) error {
	streamURL, err := streamFor(choice)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.url, d.volume = streamURL, volume
	return d.relaunchLocked()
}

// Switch retunes to another station, keeping the volume.
func (d *DirectStream) Switch(_ context.Context, choice schedule.PlaybackChoice) error {
	streamURL, err := streamFor(choice)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = streamURL
	return d.relaunchLocked()
}

// Pause stops the stream.
func (d *DirectStream) Pause(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipeline.Stop()
}

// Resume reconnects to the last stream.
func (d *DirectStream) Resume(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.url == "" {
		return ErrNoStream
	}
	return d.relaunchLocked()
}

// SetVolume applies volume (0-100). A running stream is relaunched at the new level.
func (d *DirectStream) SetVolume(_ context.Context, volume int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = volume
	if !d.pipeline.Running() {
		return nil
	}
	return d.relaunchLocked()
}

// Playing reports whether a stream process is alive.
func (d *DirectStream) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipeline.Running()
}

// Close stops playback for good.
func (d *DirectStream) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.pipeline.Stop()
	d.cancel()
	return err
}

func (d *DirectStream) relaunchLocked() error {
	if err := d.pipeline.Stop(); err != nil {
		return err
	}
	launch := LaunchLine(d.url, d.volume, d.sink)
	d.logger.Info().Str("url", d.url).Int("volume", d.volume).Msg("starting stream")
	return d.pipeline.Start(d.ctx, launch)
}

// LaunchLine builds the gst-launch description for a playbin stream.
func LaunchLine(streamURL string, volume int, sink string) string {
	volume = min(max(volume, 0), 100)
	line := fmt.Sprintf("playbin uri=%s volume=%.2f", shellQuote(streamURL), float64(volume)/100)
	if sink != "" {
		line += " audio-sink=" + shellQuote(sink)
	}
	return line
}

func streamFor(choice schedule.PlaybackChoice) (string, error) {
	if choice.Kind != models.SourceStation || choice.Station == nil {
		return "", fmt.Errorf("direct stream cannot play %s", choice.Kind)
	}
	u, err := url.Parse(choice.Station.StreamURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: %q", ErrNoStream, choice.Station.StreamURL)
	}
	return u.String(), nil
}
