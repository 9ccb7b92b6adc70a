/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package spotify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_radio/internal/models"
	"github.com/friendsincode/hearth_radio/internal/playback"
	"github.com/friendsincode/hearth_radio/internal/schedule"
)

// ErrNoDevice is returned for commands issued before the device was found.
var ErrNoDevice = errors.New("spotify connect device not found")

// DiscoveryInterval is how often the device list is polled.
const DiscoveryInterval = 15 * time.Second

// Player is the Web API surface the Connect adapter needs. *Client satisfies it.
type Player interface {
	Devices(ctx context.Context) ([]Device, error)
	Play(ctx context.Context, deviceID, contextURI string) error
	Resume(ctx context.Context, deviceID string) error
	Pause(ctx context.Context, deviceID string) error
	SetVolume(ctx context.Context, deviceID string, percent int) error
}

// Connect plays external playlists on a named Spotify Connect device, such as
// a librespot instance running on the kiosk.
type Connect struct {
	api        Player
	deviceName string
	logger     zerolog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	mu       sync.RWMutex
	deviceID string
}

var _ playback.Adapter = (*Connect)(nil)

// NewConnect creates the adapter. It is not ready until Discover finds the device.
func NewConnect(api Player, deviceName string, logger zerolog.Logger) *Connect {
	return &Connect{
		api:        api,
		deviceName: deviceName,
		logger:     logger.With().Str("component", "spotify_connect").Logger(),
		ready:      make(chan struct{}),
	}
}

// Run polls for the device until ctx is cancelled. The device id is refreshed
// on every poll because librespot gets a new one after a restart.
func (c *Connect) Run(ctx context.Context) {
	ticker := time.NewTicker(DiscoveryInterval)
	defer ticker.Stop()

	for {
		if err := c.Discover(ctx); err != nil && ctx.Err() == nil {
			if errors.Is(err, ErrNotConnected) {
				c.logger.Debug().Msg("waiting for spotify login")
			} else {
				c.logger.Debug().Err(err).Msg("device discovery failed")
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Discover looks the device up once.
func (c *Connect) Discover(ctx context.Context) error {
	devices, err := c.api.Devices(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if d.ID == "" || !strings.EqualFold(d.Name, c.deviceName) {
			continue
		}
		c.mu.Lock()
		changed := c.deviceID != d.ID
		c.deviceID = d.ID
		c.mu.Unlock()
		if changed {
			c.logger.Info().Str("device", d.Name).Msg("spotify connect device found")
		}
		c.readyOnce.Do(func() { close(c.ready) })
		return nil
	}
	return ErrNoDevice
}

// Ready closes once the device has been seen.
func (c *Connect) Ready() <-chan struct{} {
	return c.ready
}

// Start plays the playlist and applies the volume.
func (c *Connect) Start(ctx context.Context, choice schedule.PlaybackChoice, volume int) error {
	if err := c.Switch(ctx, choice); err != nil {
		return err
	}
	return c.SetVolume(ctx, volume)
}

// Switch loads a different playlist.
func (c *Connect) Switch(ctx context.Context, choice schedule.PlaybackChoice) error {
	uri, err := playlistURI(choice)
	if err != nil {
		return err
	}
	device, err := c.device()
	if err != nil {
		return err
	}
	return c.api.Play(ctx, device, uri)
}

// Pause pauses the device.
func (c *Connect) Pause(ctx context.Context) error {
	device, err := c.device()
	if err != nil {
		return err
	}
	return c.api.Pause(ctx, device)
}

// Resume resumes the device.
func (c *Connect) Resume(ctx context.Context) error {
	device, err := c.device()
	if err != nil {
		return err
	}
	return c.api.Resume(ctx, device)
}

// SetVolume sets the device volume.
func (c *Connect) SetVolume(ctx context.Context, volume int) error {
	device, err := c.device()
	if err != nil {
		return err
	}
	return c.api.SetVolume(ctx, device, volume)
}

func (c *Connect) device() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.deviceID == "" {
		return "", ErrNoDevice
	}
	return c.deviceID, nil
}

func playlistURI(choice schedule.PlaybackChoice) (string, error) {
	if choice.Kind != models.SourceSpotify || choice.Playlist == nil || choice.Playlist.URI == "" {
		return "", fmt.Errorf("spotify adapter cannot play %s source %q", choice.Kind, choice.Name())
	}
	return choice.Playlist.URI, nil
}
