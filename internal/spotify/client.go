/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_radio/internal/models"
	"github.com/friendsincode/hearth_radio/internal/telemetry"
)

// APIBase is the Web API root.
const APIBase = "https://api.spotify.com/v1"

// ErrInvalidPlaylistURL is returned when a playlist id cannot be found in the input.
var ErrInvalidPlaylistURL = errors.New("invalid spotify playlist url or uri")

var playlistPatterns = []*regexp.Regexp{
	regexp.MustCompile(`playlist/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`playlist:([a-zA-Z0-9]+)`),
}

// ExtractPlaylistID accepts an open.spotify.com link or a spotify:playlist: URI.
func ExtractPlaylistID(input string) (string, error) {
	for _, re := range playlistPatterns {
		if m := re.FindStringSubmatch(input); m != nil {
			return m[1], nil
		}
	}
	return "", ErrInvalidPlaylistURL
}

// APIError is a non-2xx Web API response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify api: status %d", e.Status)
	}
	return fmt.Sprintf("spotify api: status %d: %s", e.Status, e.Message)
}

// TokenSource hands out bearer tokens. *Auth satisfies it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Device is a Spotify Connect target.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"is_active"`
	VolumePercent *int   `json:"volume_percent"`
}

// NowPlaying is the currently-playing track.
type NowPlaying struct {
	IsPlaying  bool   `json:"is_playing"`
	ContextURI string `json:"context_uri,omitempty"`
	Track      string `json:"track"`
	Artists    string `json:"artists"`
	ImageURL   string `json:"image_url,omitempty"`
	ProgressMS int    `json:"progress_ms"`
}

type playlistJSON struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URI    string `json:"uri"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

func (p playlistJSON) model() models.ExternalPlaylist {
	out := models.ExternalPlaylist{
		ID:         p.ID,
		Name:       p.Name,
		URI:        p.URI,
		TrackCount: p.Tracks.Total,
	}
	if len(p.Images) > 0 {
		out.ImageURL = p.Images[0].URL
	}
	return out
}

// Client calls the Spotify Web API on behalf of the connected account.
type Client struct {
	base   string
	tokens TokenSource
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates a client. An empty base uses APIBase.
func NewClient(base string, tokens TokenSource, logger zerolog.Logger) *Client {
	if base == "" {
		base = APIBase
	}
	return &Client{
		base:   base,
		tokens: tokens,
		http:   telemetry.HTTPClient(10 * time.Second),
		logger: logger.With().Str("component", "spotify_api").Logger(),
	}
}

// PlaylistMeta fetches name, artwork and track count for one playlist.
func (c *Client) PlaylistMeta(ctx context.Context, id string) (models.ExternalPlaylist, error) {
	q := url.Values{"fields": {"id,name,uri,images,tracks.total"}}
	var p playlistJSON
	if err := c.do(ctx, http.MethodGet, "/playlists/"+url.PathEscape(id), q, nil, &p); err != nil {
		return models.ExternalPlaylist{}, fmt.Errorf("fetch playlist %s: %w", id, err)
	}
	return p.model(), nil
}

// SearchPlaylists runs a playlist search.
func (c *Client) SearchPlaylists(ctx context.Context, query string, limit int) ([]models.ExternalPlaylist, error) {
	q := url.Values{"q": {query}, "type": {"playlist"}, "limit": {strconv.Itoa(limit)}}
	var resp struct {
		Playlists struct {
			Items []*playlistJSON `json:"items"`
		} `json:"playlists"`
	}
	if err := c.do(ctx, http.MethodGet, "/search", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("search playlists: %w", err)
	}
	return collect(resp.Playlists.Items), nil
}

// MyPlaylists lists the connected account's playlists.
func (c *Client) MyPlaylists(ctx context.Context) ([]models.ExternalPlaylist, error) {
	var resp struct {
		Items []*playlistJSON `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/me/playlists", url.Values{"limit": {"50"}}, nil, &resp); err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	return collect(resp.Items), nil
}

// search results contain null entries for playlists the account cannot see
func collect(items []*playlistJSON) []models.ExternalPlaylist {
	out := make([]models.ExternalPlaylist, 0, len(items))
	for _, p := range items {
		if p == nil {
			continue
		}
		out = append(out, p.model())
	}
	return out
}

// Devices lists the account's Connect devices.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var resp struct {
		Devices []Device `json:"devices"`
	}
	if err := c.do(ctx, http.MethodGet, "/me/player/devices", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return resp.Devices, nil
}

// Play starts a playlist context on a device.
func (c *Client) Play(ctx context.Context, deviceID, contextURI string) error {
	body := map[string]string{"context_uri": contextURI}
	return c.do(ctx, http.MethodPut, "/me/player/play", deviceQuery(deviceID), body, nil)
}

// Resume continues whatever the device had loaded.
func (c *Client) Resume(ctx context.Context, deviceID string) error {
	return c.do(ctx, http.MethodPut, "/me/player/play", deviceQuery(deviceID), nil, nil)
}

// Pause stops playback on a device.
func (c *Client) Pause(ctx context.Context, deviceID string) error {
	return c.do(ctx, http.MethodPut, "/me/player/pause", deviceQuery(deviceID), nil, nil)
}

// SetVolume sets the device volume (0-100).
func (c *Client) SetVolume(ctx context.Context, deviceID string, percent int) error {
	q := deviceQuery(deviceID)
	q.Set("volume_percent", strconv.Itoa(max(0, min(100, percent))))
	return c.do(ctx, http.MethodPut, "/me/player/volume", q, nil, nil)
}

// CurrentlyPlaying returns nil when nothing is playing.
func (c *Client) CurrentlyPlaying(ctx context.Context) (*NowPlaying, error) {
	var resp struct {
		IsPlaying  bool `json:"is_playing"`
		ProgressMS int  `json:"progress_ms"`
		Context    *struct {
			URI string `json:"uri"`
		} `json:"context"`
		Item *struct {
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				Images []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"album"`
		} `json:"item"`
	}
	if err := c.do(ctx, http.MethodGet, "/me/player/currently-playing", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("currently playing: %w", err)
	}
	if resp.Item == nil {
		return nil, nil
	}

	np := &NowPlaying{IsPlaying: resp.IsPlaying, Track: resp.Item.Name, ProgressMS: resp.ProgressMS}
	if resp.Context != nil {
		np.ContextURI = resp.Context.URI
	}
	for i, a := range resp.Item.Artists {
		if i > 0 {
			np.Artists += ", "
		}
		np.Artists += a.Name
	}
	if imgs := resp.Item.Album.Images; len(imgs) > 0 {
		np.ImageURL = imgs[0].URL
	}
	return np, nil
}

func deviceQuery(deviceID string) url.Values {
	q := url.Values{}
	if deviceID != "" {
		q.Set("device_id", deviceID)
	}
	return q
}

// do sends one authorized request. A 204 or empty body leaves out untouched.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (err error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	defer func() { telemetry.ObserveExternal("spotify", started, err) }()

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error.Message}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
