/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package radiobrowser searches the radio-browser.info station directory.
package radiobrowser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_radio/internal/config"
	"github.com/friendsincode/hearth_radio/internal/models"
	"github.com/friendsincode/hearth_radio/internal/telemetry"
)

// SearchLimit caps directory results.
const SearchLimit = 20

// Station is one directory entry.
type Station struct {
	StationUUID string `json:"stationuuid"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	URLResolved string `json:"url_resolved"`
	Homepage    string `json:"homepage,omitempty"`
	Favicon     string `json:"favicon,omitempty"`
	Tags        string `json:"tags"`
	Country     string `json:"country"`
	Codec       string `json:"codec,omitempty"`
	Bitrate     int    `json:"bitrate"`
	Votes       int    `json:"votes"`
}

// LibraryStation converts a directory entry into a library station.
func (s Station) LibraryStation() models.Station {
	desc := s.Tags
	if desc == "" {
		desc = s.Country
	}
	return models.Station{
		ID:          s.StationUUID,
		Name:        strings.TrimSpace(s.Name),
		Description: desc,
		StreamURL:   s.URLResolved,
		Color:       models.ColorFor(s.StationUUID),
	}
}

// SearchCache stores search results between calls. *cache.Cache satisfies it.
type SearchCache interface {
	GetStationSearch(ctx context.Context, query string, dest any) bool
	SetStationSearch(ctx context.Context, query string, results any) error
}

// Client talks to one radio-browser mirror.
type Client struct {
	base      string
	userAgent string
	http      *http.Client
	cache     SearchCache
	logger    zerolog.Logger
}

// NewClient creates a client. cache may be nil.
func NewClient(cfg *config.Config, cache SearchCache, logger zerolog.Logger) *Client {
	return &Client{
		base:      strings.TrimRight(cfg.RadioBrowserURL, "/"),
		userAgent: cfg.UserAgent,
		http:      telemetry.HTTPClient(10 * time.Second),
		cache:     cache,
		logger:    logger.With().Str("component", "radiobrowser").Logger(),
	}
}

// Search finds stations by name, most voted first. Entries without a resolved
// stream are dropped. A blank query returns nothing.
func (c *Client) Search(ctx context.Context, query string) ([]Station, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Station{}, nil
	}

	var cached []Station
	if c.cache != nil && c.cache.GetStationSearch(ctx, query, &cached) {
		return cached, nil
	}

	q := url.Values{
		"name":       {query},
		"limit":      {fmt.Sprint(SearchLimit)},
		"hidebroken": {"true"},
		"order":      {"votes"},
		"reverse":    {"true"},
	}
	var raw []Station
	if err := c.get(ctx, "/json/stations/search", q, &raw); err != nil {
		return nil, fmt.Errorf("search stations: %w", err)
	}

	out := playable(raw)
	if c.cache != nil {
		if err := c.cache.SetStationSearch(ctx, query, out); err != nil {
			c.logger.Debug().Err(err).Msg("failed to cache search results")
		}
	}
	return out, nil
}

// ByUUID looks one station up. It returns nil when the directory does not know it.
func (c *Client) ByUUID(ctx context.Context, uuid string) (*Station, error) {
	var raw []Station
	if err := c.get(ctx, "/json/stations/byuuid", url.Values{"uuids": {uuid}}, &raw); err != nil {
		return nil, fmt.Errorf("lookup station %s: %w", uuid, err)
	}
	found := playable(raw)
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func playable(in []Station) []Station {
	out := make([]Station, 0, len(in))
	for _, s := range in {
		if s.URLResolved != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	defer func() { telemetry.ObserveExternal("radiobrowser", started, err) }()

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
