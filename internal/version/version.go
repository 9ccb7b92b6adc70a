/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version reports the build version and watches for newer releases.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_radio/internal/telemetry"
)

// Version is set at build time:
//
//	-X github.com/friendsincode/hearth_radio/internal/version.Version=X.Y.Z
var Version = "0.9.0"

// Repo is the GitHub repository polled for releases.
const Repo = "friendsincode/hearth_radio"

const checkPeriod = 12 * time.Hour

// UpdateInfo is the outcome of the most recent release check.
type UpdateInfo struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version,omitempty"`
	UpdateAvailable bool      `json:"update_available"`
	ReleaseURL      string    `json:"release_url,omitempty"`
	ReleaseNotes    string    `json:"release_notes,omitempty"`
	CheckedAt       time.Time `json:"checked_at,omitempty"`
}

// Checker polls the latest release in the background.
type Checker struct {
	releasesURL string
	http        *http.Client
	logger      zerolog.Logger

	mu   sync.RWMutex
	info UpdateInfo
}

type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
	Body    string `json:"body"`
}

// NewChecker creates a checker against the public GitHub API.
func NewChecker(logger zerolog.Logger) *Checker {
	return &Checker{
		releasesURL: fmt.Sprintf("https://api.github.com/repos/%s/releases/latest", Repo),
		http:        telemetry.HTTPClient(10 * time.Second),
		logger:      logger.With().Str("component", "update-checker").Logger(),
		info:        UpdateInfo{CurrentVersion: Version},
	}
}

// Run checks immediately and then periodically until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(checkPeriod)
	defer ticker.Stop()
	for {
		if err := c.Check(ctx); err != nil {
			c.logger.Debug().Err(err).Msg("release check failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Info returns the latest known release information.
func (c *Checker) Info() UpdateInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// Check fetches the latest release once.
func (c *Checker) Check(ctx context.Context) (err error) {
	defer func(start time.Time) { telemetry.ObserveExternal("github", start, err) }(time.Now())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.releasesURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "HearthRadio/"+Version)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch latest release: status %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return fmt.Errorf("decode release: %w", err)
	}

	latest := strings.TrimPrefix(rel.TagName, "v")
	info := UpdateInfo{
		CurrentVersion:  Version,
		LatestVersion:   latest,
		UpdateAvailable: compareVersions(Version, latest) < 0,
		ReleaseURL:      rel.HTMLURL,
		ReleaseNotes:    firstLine(rel.Body, 200),
		CheckedAt:       time.Now(),
	}

	c.mu.Lock()
	c.info = info
	c.mu.Unlock()

	if info.UpdateAvailable {
		c.logger.Info().Str("current", Version).Str("latest", latest).Msg("new version available")
	}
	return nil
}

// compareVersions returns -1, 0 or 1 comparing semver strings a and b.
func compareVersions(a, b string) int {
	av, bv := parseVersion(a), parseVersion(b)
	for i := range av {
		switch {
		case av[i] < bv[i]:
			return -1
		case av[i] > bv[i]:
			return 1
		}
	}
	return 0
}

func parseVersion(v string) [3]int {
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	var out [3]int
	for i, part := range strings.SplitN(v, ".", 3) {
		n, err := strconv.Atoi(part)
		if err != nil {
			break
		}
		out[i] = n
	}
	return out
}

func firstLine(s string, maxLen int) string {
	s, _, _ = strings.Cut(s, "\n")
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
