/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/hearth_radio/internal/db"
	"github.com/friendsincode/hearth_radio/internal/eventbus"
	"github.com/friendsincode/hearth_radio/internal/models"
	"github.com/friendsincode/hearth_radio/internal/store"
)

//go:embed seed.yaml
var defaultSeed []byte

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the default station library",
	Long: `Upsert stations and station playlists into the library.

Without --file the built-in SomaFM list is used. Existing entries with the same
id are updated in place; nothing is deleted. If no default station is set yet,
the seed's default_station is applied.

Examples:
  hearthradio seed
  hearthradio seed --file ./my-stations.yaml
`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML file to load instead of the built-in list")
	rootCmd.AddCommand(seedCmd)
}

type seedData struct {
	DefaultStation string         `yaml:"default_station"`
	Stations       []seedStation  `yaml:"stations"`
	Playlists      []seedPlaylist `yaml:"playlists"`
}

type seedStation struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	StreamURL   string `yaml:"stream_url"`
	Color       string `yaml:"color"`
}

type seedPlaylist struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Stations []string `yaml:"stations"`
	Color    string   `yaml:"color"`
}

// parseSeed decodes and checks a seed document.
func parseSeed(raw []byte) (*seedData, error) {
	var data seedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	ids := make(map[string]bool, len(data.Stations))
	for i, st := range data.Stations {
		if st.ID == "" || st.Name == "" {
			return nil, fmt.Errorf("station %d: id and name are required", i)
		}
		if ids[st.ID] {
			return nil, fmt.Errorf("station %q listed twice", st.ID)
		}
		u, err := url.Parse(st.StreamURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("station %q: invalid stream_url %q", st.ID, st.StreamURL)
		}
		ids[st.ID] = true
	}

	for _, pl := range data.Playlists {
		if pl.ID == "" || pl.Name == "" {
			return nil, errors.New("playlists need an id and a name")
		}
		if len(pl.ID) > 36 {
			return nil, fmt.Errorf("playlist id %q is longer than 36 characters", pl.ID)
		}
		for _, sid := range pl.Stations {
			if !ids[sid] {
				return nil, fmt.Errorf("playlist %q references unknown station %q", pl.ID, sid)
			}
		}
	}

	if data.DefaultStation != "" && !ids[data.DefaultStation] {
		return nil, fmt.Errorf("default_station %q is not in the station list", data.DefaultStation)
	}
	return &data, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	raw := defaultSeed
	if seedFile != "" {
		b, err := os.ReadFile(seedFile)
		if err != nil {
			return fmt.Errorf("read seed file: %w", err)
		}
		raw = b
	}
	data, err := parseSeed(raw)
	if err != nil {
		return err
	}

	st, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := applySeed(ctx, st, data); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d stations and %d playlists.\n", len(data.Stations), len(data.Playlists))
	return nil
}

func applySeed(ctx context.Context, st *store.Store, data *seedData) error {
	for _, s := range data.Stations {
		station := models.Station{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			StreamURL:   s.StreamURL,
			Color:       s.Color,
		}
		if err := st.SaveStation(ctx, &station); err != nil {
			return err
		}
	}

	for _, p := range data.Playlists {
		playlist := models.StationPlaylist{
			ID:         p.ID,
			Name:       p.Name,
			StationIDs: p.Stations,
			Color:      p.Color,
		}
		if err := st.SavePlaylist(ctx, &playlist); err != nil {
			return err
		}
	}

	if data.DefaultStation == "" {
		return nil
	}
	settings, err := st.Settings(ctx)
	if err != nil {
		return err
	}
	if settings.DefaultStation != "" {
		logger.Info().Str("default_station", settings.DefaultStation).Msg("default station already set, leaving it")
		return nil
	}
	return st.SetSetting(ctx, models.KeyDefaultStation, data.DefaultStation)
}

// openStore connects, migrates and attaches the configured bus so running
// processes see the changes.
func openStore() (*store.Store, func(), error) {
	database, err := db.Connect(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		_ = db.Close(database)
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	bus, closeBus := eventbus.New(cfg, logger)
	cleanup := func() {
		if err := closeBus(); err != nil {
			logger.Warn().Err(err).Msg("close event bus")
		}
		if err := db.Close(database); err != nil {
			logger.Warn().Err(err).Msg("close database")
		}
	}
	return store.New(database, bus, logger), cleanup, nil
}
