/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/hearth_radio/internal/events"
	"github.com/friendsincode/hearth_radio/internal/models"
)

// Library loads the full source library.
func (s *Store) Library(ctx context.Context) (models.Library, error) {
	var lib models.Library
	db := s.db.WithContext(ctx)
	if err := db.Order("name ASC").Find(&lib.Stations).Error; err != nil {
		return lib, fmt.Errorf("list stations: %w", err)
	}
	if err := db.Order("name ASC").Find(&lib.Playlists).Error; err != nil {
		return lib, fmt.Errorf("list station playlists: %w", err)
	}
	if err := db.Order("name ASC").Find(&lib.External).Error; err != nil {
		return lib, fmt.Errorf("list external playlists: %w", err)
	}
	return lib, nil
}

// SaveStation creates or replaces a station. A missing color is derived from the id.
func (s *Store) SaveStation(ctx context.Context, station *models.Station) error {
	if station.ID == "" {
		station.ID = uuid.NewString()
	}
	if station.Color == "" {
		station.Color = models.ColorFor(station.ID)
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "stream_url", "color", "updated_at"}),
	}).Create(station).Error
	if err != nil {
		return fmt.Errorf("save station: %w", err)
	}
	s.publish(events.EventLibraryChanged, events.Payload{"kind": "station", "op": "save", "id": station.ID})
	return nil
}

// DeleteStation removes a station and strips it from every station playlist.
func (s *Store) DeleteStation(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Station{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		var playlists []models.StationPlaylist
		if err := tx.Find(&playlists).Error; err != nil {
			return err
		}
		for _, p := range playlists {
			if !slices.Contains(p.StationIDs, id) {
				continue
			}
			p.StationIDs = slices.DeleteFunc(p.StationIDs, func(sid string) bool { return sid == id })
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete station: %w", err)
	}
	s.publish(events.EventLibraryChanged, events.Payload{"kind": "station", "op": "delete", "id": id})
	return nil
}

// SavePlaylist creates or replaces a station playlist.
func (s *Store) SavePlaylist(ctx context.Context, playlist *models.StationPlaylist) error {
	if playlist.ID == "" {
		playlist.ID = uuid.NewString()
	}
	if playlist.Color == "" {
		playlist.Color = models.ColorFor(playlist.ID)
	}
	if playlist.StationIDs == nil {
		playlist.StationIDs = []string{}
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "station_ids", "color", "updated_at"}),
	}).Create(playlist).Error
	if err != nil {
		return fmt.Errorf("save station playlist: %w", err)
	}
	s.publish(events.EventLibraryChanged, events.Payload{"kind": "playlist", "op": "save", "id": playlist.ID})
	return nil
}

// DeletePlaylist removes a station playlist.
func (s *Store) DeletePlaylist(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.StationPlaylist{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete station playlist: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.publish(events.EventLibraryChanged, events.Payload{"kind": "playlist", "op": "delete", "id": id})
	return nil
}

// SaveExternal creates or refreshes an external playlist keyed by id.
func (s *Store) SaveExternal(ctx context.Context, playlist *models.ExternalPlaylist) error {
	if playlist.ID == "" {
		return fmt.Errorf("external playlist id is required")
	}
	if playlist.Color == "" {
		playlist.Color = models.ColorFor(playlist.ID)
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "uri", "track_count", "image_url", "color", "updated_at"}),
	}).Create(playlist).Error
	if err != nil {
		return fmt.Errorf("save external playlist: %w", err)
	}
	s.publish(events.EventLibraryChanged, events.Payload{"kind": "external", "op": "save", "id": playlist.ID})
	return nil
}

// ListExternal returns every external playlist.
func (s *Store) ListExternal(ctx context.Context) ([]models.ExternalPlaylist, error) {
	var out []models.ExternalPlaylist
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list external playlists: %w", err)
	}
	return out, nil
}

// Station fetches one station by id.
func (s *Store) Station(ctx context.Context, id string) (models.Station, error) {
	var st models.Station
	if err := s.db.WithContext(ctx).First(&st, "id = ?", id).Error; err != nil {
		return st, notFound(err)
	}
	return st, nil
}

// DeleteExternal removes an external playlist.
func (s *Store) DeleteExternal(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.ExternalPlaylist{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete external playlist: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.publish(events.EventLibraryChanged, events.Payload{"kind": "external", "op": "delete", "id": id})
	return nil
}
