/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/hearth_radio/internal/events"
	"github.com/friendsincode/hearth_radio/internal/models"
)

// secretKeys are never echoed in change events.
var secretKeys = map[string]bool{
	models.KeyPIN:                 true,
	models.KeySpotifyRefreshToken: true,
}

// Settings loads the current snapshot. Keys that were never written keep their defaults.
func (s *Store) Settings(ctx context.Context) (models.Settings, error) {
	var rows []models.Setting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return models.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	settings := models.DefaultSettings()
	for _, row := range rows {
		if err := settings.Apply(row.Key, json.RawMessage(row.Value)); err != nil {
			s.logger.Warn().Err(err).Str("key", row.Key).Msg("ignoring unreadable setting")
			continue
		}
		if row.Revision > settings.Version {
			settings.Version = row.Revision
		}
	}
	return settings, nil
}

// SetSetting validates and upserts one key, bumping the settings version.
func (s *Store) SetSetting(ctx context.Context, key string, value any) error {
	if err := models.ValidateSetting(key, value); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}

	var revision int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int64
		if err := tx.Model(&models.Setting{}).Select("COALESCE(MAX(revision), 0)").Scan(&current).Error; err != nil {
			return err
		}
		revision = current + 1

		row := models.Setting{Key: key, Value: string(raw), Revision: revision}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "revision", "updated_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}

	payload := events.Payload{"key": key, "version": revision}
	if !secretKeys[key] {
		payload["value"] = value
	}
	s.publish(events.EventSettingsChanged, payload)
	return nil
}

// ResetSettings rewrites every operator-facing key to its default.
// Streaming-service credentials are left alone.
func (s *Store) ResetSettings(ctx context.Context) error {
	d := models.DefaultSettings()
	defaults := []struct {
		key   string
		value any
	}{
		{models.KeyDefaultStation, d.DefaultStation},
		{models.KeyDefaultType, string(d.DefaultType)},
		{models.KeyVolume, d.Volume},
		{models.KeyIsPaused, d.IsPaused},
		{models.KeyFollowSchedule, d.FollowSchedule},
		{models.KeyManualStationOverride, nil},
		{models.KeyPIN, d.PIN},
	}
	for _, kv := range defaults {
		if err := s.SetSetting(ctx, kv.key, kv.value); err != nil {
			return err
		}
	}
	return nil
}
