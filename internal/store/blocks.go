/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/friendsincode/hearth_radio/internal/events"
	"github.com/friendsincode/hearth_radio/internal/models"
)

// ListBlocks returns every schedule block ordered by day and start time.
func (s *Store) ListBlocks(ctx context.Context) ([]models.ScheduleBlock, error) {
	var blocks []models.ScheduleBlock
	err := s.db.WithContext(ctx).
		Order("day_of_week ASC, start_hour ASC, start_minute ASC, created_at ASC").
		Find(&blocks).Error
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return blocks, nil
}

// CreateBlock persists block under a generated id and returns the id.
func (s *Store) CreateBlock(ctx context.Context, block models.ScheduleBlock) (string, error) {
	block.ID = uuid.NewString()
	if err := s.db.WithContext(ctx).Create(&block).Error; err != nil {
		return "", fmt.Errorf("create block: %w", err)
	}

	s.publish(events.EventBlocksChanged, events.Payload{
		"op":          "create",
		"id":          block.ID,
		"day_of_week": block.DayOfWeek,
		"start_hour":  block.StartHour,
	})
	return block.ID, nil
}

// DeleteBlock removes one block. A missing block yields ErrNotFound.
func (s *Store) DeleteBlock(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.ScheduleBlock{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete block: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	s.publish(events.EventBlocksChanged, events.Payload{"op": "delete", "id": id})
	return nil
}

// ClearBlocks removes the whole schedule and reports how many blocks went.
func (s *Store) ClearBlocks(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("1 = 1").Delete(&models.ScheduleBlock{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear blocks: %w", res.Error)
	}
	s.publish(events.EventBlocksChanged, events.Payload{"op": "clear", "count": res.RowsAffected})
	return res.RowsAffected, nil
}
