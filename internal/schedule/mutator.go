/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_radio/internal/models"
	"github.com/friendsincode/hearth_radio/internal/store"
	"github.com/friendsincode/hearth_radio/internal/telemetry"
)

// ErrInvalidSource is returned when a source reference is incomplete or of an unknown kind.
var ErrInvalidSource = errors.New("invalid source")

// BlockStore is the persistence the mutator edits.
type BlockStore interface {
	ListBlocks(ctx context.Context) ([]models.ScheduleBlock, error)
	CreateBlock(ctx context.Context, block models.ScheduleBlock) (string, error)
	DeleteBlock(ctx context.Context, id string) error
}

// Mutator applies hour-level edits so that each (day, hour) slot holds at most one block.
// Blocks are never updated in place: a slot is cleared and recreated.
type Mutator struct {
	store  BlockStore
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewMutator creates a mutator over store.
func NewMutator(bs BlockStore, logger zerolog.Logger) *Mutator {
	return &Mutator{
		store:  bs,
		logger: logger.With().Str("component", "schedule_mutator").Logger(),
	}
}

// Run is a maximal sequence of contiguous hours on one day sharing a source.
// End is the last hour of the run, inclusive.
type Run struct {
	Day    int              `json:"day_of_week"`
	Start  int              `json:"start_hour"`
	End    int              `json:"end_hour"`
	Source models.SourceRef `json:"source"`
}

// Assign puts source into the (day, hour) slot, replacing whatever was there.
func (m *Mutator) Assign(ctx context.Context, day, hour int, source models.SourceRef) error {
	if err := validateSource(source); err != nil {
		return err
	}
	day, hour, err := NormalizeSlot(day, hour)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	err = m.assignLocked(ctx, day, hour, source)
	observe("assign", err)
	return err
}

// AssignRun assigns sources in order to consecutive hours from startHour.
// It stops at the end of the day and reports how many hours were filled.
func (m *Mutator) AssignRun(ctx context.Context, day, startHour int, sources []models.SourceRef) (int, error) {
	for _, src := range sources {
		if err := validateSource(src); err != nil {
			return 0, err
		}
	}
	day, startHour, err := NormalizeSlot(day, startHour)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	filled := 0
	for i, src := range sources {
		hour := startHour + i
		if hour >= HoursPerDay {
			m.logger.Debug().Int("day", day).Int("dropped", len(sources)-i).Msg("run clamped at end of day")
			break
		}
		if err := m.assignLocked(ctx, day, hour, src); err != nil {
			observe("assign_run", err)
			return filled, err
		}
		filled++
	}
	observe("assign_run", nil)
	return filled, nil
}

// Clear empties the (day, hour) slot.
func (m *Mutator) Clear(ctx context.Context, day, hour int) error {
	day, hour, err := NormalizeSlot(day, hour)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	err = m.clearLocked(ctx, day, hour)
	observe("clear", err)
	return err
}

// Resize moves the end of the run that starts at runStart from oldEnd to
// newEnd. Both ends are inclusive hours. Growing assigns source to the new
// hours; shrinking clears hours past newEnd but never the run start.
func (m *Mutator) Resize(ctx context.Context, day, runStart, oldEnd, newEnd int, source models.SourceRef) error {
	if newEnd == oldEnd {
		return nil
	}
	if day < 0 || day >= DaysPerWeek || runStart < 0 || oldEnd < runStart || newEnd < 0 ||
		oldEnd > maxDisplayHour || newEnd > maxDisplayHour {
		return fmt.Errorf("%w: resize day %d from %d..%d to %d", ErrInvalidSlot, day, runStart, oldEnd, newEnd)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if newEnd > oldEnd {
		if err = validateSource(source); err != nil {
			return err
		}
		for h := oldEnd + 1; h <= newEnd && err == nil; h++ {
			d, hour, _ := NormalizeSlot(day, h)
			err = m.assignLocked(ctx, d, hour, source)
		}
	} else {
		for h := max(newEnd, runStart) + 1; h <= oldEnd && err == nil; h++ {
			d, hour, _ := NormalizeSlot(day, h)
			err = m.clearLocked(ctx, d, hour)
		}
	}
	observe("resize", err)
	return err
}

// RunBounds returns the run containing (day, hour) in blocks. It reports false
// when the slot is empty.
func RunBounds(blocks []models.ScheduleBlock, day, hour int) (Run, bool) {
	day, hour, err := NormalizeSlot(day, hour)
	if err != nil {
		return Run{}, false
	}
	slots := indexSlots(blocks, day)
	b, ok := slots[hour]
	if !ok {
		return Run{}, false
	}
	src := b.Source()

	start := hour
	for start > 0 {
		prev, ok := slots[start-1]
		if !ok || !prev.Source().Same(src) {
			break
		}
		start--
	}
	end := hour
	for end < HoursPerDay-1 {
		next, ok := slots[end+1]
		if !ok || !next.Source().Same(src) {
			break
		}
		end++
	}
	return Run{Day: day, Start: start, End: end, Source: src}, true
}

func (m *Mutator) assignLocked(ctx context.Context, day, hour int, source models.SourceRef) error {
	if err := m.clearLocked(ctx, day, hour); err != nil {
		return err
	}
	_, err := m.store.CreateBlock(ctx, models.ScheduleBlock{
		DayOfWeek:  day,
		StartHour:  hour,
		EndHour:    hour + 1,
		SourceType: source.Type,
		SourceRef:  source.Ref,
		SourceName: source.Name,
	})
	if err != nil {
		return fmt.Errorf("assign %s %d:00: %w", DayName(day), hour, err)
	}
	return nil
}

// clearLocked deletes every block starting in the slot, so duplicates left by
// a racing editor are removed too.
func (m *Mutator) clearLocked(ctx context.Context, day, hour int) error {
	blocks, err := m.store.ListBlocks(ctx)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if b.DayOfWeek != day || b.StartHour != hour {
			continue
		}
		if err := m.store.DeleteBlock(ctx, b.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("clear %s %d:00: %w", DayName(day), hour, err)
		}
	}
	return nil
}

// indexSlots maps start hour to the first block found for that hour on day.
func indexSlots(blocks []models.ScheduleBlock, day int) map[int]models.ScheduleBlock {
	slots := make(map[int]models.ScheduleBlock)
	for _, b := range blocks {
		if b.DayOfWeek != day {
			continue
		}
		if _, taken := slots[b.StartHour]; !taken {
			slots[b.StartHour] = b
		}
	}
	return slots
}

func validateSource(src models.SourceRef) error {
	if !src.Type.Valid() || src.Ref == "" {
		return fmt.Errorf("%w: %q %q", ErrInvalidSource, src.Type, src.Ref)
	}
	return nil
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	telemetry.ScheduleMutationsTotal.WithLabelValues(op, result).Inc()
}
