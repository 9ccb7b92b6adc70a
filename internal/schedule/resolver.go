/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule resolves what plays at a given moment of the weekly grid and
// edits the grid one hour slot at a time.
package schedule

import (
	"sort"
	"time"

	"github.com/friendsincode/hearth_radio/internal/models"
)

// Origin records which rule produced a PlaybackChoice.
type Origin string

const (
	OriginManual   Origin = "manual"
	OriginSchedule Origin = "schedule"
	OriginDefault  Origin = "default"
)

// PlaybackChoice is the resolved source. Exactly one of Station or Playlist is
// set, matching Kind.
type PlaybackChoice struct {
	Kind     models.SourceType        `json:"kind"`
	Station  *models.Station          `json:"station,omitempty"`
	Playlist *models.ExternalPlaylist `json:"playlist,omitempty"`
	Origin   Origin                   `json:"origin"`
	BlockID  string                   `json:"block_id,omitempty"`
}

// Ref returns the source reference the choice was resolved from.
func (c *PlaybackChoice) Ref() models.SourceRef {
	switch c.Kind {
	case models.SourceStation:
		return models.SourceRef{Type: c.Kind, Ref: c.Station.ID, Name: c.Station.Name}
	case models.SourceSpotify:
		return models.SourceRef{Type: c.Kind, Ref: c.Playlist.URI, Name: c.Playlist.Name}
	}
	return models.SourceRef{}
}

// Identity is the key used to decide whether playback must switch.
func (c *PlaybackChoice) Identity() string {
	if c == nil {
		return ""
	}
	return c.Ref().Key()
}

// Name is the display name of the chosen source.
func (c *PlaybackChoice) Name() string {
	if c == nil {
		return ""
	}
	return c.Ref().Name
}

// Upcoming is the next scheduled source after now.
type Upcoming struct {
	Choice        PlaybackChoice       `json:"choice"`
	Block         models.ScheduleBlock `json:"block"`
	Label         string               `json:"label"`
	SameAsDefault bool                 `json:"same_as_default"`
}

// Covers reports whether block contains the minute (day, hour, minute) under
// the half-open [start, end) rule.
func Covers(b models.ScheduleBlock, day, hour, minute int) bool {
	if b.DayOfWeek != day {
		return false
	}
	started := b.StartHour < hour || (b.StartHour == hour && b.StartMinute <= minute)
	notEnded := b.EndHour > hour || (b.EndHour == hour && b.EndMinute > minute)
	return started && notEnded
}

// ActiveBlock returns the first block covering now, ignoring the library.
func ActiveBlock(blocks []models.ScheduleBlock, now time.Time) (models.ScheduleBlock, bool) {
	day := DayIndex(now)
	for _, b := range blocks {
		if Covers(b, day, now.Hour(), now.Minute()) {
			return b, true
		}
	}
	return models.ScheduleBlock{}, false
}

// ResolveCurrent decides what should be playing at now. A manual override wins
// when the schedule is not being followed, then the covering block, then the
// default source. Orphaned references fall through. Nil means nothing to play.
func ResolveCurrent(blocks []models.ScheduleBlock, lib models.Library, settings models.Settings, now time.Time) *PlaybackChoice {
	if id, ok := settings.ManualOverride(); ok {
		if choice, found := resolveSource(models.SourceRef{Type: models.SourceStation, Ref: id}, lib); found {
			choice.Origin = OriginManual
			return choice
		}
	}

	if b, ok := ActiveBlock(blocks, now); ok {
		if choice, found := resolveSource(b.Source(), lib); found {
			choice.Origin = OriginSchedule
			choice.BlockID = b.ID
			return choice
		}
	}

	if settings.DefaultStation == "" {
		return nil
	}
	if choice, found := resolveSource(settings.Default(), lib); found {
		choice.Origin = OriginDefault
		return choice
	}
	return nil
}

// ResolveNext finds the earliest block starting strictly after now, scanning
// the rest of today and then the following days in circular order. Today's
// earlier blocks come last, a week away. Orphaned blocks are skipped.
func ResolveNext(blocks []models.ScheduleBlock, lib models.Library, currentDefaultID string, now time.Time) *Upcoming {
	today := DayIndex(now)
	nowMinutes := now.Hour()*60 + now.Minute()

	type candidate struct {
		block  models.ScheduleBlock
		offset int
	}
	candidates := make([]candidate, 0, len(blocks))
	for _, b := range blocks {
		offset := (b.DayOfWeek - today + DaysPerWeek) % DaysPerWeek
		if offset == 0 && b.StartHour*60+b.StartMinute <= nowMinutes {
			offset = DaysPerWeek
		}
		candidates = append(candidates, candidate{block: b, offset: offset})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.offset != b.offset {
			return a.offset < b.offset
		}
		if a.block.StartHour != b.block.StartHour {
			return a.block.StartHour < b.block.StartHour
		}
		return a.block.StartMinute < b.block.StartMinute
	})

	for _, c := range candidates {
		choice, ok := resolveSource(c.block.Source(), lib)
		if !ok {
			continue
		}
		choice.Origin = OriginSchedule
		choice.BlockID = c.block.ID

		when := ClockLabel(c.block.StartHour, c.block.StartMinute)
		label := DayName(c.block.DayOfWeek) + " at " + when
		if c.offset == 0 {
			label = "today at " + when
		}

		return &Upcoming{
			Choice:        *choice,
			Block:         c.block,
			Label:         label,
			SameAsDefault: currentDefaultID != "" && c.block.SourceRef == currentDefaultID,
		}
	}
	return nil
}

// resolveSource looks ref up in the library. External playlists match by URI
// first and by id second, so a default may hold either.
func resolveSource(ref models.SourceRef, lib models.Library) (*PlaybackChoice, bool) {
	switch ref.Type {
	case models.SourceStation:
		st, ok := lib.Station(ref.Ref)
		if !ok {
			return nil, false
		}
		return &PlaybackChoice{Kind: models.SourceStation, Station: &st}, true
	case models.SourceSpotify:
		if pl, ok := lib.ExternalByURI(ref.Ref); ok {
			return &PlaybackChoice{Kind: models.SourceSpotify, Playlist: &pl}, true
		}
		for _, pl := range lib.External {
			if pl.ID == ref.Ref {
				return &PlaybackChoice{Kind: models.SourceSpotify, Playlist: &pl}, true
			}
		}
	}
	return nil, false
}
