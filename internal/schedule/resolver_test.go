package schedule

import (
	"fmt"
	"testing"
	"time"

	"github.com/friendsincode/hearth_radio/internal/models"
)

// monday is 2026-10-19, a Monday.
var monday = time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(monday.Year(), monday.Month(), monday.Day()+day, hour, minute, 0, 0, time.UTC)
}

func testLibrary() models.Library {
	return models.Library{
		Stations: []models.Station{
			{ID: "groovesalad", Name: "Groove Salad", StreamURL: "https://ice2.somafm.com/groovesalad-256-mp3"},
			{ID: "lush", Name: "Lush", StreamURL: "https://ice2.somafm.com/lush-128-mp3"},
			{ID: "dronezone", Name: "Drone Zone", StreamURL: "https://ice2.somafm.com/dronezone-256-mp3"},
		},
		External: []models.ExternalPlaylist{
			{ID: "37i9dQZF1DX4sWSpwq3LiO", Name: "Peaceful Piano", URI: "spotify:playlist:37i9dQZF1DX4sWSpwq3LiO"},
		},
	}
}

func stationRef(id string) models.SourceRef {
	return models.SourceRef{Type: models.SourceStation, Ref: id}
}

func hourBlock(id string, day, hour int, ref models.SourceRef) models.ScheduleBlock {
	return models.ScheduleBlock{
		ID: id, DayOfWeek: day, StartHour: hour, EndHour: hour + 1,
		SourceType: ref.Type, SourceRef: ref.Ref, SourceName: ref.Name,
	}
}

func withDefault(id string) models.Settings {
	s := models.DefaultSettings()
	s.DefaultStation = id
	return s
}

func TestDayIndexIsMondayFirst(t *testing.T) {
	if got := DayIndex(monday); got != 0 {
		t.Fatalf("expected Monday=0, got %d", got)
	}
	if got := DayIndex(at(6, 12, 0)); got != 6 {
		t.Fatalf("expected Sunday=6, got %d", got)
	}
}

func TestResolveCurrentExhaustive(t *testing.T) {
	lib := testLibrary()
	sources := []models.SourceRef{
		stationRef("lush"),
		{Type: models.SourceSpotify, Ref: "spotify:playlist:37i9dQZF1DX4sWSpwq3LiO"},
	}

	for _, src := range sources {
		for day := 0; day < DaysPerWeek; day++ {
			for hour := 0; hour < HoursPerDay; hour++ {
				blocks := []models.ScheduleBlock{hourBlock("b", day, hour, src)}

				for probeDay := 0; probeDay < DaysPerWeek; probeDay++ {
					for probeHour := 0; probeHour < HoursPerDay; probeHour++ {
						now := at(probeDay, probeHour, 30)

						got := ResolveCurrent(blocks, lib, withDefault("groovesalad"), now)
						if got == nil {
							t.Fatalf("%s block %d/%d probe %d/%d: expected a choice", src.Type, day, hour, probeDay, probeHour)
						}
						covered := probeDay == day && probeHour == hour
						if covered {
							if got.Origin != OriginSchedule || got.Ref().Ref != src.Ref || got.Kind != src.Type {
								t.Fatalf("block %d/%d probe %d/%d: expected scheduled %s, got %+v", day, hour, probeDay, probeHour, src.Ref, got)
							}
						} else if got.Origin != OriginDefault || got.Station.ID != "groovesalad" {
							t.Fatalf("block %d/%d probe %d/%d: expected default, got %+v", day, hour, probeDay, probeHour, got)
						}

						none := ResolveCurrent(blocks, lib, models.DefaultSettings(), now)
						if covered != (none != nil) {
							t.Fatalf("block %d/%d probe %d/%d without default: got %+v", day, hour, probeDay, probeHour, none)
						}
					}
				}
			}
		}
	}
}

func TestResolveCurrentHalfOpenInterval(t *testing.T) {
	lib := testLibrary()
	blocks := []models.ScheduleBlock{hourBlock("a", 0, 9, stationRef("lush"))}
	settings := withDefault("groovesalad")

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"inside", at(0, 9, 30), "lush"},
		{"start is inclusive", at(0, 9, 0), "lush"},
		{"end is exclusive", at(0, 10, 0), "groovesalad"},
		{"before", at(0, 8, 59), "groovesalad"},
		{"other day", at(1, 9, 30), "groovesalad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveCurrent(blocks, lib, settings, tt.now)
			if got == nil || got.Station.ID != tt.want {
				t.Fatalf("expected %s, got %+v", tt.want, got)
			}
		})
	}
}

func TestResolveCurrentMinuteGranularity(t *testing.T) {
	blocks := []models.ScheduleBlock{{
		ID: "m", DayOfWeek: 2, StartHour: 9, StartMinute: 30, EndHour: 10, EndMinute: 15,
		SourceType: models.SourceStation, SourceRef: "lush",
	}}

	for _, tc := range []struct {
		hour, minute int
		inside       bool
	}{
		{9, 29, false}, {9, 30, true}, {10, 14, true}, {10, 15, false},
	} {
		_, ok := ActiveBlock(blocks, at(2, tc.hour, tc.minute))
		if ok != tc.inside {
			t.Fatalf("%02d:%02d: expected inside=%v", tc.hour, tc.minute, tc.inside)
		}
	}
}

func TestResolveCurrentOrphanFallsThrough(t *testing.T) {
	lib := testLibrary()
	blocks := []models.ScheduleBlock{hourBlock("a", 0, 9, stationRef("deleted"))}

	got := ResolveCurrent(blocks, lib, withDefault("groovesalad"), at(0, 9, 30))
	if got == nil || got.Origin != OriginDefault {
		t.Fatalf("expected default for orphaned block, got %+v", got)
	}

	if got := ResolveCurrent(blocks, lib, withDefault("also-deleted"), at(0, 9, 30)); got != nil {
		t.Fatalf("expected nil when default is orphaned too, got %+v", got)
	}

	if _, ok := ActiveBlock(blocks, at(0, 9, 30)); !ok {
		t.Fatal("ActiveBlock ignores the library and must still report the block")
	}
}

func TestResolveCurrentFirstMatchWinsOnDuplicates(t *testing.T) {
	lib := testLibrary()
	blocks := []models.ScheduleBlock{
		hourBlock("first", 3, 20, stationRef("dronezone")),
		hourBlock("second", 3, 20, stationRef("lush")),
	}
	got := ResolveCurrent(blocks, lib, models.DefaultSettings(), at(3, 20, 5))
	if got == nil || got.BlockID != "first" {
		t.Fatalf("expected first block, got %+v", got)
	}
}

func TestResolveCurrentManualOverride(t *testing.T) {
	lib := testLibrary()
	blocks := []models.ScheduleBlock{hourBlock("a", 0, 9, stationRef("lush"))}
	override := "dronezone"

	settings := withDefault("groovesalad")
	settings.ManualStationOverride = &override

	got := ResolveCurrent(blocks, lib, settings, at(0, 9, 30))
	if got == nil || got.Origin != OriginManual || got.Station.ID != "dronezone" {
		t.Fatalf("expected manual override, got %+v", got)
	}

	settings.FollowSchedule = true
	got = ResolveCurrent(blocks, lib, settings, at(0, 9, 30))
	if got == nil || got.Origin != OriginSchedule {
		t.Fatalf("override must not apply while following the schedule, got %+v", got)
	}

	missing := "deleted"
	settings.FollowSchedule = false
	settings.ManualStationOverride = &missing
	got = ResolveCurrent(blocks, lib, settings, at(0, 9, 30))
	if got == nil || got.Origin != OriginSchedule {
		t.Fatalf("orphaned override must fall through, got %+v", got)
	}
}

func TestResolveCurrentDefaultSpotifyByID(t *testing.T) {
	lib := testLibrary()
	settings := models.DefaultSettings()
	settings.DefaultType = models.SourceSpotify
	settings.DefaultStation = "37i9dQZF1DX4sWSpwq3LiO"

	got := ResolveCurrent(nil, lib, settings, at(4, 4, 4))
	if got == nil || got.Kind != models.SourceSpotify || got.Playlist.Name != "Peaceful Piano" {
		t.Fatalf("expected spotify default, got %+v", got)
	}
}

func TestResolveNext(t *testing.T) {
	lib := testLibrary()

	tests := []struct {
		name      string
		blocks    []models.ScheduleBlock
		now       time.Time
		wantNil   bool
		wantBlock string
		wantLabel string
	}{
		{
			name:    "empty",
			now:     at(0, 9, 0),
			wantNil: true,
		},
		{
			name:    "only future block orphaned",
			blocks:  []models.ScheduleBlock{hourBlock("o", 0, 14, stationRef("deleted"))},
			now:     at(0, 9, 0),
			wantNil: true,
		},
		{
			name: "later today",
			blocks: []models.ScheduleBlock{
				hourBlock("tomorrow", 1, 8, stationRef("lush")),
				hourBlock("today", 0, 14, stationRef("lush")),
			},
			now:       at(0, 9, 0),
			wantBlock: "today",
			wantLabel: "today at 2:00 PM",
		},
		{
			name: "current block is not next",
			blocks: []models.ScheduleBlock{
				hourBlock("now", 0, 9, stationRef("lush")),
				hourBlock("next", 0, 10, stationRef("dronezone")),
			},
			now:       at(0, 9, 0),
			wantBlock: "next",
			wantLabel: "today at 10:00 AM",
		},
		{
			name: "circular order across the week end",
			blocks: []models.ScheduleBlock{
				hourBlock("mon", 0, 7, stationRef("lush")),
				hourBlock("fri", 4, 7, stationRef("lush")),
			},
			now:       at(5, 12, 0),
			wantBlock: "mon",
			wantLabel: "Monday at 7:00 AM",
		},
		{
			name:      "earlier today wraps to next week",
			blocks:    []models.ScheduleBlock{hourBlock("early", 2, 6, stationRef("lush"))},
			now:       at(2, 18, 0),
			wantBlock: "early",
			wantLabel: "Wednesday at 6:00 AM",
		},
		{
			name: "orphan skipped",
			blocks: []models.ScheduleBlock{
				hourBlock("orphan", 0, 10, stationRef("deleted")),
				hourBlock("real", 0, 11, stationRef("lush")),
			},
			now:       at(0, 9, 0),
			wantBlock: "real",
			wantLabel: "today at 11:00 AM",
		},
		{
			name:      "midnight label",
			blocks:    []models.ScheduleBlock{hourBlock("midnight", 3, 0, stationRef("lush"))},
			now:       at(2, 23, 30),
			wantBlock: "midnight",
			wantLabel: "Thursday at 12:00 AM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveNext(tt.blocks, lib, "groovesalad", tt.now)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected an upcoming block")
			}
			if got.Block.ID != tt.wantBlock || got.Label != tt.wantLabel {
				t.Fatalf("expected %s %q, got %s %q", tt.wantBlock, tt.wantLabel, got.Block.ID, got.Label)
			}
		})
	}
}

func TestResolveNextFlagsDefaultSource(t *testing.T) {
	blocks := []models.ScheduleBlock{hourBlock("a", 0, 10, stationRef("groovesalad"))}
	got := ResolveNext(blocks, testLibrary(), "groovesalad", at(0, 9, 0))
	if got == nil || !got.SameAsDefault {
		t.Fatalf("expected default source to be flagged, got %+v", got)
	}
}

func TestResolveNextIsDeterministic(t *testing.T) {
	lib := testLibrary()
	var blocks []models.ScheduleBlock
	for d := 0; d < DaysPerWeek; d++ {
		blocks = append(blocks, hourBlock(fmt.Sprintf("d%d", d), d, 12, stationRef("lush")))
	}
	for d := 0; d < DaysPerWeek; d++ {
		got := ResolveNext(blocks, lib, "", at(d, 13, 0))
		want := fmt.Sprintf("d%d", (d+1)%DaysPerWeek)
		if got == nil || got.Block.ID != want {
			t.Fatalf("day %d: expected %s, got %+v", d, want, got)
		}
	}
}
