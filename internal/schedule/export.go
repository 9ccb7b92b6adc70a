/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/friendsincode/hearth_radio/internal/models"
)

// ExportICalResult contains the iCal export data.
type ExportICalResult struct {
	Data        []byte
	Filename    string
	ContentType string
}

var icalDays = [DaysPerWeek]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// ExportICal renders the weekly grid as recurring events, one per run, anchored
// to the week containing now in loc.
func ExportICal(blocks []models.ScheduleBlock, lib models.Library, loc *time.Location, now time.Time) *ExportICalResult {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	monday := time.Date(now.Year(), now.Month(), now.Day()-DayIndex(now), 0, 0, 0, 0, loc)

	var buf bytes.Buffer
	buf.WriteString("BEGIN:VCALENDAR\r\n")
	buf.WriteString("VERSION:2.0\r\n")
	buf.WriteString("PRODID:-//Hearth Radio//Weekly Schedule//EN\r\n")
	buf.WriteString("X-WR-CALNAME:Hearth Radio\r\n")
	buf.WriteString(fmt.Sprintf("X-WR-TIMEZONE:%s\r\n", loc.String()))
	buf.WriteString("CALSCALE:GREGORIAN\r\n")
	buf.WriteString("METHOD:PUBLISH\r\n")

	for _, r := range weeklyRuns(blocks) {
		start := time.Date(monday.Year(), monday.Month(), monday.Day()+r.Day, r.Start, 0, 0, 0, loc)
		end := time.Date(monday.Year(), monday.Month(), monday.Day()+r.Day, r.End+1, 0, 0, 0, loc)

		summary, color := describe(r.Source, lib)

		buf.WriteString("BEGIN:VEVENT\r\n")
		buf.WriteString(fmt.Sprintf("UID:%d-%02d-%s@hearth\r\n", r.Day, r.Start, escapeICalText(r.Source.Key())))
		buf.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICalTime(now)))
		buf.WriteString(fmt.Sprintf("DTSTART;TZID=%s:%s\r\n", loc.String(), start.Format("20060102T150405")))
		buf.WriteString(fmt.Sprintf("DTEND;TZID=%s:%s\r\n", loc.String(), end.Format("20060102T150405")))
		buf.WriteString(fmt.Sprintf("RRULE:FREQ=WEEKLY;BYDAY=%s\r\n", icalDays[r.Day]))
		buf.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICalText(summary)))
		buf.WriteString(fmt.Sprintf("CATEGORIES:%s\r\n", strings.ToUpper(string(r.Source.Type))))
		if color != "" {
			buf.WriteString(fmt.Sprintf("X-APPLE-CALENDAR-COLOR:%s\r\n", color))
		}
		buf.WriteString("END:VEVENT\r\n")
	}

	buf.WriteString("END:VCALENDAR\r\n")

	return &ExportICalResult{
		Data:        buf.Bytes(),
		Filename:    fmt.Sprintf("hearth-schedule-%s.ics", monday.Format("2006-01-02")),
		ContentType: "text/calendar; charset=utf-8",
	}
}

// weeklyRuns folds the grid into runs ordered by day and start hour.
func weeklyRuns(blocks []models.ScheduleBlock) []Run {
	var runs []Run
	for day := 0; day < DaysPerWeek; day++ {
		slots := indexSlots(blocks, day)
		hours := make([]int, 0, len(slots))
		for h := range slots {
			hours = append(hours, h)
		}
		sort.Ints(hours)

		for _, h := range hours {
			if n := len(runs); n > 0 {
				last := &runs[n-1]
				if last.Day == day && last.End == h-1 && last.Source.Same(slots[h].Source()) {
					last.End = h
					continue
				}
			}
			runs = append(runs, Run{Day: day, Start: h, End: h, Source: slots[h].Source()})
		}
	}
	return runs
}

func describe(ref models.SourceRef, lib models.Library) (string, string) {
	if choice, ok := resolveSource(ref, lib); ok {
		switch choice.Kind {
		case models.SourceStation:
			return choice.Station.Name, choice.Station.Color
		case models.SourceSpotify:
			return choice.Playlist.Name, choice.Playlist.Color
		}
	}
	if ref.Name != "" {
		return ref.Name + " (removed)", ""
	}
	return ref.Ref + " (removed)", ""
}

func formatICalTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func escapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
