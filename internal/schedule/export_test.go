package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/friendsincode/hearth_radio/internal/models"
)

func TestExportICalMergesRuns(t *testing.T) {
	blocks := []models.ScheduleBlock{
		hourBlock("a", 0, 9, stationRef("lush")),
		hourBlock("b", 0, 10, stationRef("lush")),
		hourBlock("c", 0, 11, stationRef("dronezone")),
		hourBlock("d", 4, 20, stationRef("deleted")),
	}
	res := ExportICal(blocks, testLibrary(), time.UTC, at(2, 12, 0))
	out := string(res.Data)

	if n := strings.Count(out, "BEGIN:VEVENT"); n != 3 {
		t.Fatalf("expected 3 events, got %d\n%s", n, out)
	}
	for _, want := range []string{
		"DTSTART;TZID=UTC:20261019T090000",
		"DTEND;TZID=UTC:20261019T110000",
		"RRULE:FREQ=WEEKLY;BYDAY=MO",
		"RRULE:FREQ=WEEKLY;BYDAY=FR",
		"SUMMARY:Lush",
		"SUMMARY:deleted (removed)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in\n%s", want, out)
		}
	}
	if res.Filename != "hearth-schedule-2026-10-19.ics" {
		t.Fatalf("unexpected filename %q", res.Filename)
	}
}

func TestEscapeICalText(t *testing.T) {
	if got := escapeICalText("Rock; Roll, and\nmore"); got != `Rock\; Roll\, and\nmore` {
		t.Fatalf("unexpected escape %q", got)
	}
}
