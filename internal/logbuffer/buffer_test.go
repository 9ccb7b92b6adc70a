package logbuffer

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestBufferWrapsAtCapacity(t *testing.T) {
	buf := New(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		buf.Add(LogEntry{Message: msg})
	}

	all := buf.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].Message != "b" || all[2].Message != "d" {
		t.Fatalf("unexpected order: %+v", all)
	}
}

func TestBufferCapturesZerologJSON(t *testing.T) {
	buf := New(10)
	logger := zerolog.New(buf).With().Timestamp().Logger()

	logger.Info().Str("component", "orchestrator").Str("station", "groovesalad").Msg("switching stream")
	logger.Warn().Str("component", "spotify").Msg("token refresh failed")

	entries := buf.Query(QueryParams{Component: "orchestrator"})
	if len(entries) != 1 {
		t.Fatalf("expected 1 orchestrator entry, got %d", len(entries))
	}
	if entries[0].Message != "switching stream" || entries[0].Level != "info" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if entries[0].Fields["station"] != "groovesalad" {
		t.Fatalf("expected station field, got %v", entries[0].Fields)
	}

	if got := buf.Query(QueryParams{Search: "TOKEN"}); len(got) != 1 {
		t.Fatalf("expected case-insensitive search hit, got %d", len(got))
	}

	stats := buf.Stats()
	if stats.Count != 2 || stats.LevelCount["warn"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(stats.Components) != 2 || stats.Components[0] != "orchestrator" {
		t.Fatalf("unexpected components: %v", stats.Components)
	}
}

func TestQueryNewestFirstWithLimit(t *testing.T) {
	buf := New(10)
	for _, msg := range []string{"one", "two", "three"} {
		buf.Add(LogEntry{Message: msg, Level: "info"})
	}

	got := buf.Query(QueryParams{Limit: 2})
	if len(got) != 2 || got[0].Message != "three" || got[1].Message != "two" {
		t.Fatalf("unexpected query result: %+v", got)
	}

	buf.Clear()
	if len(buf.All()) != 0 {
		t.Fatal("expected empty buffer after clear")
	}
}
