package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/friendsincode/hearth_radio/internal/db"
	"github.com/friendsincode/hearth_radio/internal/events"
	"github.com/friendsincode/hearth_radio/internal/models"
	"github.com/friendsincode/hearth_radio/internal/store"
)

func TestBuiltInSeedParses(t *testing.T) {
	data, err := parseSeed(defaultSeed)
	if err != nil {
		t.Fatalf("parse built-in seed: %v", err)
	}
	if len(data.Stations) != 10 {
		t.Fatalf("stations = %d, want 10", len(data.Stations))
	}
	if data.DefaultStation != "groovesalad" {
		t.Fatalf("default station = %q", data.DefaultStation)
	}
}

func TestParseSeedRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing name",
			doc:  "stations:\n  - id: a\n    stream_url: https://example.test/a\n",
			want: "id and name are required",
		},
		{
			name: "duplicate id",
			doc:  "stations:\n  - {id: a, name: A, stream_url: https://example.test/a}\n  - {id: a, name: B, stream_url: https://example.test/b}\n",
			want: "listed twice",
		},
		{
			name: "bad url",
			doc:  "stations:\n  - {id: a, name: A, stream_url: ftp://example.test/a}\n",
			want: "invalid stream_url",
		},
		{
			name: "unknown playlist station",
			doc:  "stations:\n  - {id: a, name: A, stream_url: https://example.test/a}\nplaylists:\n  - {id: p, name: P, stations: [a, b]}\n",
			want: "unknown station",
		},
		{
			name: "unknown default",
			doc:  "default_station: z\nstations:\n  - {id: a, name: A, stream_url: https://example.test/a}\n",
			want: "not in the station list",
		},
		{
			name: "not yaml",
			doc:  "stations: [",
			want: "parse seed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSeed([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(gdb, events.NewBus(), zerolog.Nop())
}

func TestApplySeedIsRepeatable(t *testing.T) {
	logger = zerolog.Nop()
	st := newTestStore(t)
	ctx := context.Background()

	data, err := parseSeed(defaultSeed)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := applySeed(ctx, st, data); err != nil {
			t.Fatalf("apply seed (run %d): %v", i+1, err)
		}
	}

	lib, err := st.Library(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(lib.Stations) != 10 || len(lib.Playlists) != 1 {
		t.Fatalf("library has %d stations and %d playlists", len(lib.Stations), len(lib.Playlists))
	}
	gs, ok := lib.Station("groovesalad")
	if !ok || gs.Color != "#4CAF50" {
		t.Fatalf("groovesalad = %+v", gs)
	}

	settings, err := st.Settings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if settings.DefaultStation != "groovesalad" {
		t.Fatalf("default station = %q", settings.DefaultStation)
	}
}

func TestApplySeedKeepsExistingDefault(t *testing.T) {
	logger = zerolog.Nop()
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.SetSetting(ctx, models.KeyDefaultStation, "lush"); err != nil {
		t.Fatal(err)
	}
	data, err := parseSeed(defaultSeed)
	if err != nil {
		t.Fatal(err)
	}
	if err := applySeed(ctx, st, data); err != nil {
		t.Fatal(err)
	}
	settings, err := st.Settings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if settings.DefaultStation != "lush" {
		t.Fatalf("default station = %q, want lush", settings.DefaultStation)
	}
}

func TestConfirmReset(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"yes\n", true},
		{"  YES \n", true},
		{"y\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := confirmReset(strings.NewReader(tt.input), &out, true, false)
		if err != nil {
			t.Fatalf("input %q: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("input %q: got %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "weekly schedule") || strings.Contains(out.String(), "PIN") {
			t.Errorf("prompt = %q", out.String())
		}
	}
}
