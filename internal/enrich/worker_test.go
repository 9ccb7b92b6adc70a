package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/friendsincode/hearth_radio/internal/models"
	"github.com/friendsincode/hearth_radio/internal/radiobrowser"
	"github.com/friendsincode/hearth_radio/internal/spotify"
)

type memLibrary struct {
	mu       sync.Mutex
	lib      models.Library
	saved    []string
	passDone chan struct{}
}

func (m *memLibrary) Library(context.Context) (models.Library, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.passDone != nil {
		select {
		case m.passDone <- struct{}{}:
		default:
		}
	}
	return m.lib, nil
}

func (m *memLibrary) SaveStation(_ context.Context, s *models.Station) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.lib.Stations {
		if m.lib.Stations[i].ID == s.ID {
			m.lib.Stations[i] = *s
		}
	}
	m.saved = append(m.saved, "station:"+s.ID)
	return nil
}

func (m *memLibrary) SaveExternal(_ context.Context, p *models.ExternalPlaylist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.lib.External {
		if m.lib.External[i].ID == p.ID {
			m.lib.External[i] = *p
		}
	}
	m.saved = append(m.saved, "external:"+p.ID)
	return nil
}

type fakePlaylists struct {
	meta map[string]models.ExternalPlaylist
	err  error
	mu   sync.Mutex
	at   []time.Time
}

func (f *fakePlaylists) PlaylistMeta(_ context.Context, id string) (models.ExternalPlaylist, error) {
	f.mu.Lock()
	f.at = append(f.at, time.Now())
	f.mu.Unlock()
	if f.err != nil {
		return models.ExternalPlaylist{}, f.err
	}
	m, ok := f.meta[id]
	if !ok {
		return models.ExternalPlaylist{}, errors.New("not found")
	}
	return m, nil
}

type fakeDirectory map[string]string

func (f fakeDirectory) ByUUID(_ context.Context, id string) (*radiobrowser.Station, error) {
	u, ok := f[id]
	if !ok {
		return nil, nil
	}
	return &radiobrowser.Station{StationUUID: id, URLResolved: u}, nil
}

type countingDirectory struct {
	mu      sync.Mutex
	lookups []string
}

func (c *countingDirectory) ByUUID(_ context.Context, id string) (*radiobrowser.Station, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups = append(c.lookups, id)
	return nil, nil
}

func fastWorker(lib Library, p PlaylistSource, s StationSource) *Worker {
	w := NewWorker(lib, p, s, zerolog.Nop())
	w.limiter = rate.NewLimiter(rate.Inf, 1)
	return w
}

func TestRefreshUpdatesOnlyChangedEntries(t *testing.T) {
	lib := &memLibrary{lib: models.Library{
		External: []models.ExternalPlaylist{
			{ID: "a", Name: "Focus", URI: "spotify:playlist:a", TrackCount: 10},
			{ID: "b", Name: "Jazz", URI: "spotify:playlist:b", TrackCount: 5, ImageURL: "img-b"},
			{ID: "gone", Name: "Deleted upstream", URI: "spotify:playlist:gone"},
		},
		Stations: []models.Station{
			{ID: "groovesalad", Name: "Groove Salad", StreamURL: "https://ice.somafm.com/groovesalad"},
			{ID: "960c3fd4-0601-11e8-ae97-52543be04c81", Name: "KEXP", StreamURL: "https://old.kexp.org"},
		},
	}}
	playlists := &fakePlaylists{meta: map[string]models.ExternalPlaylist{
		"a": {ID: "a", Name: "Focus", TrackCount: 12, ImageURL: "img-a"},
		"b": {ID: "b", Name: "Jazz", TrackCount: 5, ImageURL: "img-b"},
	}}
	dir := fakeDirectory{"960c3fd4-0601-11e8-ae97-52543be04c81": "https://new.kexp.org"}

	if err := fastWorker(lib, playlists, dir).RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if len(lib.saved) != 2 || lib.saved[0] != "external:a" || lib.saved[1] != "station:960c3fd4-0601-11e8-ae97-52543be04c81" {
		t.Fatalf("unexpected saves %v", lib.saved)
	}
	if lib.lib.External[0].TrackCount != 12 || lib.lib.External[0].ImageURL != "img-a" {
		t.Fatalf("playlist not refreshed: %+v", lib.lib.External[0])
	}
	if lib.lib.Stations[1].StreamURL != "https://new.kexp.org" {
		t.Fatalf("station not refreshed: %+v", lib.lib.Stations[1])
	}
}

func TestRefreshStopsPlaylistsWhenDisconnected(t *testing.T) {
	lib := &memLibrary{lib: models.Library{External: []models.ExternalPlaylist{{ID: "a"}, {ID: "b"}}}}
	playlists := &fakePlaylists{err: spotify.ErrNotConnected}

	if err := fastWorker(lib, playlists, nil).RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(playlists.at) != 1 {
		t.Fatalf("expected one attempt before giving up, got %d", len(playlists.at))
	}
}

func TestRefreshIsStaggered(t *testing.T) {
	lib := &memLibrary{lib: models.Library{External: []models.ExternalPlaylist{{ID: "a"}, {ID: "b"}, {ID: "c"}}}}
	playlists := &fakePlaylists{meta: map[string]models.ExternalPlaylist{"a": {}, "b": {}, "c": {}}}

	w := NewWorker(lib, playlists, nil, zerolog.Nop())
	if err := w.RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if gap := playlists.at[2].Sub(playlists.at[0]); gap < 250*time.Millisecond {
		t.Fatalf("expected calls spaced ~150ms apart, first to third took %s", gap)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	lib := &memLibrary{passDone: make(chan struct{}, 1)}
	w := fastWorker(lib, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-lib.passDone:
	case <-time.After(time.Second):
		t.Fatal("expected an immediate pass")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRefreshSkipsStationsOutsideDirectory(t *testing.T) {
	lib := &memLibrary{lib: models.Library{Stations: []models.Station{
		{ID: "groovesalad", Name: "Groove Salad", StreamURL: "https://ice.somafm.com/groovesalad"},
		{ID: "960c3fd4-0601-11e8-ae97-52543be04c81", Name: "KEXP", StreamURL: "https://kexp.org"},
	}}}
	dir := &countingDirectory{}

	if err := fastWorker(lib, &fakePlaylists{}, dir).RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if len(dir.lookups) != 1 || dir.lookups[0] != "960c3fd4-0601-11e8-ae97-52543be04c81" {
		t.Fatalf("only directory stations should be looked up, got %v", dir.lookups)
	}
}
