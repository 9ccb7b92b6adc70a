package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) {
	if s == "" {
		return "", ErrNotConnected
	}
	return string(s), nil
}

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://open.spotify.com/playlist/37i9dQZF1DX4sWSpwq3LiO", "37i9dQZF1DX4sWSpwq3LiO", true},
		{"https://open.spotify.com/playlist/37i9dQZF1DX4sWSpwq3LiO?si=abc", "37i9dQZF1DX4sWSpwq3LiO", true},
		{"spotify:playlist:37i9dQZF1DX4sWSpwq3LiO", "37i9dQZF1DX4sWSpwq3LiO", true},
		{"https://open.spotify.com/album/1234", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ExtractPlaylistID(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("ExtractPlaylistID(%q) = %q, %v", tt.in, got, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidPlaylistURL) {
			t.Errorf("ExtractPlaylistID(%q) expected ErrInvalidPlaylistURL, got %v", tt.in, err)
		}
	}
}

func TestPlaylistMeta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/playlists/abc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("fields") != "id,name,uri,images,tracks.total" {
			t.Errorf("unexpected fields %q", r.URL.Query().Get("fields"))
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		_, _ = w.Write([]byte(`{"id":"abc","name":"Deep Focus","uri":"spotify:playlist:abc",
			"images":[{"url":"https://i.scdn.co/a.jpg"},{"url":"https://i.scdn.co/b.jpg"}],
			"tracks":{"total":42}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("tok"), zerolog.Nop())
	p, err := c.PlaylistMeta(context.Background(), "abc")
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if p.Name != "Deep Focus" || p.URI != "spotify:playlist:abc" || p.TrackCount != 42 || p.ImageURL != "https://i.scdn.co/a.jpg" {
		t.Fatalf("unexpected playlist %+v", p)
	}
}

func TestSearchSkipsNullItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "playlist" || r.URL.Query().Get("q") != "jazz" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"playlists":{"items":[null,{"id":"j1","name":"Jazz","uri":"spotify:playlist:j1","images":[],"tracks":{"total":3}}]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("tok"), zerolog.Nop())
	got, err := c.SearchPlaylists(context.Background(), "jazz", 20)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "j1" || got[0].ImageURL != "" {
		t.Fatalf("unexpected results %+v", got)
	}
}

func TestPlaySendsContextToDevice(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/me/player/play" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("device_id") != "dev-1" {
			t.Errorf("missing device id")
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("tok"), zerolog.Nop())
	if err := c.Play(context.Background(), "dev-1", "spotify:playlist:abc"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if body["context_uri"] != "spotify:playlist:abc" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestAPIErrorsAreTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"status":404,"message":"Device not found"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("tok"), zerolog.Nop())
	err := c.Pause(context.Background(), "gone")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Message != "Device not found" {
		t.Fatalf("expected typed 404, got %v", err)
	}

	if err := NewClient(srv.URL, staticToken(""), zerolog.Nop()).Resume(context.Background(), "x"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected without a token, got %v", err)
	}
}

func TestCurrentlyPlaying(t *testing.T) {
	empty := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if empty {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(`{"is_playing":true,"progress_ms":1000,"context":{"uri":"spotify:playlist:abc"},
			"item":{"name":"So What","artists":[{"name":"Miles Davis"},{"name":"John Coltrane"}],
			"album":{"images":[{"url":"https://i.scdn.co/c.jpg"}]}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("tok"), zerolog.Nop())
	np, err := c.CurrentlyPlaying(context.Background())
	if err != nil || np != nil {
		t.Fatalf("expected nothing playing, got %+v %v", np, err)
	}

	empty = false
	np, err = c.CurrentlyPlaying(context.Background())
	if err != nil {
		t.Fatalf("currently playing: %v", err)
	}
	if np.Track != "So What" || np.Artists != "Miles Davis, John Coltrane" || np.ContextURI != "spotify:playlist:abc" {
		t.Fatalf("unexpected now playing %+v", np)
	}
}
