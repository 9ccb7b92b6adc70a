package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_radio/internal/config"
	"github.com/friendsincode/hearth_radio/internal/models"
)

type memTokens struct {
	mu       sync.Mutex
	settings models.Settings
}

func (m *memTokens) Settings(context.Context) (models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

func (m *memTokens) SetSetting(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch key {
	case models.KeySpotifyRefreshToken:
		if value == nil {
			m.settings.SpotifyRefreshToken = nil
		} else {
			v := value.(string)
			m.settings.SpotifyRefreshToken = &v
		}
	case models.KeySpotifyConnected:
		m.settings.SpotifyConnected = value.(bool)
	}
	return nil
}

func (m *memTokens) refreshToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings.SpotifyRefreshToken == nil {
		return ""
	}
	return *m.settings.SpotifyRefreshToken
}

func newTestAuth(t *testing.T, handler http.HandlerFunc) (*Auth, *memTokens) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		SpotifyClientID:    "client-abc",
		SpotifyRedirectURL: "http://kiosk.local/api/v1/spotify/callback",
	}
	st := &memTokens{settings: models.DefaultSettings()}
	a := NewAuth(cfg, st, zerolog.Nop())
	a.oauth.Endpoint.TokenURL = srv.URL
	a.client = srv.Client()
	return a, st
}

func tokenJSON(w http.ResponseWriter, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func TestAuthorizeURLUsesPKCE(t *testing.T) {
	a, _ := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {})

	u, err := url.Parse(a.AuthorizeURL())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if u.Host != "accounts.spotify.com" {
		t.Fatalf("unexpected host %q", u.Host)
	}
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		t.Fatalf("missing pkce params: %v", q)
	}
	if q.Get("client_id") != "client-abc" || q.Get("state") == "" {
		t.Fatalf("missing client or state: %v", q)
	}
	if q.Get("scope") == "" {
		t.Fatal("expected scopes")
	}
}

func TestExchangeStoresRefreshToken(t *testing.T) {
	var form url.Values
	a, st := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		tokenJSON(w, map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})

	state := mustState(t, a)
	if err := a.Exchange(context.Background(), state, "the-code"); err != nil {
		t.Fatalf("exchange: %v", err)
	}

	if form.Get("grant_type") != "authorization_code" || form.Get("code") != "the-code" {
		t.Fatalf("unexpected form: %v", form)
	}
	if form.Get("code_verifier") == "" || form.Get("client_id") != "client-abc" {
		t.Fatalf("expected verifier and client id in form: %v", form)
	}
	if st.refreshToken() != "refresh-1" || !st.settings.SpotifyConnected {
		t.Fatal("expected refresh token stored and connected flag set")
	}

	tok, err := a.AccessToken(context.Background())
	if err != nil || tok != "access-1" {
		t.Fatalf("expected cached access token, got %q %v", tok, err)
	}

	if err := a.Exchange(context.Background(), state, "the-code"); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("expected state to be single use, got %v", err)
	}
}

func TestAccessTokenNotConnected(t *testing.T) {
	a, _ := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("token endpoint should not be called")
	})
	if _, err := a.AccessToken(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestRefreshKeepsOldTokenAndCollapses(t *testing.T) {
	var hits atomic.Int32
	var form url.Values
	a, st := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = r.ParseForm()
		form = r.PostForm
		time.Sleep(20 * time.Millisecond)
		tokenJSON(w, map[string]any{"access_token": "access-2", "token_type": "Bearer", "expires_in": 3600})
	})
	_ = st.SetSetting(context.Background(), models.KeySpotifyRefreshToken, "refresh-old")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := a.AccessToken(context.Background())
			if err != nil || tok != "access-2" {
				t.Errorf("got %q %v", tok, err)
			}
		}()
	}
	wg.Wait()

	if n := hits.Load(); n != 1 {
		t.Fatalf("expected one refresh, got %d", n)
	}
	if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "refresh-old" {
		t.Fatalf("unexpected refresh form: %v", form)
	}
	if st.refreshToken() != "refresh-old" {
		t.Fatalf("expected old refresh token kept, got %q", st.refreshToken())
	}
}

func TestAccessTokenExpiresAMinuteEarly(t *testing.T) {
	var hits atomic.Int32
	a, st := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		tokenJSON(w, map[string]any{"access_token": "access", "refresh_token": "rotated", "token_type": "Bearer", "expires_in": 3600})
	})
	_ = st.SetSetting(context.Background(), models.KeySpotifyRefreshToken, "refresh-old")

	if _, err := a.AccessToken(context.Background()); err != nil {
		t.Fatalf("first token: %v", err)
	}
	if st.refreshToken() != "rotated" {
		t.Fatalf("expected rotated refresh token stored, got %q", st.refreshToken())
	}

	a.now = func() time.Time { return time.Now().Add(3530 * time.Second) }
	_, _ = a.AccessToken(context.Background())
	if hits.Load() != 1 {
		t.Fatal("token should still be cached ten seconds before the skewed expiry")
	}

	a.now = func() time.Time { return time.Now().Add(3550 * time.Second) }
	_, _ = a.AccessToken(context.Background())
	if hits.Load() != 2 {
		t.Fatalf("expected refresh inside the final minute, got %d hits", hits.Load())
	}
}

func TestInvalidGrantDisconnects(t *testing.T) {
	a, st := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Refresh token revoked"}`))
	})
	_ = st.SetSetting(context.Background(), models.KeySpotifyRefreshToken, "revoked")
	_ = st.SetSetting(context.Background(), models.KeySpotifyConnected, true)

	if _, err := a.AccessToken(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if st.refreshToken() != "" || st.settings.SpotifyConnected {
		t.Fatal("expected tokens cleared and connected flag reset")
	}
}

func mustState(t *testing.T, a *Auth) string {
	t.Helper()
	u, err := url.Parse(a.AuthorizeURL())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return u.Query().Get("state")
}
