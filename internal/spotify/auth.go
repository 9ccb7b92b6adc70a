/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package spotify connects the household Spotify account: PKCE login, token
// refresh, playlist lookups and Spotify Connect transport commands.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/friendsincode/hearth_radio/internal/config"
	"github.com/friendsincode/hearth_radio/internal/models"
	"github.com/friendsincode/hearth_radio/internal/telemetry"
)

// Spotify accounts endpoints.
const (
	AuthURL  = "https://accounts.spotify.com/authorize"
	TokenURL = "https://accounts.spotify.com/api/token"
)

// Scopes requested at login.
var Scopes = []string{
	"streaming",
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"playlist-read-private",
	"playlist-read-collaborative",
}

var (
	// ErrNotConnected means no usable refresh token is stored.
	ErrNotConnected = errors.New("spotify not connected")
	// ErrUnknownState is returned for callbacks that do not match a pending login.
	ErrUnknownState = errors.New("unknown or expired oauth state")
)

// pendingTTL bounds how long a login may sit at the consent screen.
const pendingTTL = 10 * time.Minute

// expirySkew is subtracted from the lifetime Spotify reports.
const expirySkew = 60 * time.Second

// TokenStore persists the refresh token. *store.Store satisfies it.
type TokenStore interface {
	Settings(ctx context.Context) (models.Settings, error)
	SetSetting(ctx context.Context, key string, value any) error
}

type pendingLogin struct {
	verifier string
	created  time.Time
}

// Auth owns the OAuth2 flow and the cached access token.
type Auth struct {
	oauth  *oauth2.Config
	store  TokenStore
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	pending   map[string]pendingLogin
	access    string
	expiresAt time.Time
}

// NewAuth builds the flow from config. Spotify is a public PKCE client, so the
// client id travels in the form body and the secret is optional.
func NewAuth(cfg *config.Config, st TokenStore, logger zerolog.Logger) *Auth {
	return &Auth{
		oauth: &oauth2.Config{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			RedirectURL:  cfg.SpotifyRedirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   AuthURL,
				TokenURL:  TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		store:   st,
		client:  telemetry.HTTPClient(15 * time.Second),
		logger:  logger.With().Str("component", "spotify_auth").Logger(),
		now:     time.Now,
		pending: make(map[string]pendingLogin),
	}
}

// AuthorizeURL starts a login and returns the consent URL.
func (a *Auth) AuthorizeURL() string {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	a.mu.Lock()
	now := a.now()
	for k, p := range a.pending {
		if now.Sub(p.created) > pendingTTL {
			delete(a.pending, k)
		}
	}
	a.pending[state] = pendingLogin{verifier: verifier, created: now}
	a.mu.Unlock()

	return a.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange completes a login: the code is traded for tokens and the refresh
// token is stored.
func (a *Auth) Exchange(ctx context.Context, state, code string) error {
	a.mu.Lock()
	p, ok := a.pending[state]
	delete(a.pending, state)
	a.mu.Unlock()
	if !ok || a.now().Sub(p.created) > pendingTTL {
		return ErrUnknownState
	}

	started := time.Now()
	tok, err := a.oauth.Exchange(a.httpContext(ctx), code, oauth2.VerifierOption(p.verifier))
	telemetry.ObserveExternal("spotify_token", started, err)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	if tok.RefreshToken == "" {
		return fmt.Errorf("exchange code: no refresh token returned")
	}

	if err := a.store.SetSetting(ctx, models.KeySpotifyRefreshToken, tok.RefreshToken); err != nil {
		return err
	}
	if err := a.store.SetSetting(ctx, models.KeySpotifyConnected, true); err != nil {
		return err
	}
	a.cache(tok)
	a.logger.Info().Msg("spotify connected")
	return nil
}

// Disconnect forgets every token.
func (a *Auth) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	a.access, a.expiresAt = "", time.Time{}
	a.mu.Unlock()

	if err := a.store.SetSetting(ctx, models.KeySpotifyRefreshToken, nil); err != nil {
		return err
	}
	return a.store.SetSetting(ctx, models.KeySpotifyConnected, false)
}

// AccessToken returns a valid access token, refreshing when the cached one
// has expired. Concurrent callers share one refresh.
func (a *Auth) AccessToken(ctx context.Context) (string, error) {
	if tok, ok := a.cached(); ok {
		return tok, nil
	}

	v, err, _ := a.group.Do("refresh", func() (any, error) {
		// a flight that finished just before this one may have filled the cache
		if tok, ok := a.cached(); ok {
			return tok, nil
		}
		return a.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (a *Auth) refresh(ctx context.Context) (string, error) {
	settings, err := a.store.Settings(ctx)
	if err != nil {
		return "", err
	}
	if settings.SpotifyRefreshToken == nil || *settings.SpotifyRefreshToken == "" {
		return "", ErrNotConnected
	}
	old := *settings.SpotifyRefreshToken

	started := time.Now()
	src := a.oauth.TokenSource(a.httpContext(ctx), &oauth2.Token{RefreshToken: old})
	tok, err := src.Token()
	telemetry.ObserveExternal("spotify_token", started, err)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			a.logger.Warn().Msg("refresh token revoked, disconnecting spotify")
			if derr := a.Disconnect(ctx); derr != nil {
				a.logger.Error().Err(derr).Msg("failed to clear spotify tokens")
			}
			return "", ErrNotConnected
		}
		return "", fmt.Errorf("refresh spotify token: %w", err)
	}

	if tok.RefreshToken == "" {
		tok.RefreshToken = old
	}
	if tok.RefreshToken != old {
		if err := a.store.SetSetting(ctx, models.KeySpotifyRefreshToken, tok.RefreshToken); err != nil {
			a.logger.Error().Err(err).Msg("failed to store rotated refresh token")
		}
	}
	a.cache(tok)
	return tok.AccessToken, nil
}

func (a *Auth) cached() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.access != "" && a.now().Before(a.expiresAt) {
		return a.access, true
	}
	return "", false
}

func (a *Auth) cache(tok *oauth2.Token) {
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = a.now().Add(time.Hour)
	}
	a.mu.Lock()
	a.access = tok.AccessToken
	a.expiresAt = expiry.Add(-expirySkew)
	a.mu.Unlock()
}

func (a *Auth) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.client)
}
