package config

import (
	"testing"
	"time"
)

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("HEARTH_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("HEARTH_ENV", "development")
	t.Setenv("HEARTH_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("expected sqlite default backend, got %q", cfg.DBBackend)
	}
	if cfg.JWTSigningKey != "supersecret" {
		t.Fatalf("unexpected jwt signing key: %q", cfg.JWTSigningKey)
	}
	if cfg.PINMaxAttempts != 15 {
		t.Fatalf("expected 15 pin attempts, got %d", cfg.PINMaxAttempts)
	}
	if cfg.PINLockout != time.Hour {
		t.Fatalf("expected 1h lockout, got %s", cfg.PINLockout)
	}
	if cfg.Location != time.UTC {
		t.Fatalf("expected UTC location, got %v", cfg.Location)
	}
}

func TestLoadRequiresSigningKey(t *testing.T) {
	t.Setenv("HEARTH_JWT_SIGNING_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing signing key to fail")
	}
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	t.Setenv("HEARTH_JWT_SIGNING_KEY", "supersecret")

	t.Setenv("HEARTH_DB_BACKEND", "oracle")
	if _, err := Load(); err == nil {
		t.Fatal("expected unsupported db backend to fail")
	}

	t.Setenv("HEARTH_DB_BACKEND", "postgres")
	t.Setenv("HEARTH_EVENT_BUS", "kafka")
	if _, err := Load(); err == nil {
		t.Fatal("expected unsupported event bus to fail")
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	t.Setenv("HEARTH_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("HEARTH_TIMEZONE", "Mars/Olympus_Mons")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid timezone to fail")
	}
}

func TestLoadSpotifyAliasesAndRedirect(t *testing.T) {
	t.Setenv("HEARTH_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("SPOTIFY_CLIENT_ID", "abc123")
	t.Setenv("HEARTH_BASE_URL", "http://kiosk.local:8080/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.SpotifyEnabled() {
		t.Fatal("expected spotify to be enabled via alias")
	}
	if cfg.SpotifyRedirectURL != "http://kiosk.local:8080/api/v1/spotify/callback" {
		t.Fatalf("unexpected redirect url %q", cfg.SpotifyRedirectURL)
	}
}

func TestLoadProductionRequiresSpotifyRedirect(t *testing.T) {
	t.Setenv("HEARTH_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("HEARTH_ENV", "production")
	t.Setenv("HEARTH_SPOTIFY_CLIENT_ID", "abc123")
	t.Setenv("HEARTH_BASE_URL", "")
	t.Setenv("HEARTH_SPOTIFY_REDIRECT_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected production config load to fail without a redirect")
	}

	t.Setenv("HEARTH_SPOTIFY_REDIRECT_URL", "https://radio.example.com/api/v1/spotify/callback")
	if _, err := Load(); err != nil {
		t.Fatalf("expected production config with redirect to succeed: %v", err)
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	t.Setenv("HEARTH_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("VITE_SPOTIFY_CLIENT_ID", "legacy")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.LegacyEnvWarnings) == 0 {
		t.Fatal("expected legacy env warnings")
	}
}
