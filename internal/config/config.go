/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// EventBusBackend selects how change events travel between instances.
type EventBusBackend string

const (
	EventBusMemory EventBusBackend = "memory"
	EventBusRedis  EventBusBackend = "redis"
	EventBusNATS   EventBusBackend = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	BaseURL       string // Public base URL, used to build the Spotify redirect
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string
	MetricsBind   string // Standalone player's /metrics and /healthz listener
	Timezone      string
	Location      *time.Location

	LogLevel  string
	LogFormat string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Event bus and multi-instance configuration
	EventBus              EventBusBackend
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	NATSURL               string
	LeaderElectionEnabled bool
	InstanceID            string

	// Direct stream playback
	GStreamerBin string
	AudioSink    string

	// Spotify
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRedirectURL  string
	SpotifyDeviceName   string

	// Station directory
	RadioBrowserURL string
	UserAgent       string

	// PIN gate
	PINMaxAttempts int
	PINLockout     time.Duration

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnvAny([]string{"HEARTH_ENV", "ENV"}, "development"),
		HTTPBind:      getEnvAny([]string{"HEARTH_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:      getEnvIntAny([]string{"HEARTH_HTTP_PORT", "PORT"}, 8080),
		BaseURL:       getEnvAny([]string{"HEARTH_BASE_URL"}, ""),
		DBBackend:     DatabaseBackend(getEnvAny([]string{"HEARTH_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:         getEnvAny([]string{"HEARTH_DB_DSN", "DATABASE_URL"}, "hearth.db"),
		JWTSigningKey: getEnvAny([]string{"HEARTH_JWT_SIGNING_KEY"}, ""),
		MetricsBind:   getEnvAny([]string{"HEARTH_METRICS_BIND"}, "127.0.0.1:9000"),
		Timezone:      getEnvAny([]string{"HEARTH_TIMEZONE", "TZ"}, "Local"),
		LogLevel:      getEnvAny([]string{"HEARTH_LOG_LEVEL", "LOG_LEVEL"}, ""),
		LogFormat:     getEnvAny([]string{"HEARTH_LOG_FORMAT"}, ""),

		TracingEnabled:    getEnvBoolAny([]string{"HEARTH_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"HEARTH_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"HEARTH_TRACING_SAMPLE_RATE"}, 1.0),

		EventBus:              EventBusBackend(getEnvAny([]string{"HEARTH_EVENT_BUS"}, string(EventBusMemory))),
		RedisAddr:             getEnvAny([]string{"HEARTH_REDIS_ADDR", "REDIS_ADDR"}, "localhost:6379"),
		RedisPassword:         getEnvAny([]string{"HEARTH_REDIS_PASSWORD", "REDIS_PASSWORD"}, ""),
		RedisDB:               getEnvIntAny([]string{"HEARTH_REDIS_DB", "REDIS_DB"}, 0),
		NATSURL:               getEnvAny([]string{"HEARTH_NATS_URL", "NATS_URL"}, "nats://127.0.0.1:4222"),
		LeaderElectionEnabled: getEnvBoolAny([]string{"HEARTH_LEADER_ELECTION_ENABLED"}, false),
		InstanceID:            getEnvAny([]string{"HEARTH_INSTANCE_ID"}, ""),

		GStreamerBin: getEnvAny([]string{"HEARTH_GSTREAMER_BIN"}, "gst-launch-1.0"),
		AudioSink:    getEnvAny([]string{"HEARTH_AUDIO_SINK"}, "autoaudiosink"),

		SpotifyClientID:     getEnvAny([]string{"HEARTH_SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_ID"}, ""),
		SpotifyClientSecret: getEnvAny([]string{"HEARTH_SPOTIFY_CLIENT_SECRET", "SPOTIFY_CLIENT_SECRET"}, ""),
		SpotifyRedirectURL:  getEnvAny([]string{"HEARTH_SPOTIFY_REDIRECT_URL", "SPOTIFY_REDIRECT_URI"}, ""),
		SpotifyDeviceName:   getEnvAny([]string{"HEARTH_SPOTIFY_DEVICE_NAME"}, "Hearth Radio"),

		RadioBrowserURL: getEnvAny([]string{"HEARTH_RADIO_BROWSER_URL"}, "https://de1.api.radio-browser.info"),
		UserAgent:       getEnvAny([]string{"HEARTH_USER_AGENT"}, "HearthRadio/1.0"),

		PINMaxAttempts: getEnvIntAny([]string{"HEARTH_PIN_MAX_ATTEMPTS"}, 15),
		PINLockout:     time.Duration(getEnvIntAny([]string{"HEARTH_PIN_LOCKOUT_MINUTES"}, 60)) * time.Minute,
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.EventBus != EventBusMemory && cfg.EventBus != EventBusRedis && cfg.EventBus != EventBusNATS {
		return nil, fmt.Errorf("unsupported event bus %q", cfg.EventBus)
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("HEARTH_JWT_SIGNING_KEY must be provided")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if cfg.PINMaxAttempts <= 0 {
		return nil, fmt.Errorf("HEARTH_PIN_MAX_ATTEMPTS must be positive")
	}

	if cfg.SpotifyRedirectURL == "" && cfg.BaseURL != "" {
		cfg.SpotifyRedirectURL = strings.TrimRight(cfg.BaseURL, "/") + "/api/v1/spotify/callback"
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if cfg.SpotifyClientID != "" && cfg.SpotifyRedirectURL == "" {
			return nil, fmt.Errorf("HEARTH_SPOTIFY_REDIRECT_URL or HEARTH_BASE_URL is required when Spotify is enabled in production")
		}
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"VITE_SPOTIFY_CLIENT_ID":    "use HEARTH_SPOTIFY_CLIENT_ID (or SPOTIFY_CLIENT_ID)",
		"VITE_SPOTIFY_REDIRECT_URI": "use HEARTH_SPOTIFY_REDIRECT_URL",
		"JWT_SIGNING_KEY":           "use HEARTH_JWT_SIGNING_KEY",
		"LEADER_ELECTION_ENABLED":   "use HEARTH_LEADER_ELECTION_ENABLED",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// SpotifyEnabled reports whether a client id was configured.
func (c *Config) SpotifyEnabled() bool {
	return c != nil && c.SpotifyClientID != ""
}

// Now returns the current wall-clock time in the configured zone.
func (c *Config) Now() time.Time {
	if c == nil || c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
