package models

import (
	"encoding/json"
	"fmt"
)

// Settings keys as persisted.
const (
	KeyDefaultStation        = "default_station"
	KeyDefaultType           = "default_type"
	KeyVolume                = "volume"
	KeyIsPaused              = "is_paused"
	KeyFollowSchedule        = "follow_schedule"
	KeyManualStationOverride = "manual_station_override"
	KeyPIN                   = "pin"
	KeySpotifyRefreshToken   = "spotify_refresh_token"
	KeySpotifyConnected      = "spotify_connected"
)

// DefaultPIN is the access PIN before the operator changes it.
const DefaultPIN = "1315"

// Settings is an immutable snapshot of the process-wide settings.
// Version increases with every key write.
type Settings struct {
	DefaultStation        string     `json:"default_station"`
	DefaultType           SourceType `json:"default_type"`
	Volume                int        `json:"volume"`
	IsPaused              bool       `json:"is_paused"`
	FollowSchedule        bool       `json:"follow_schedule"`
	ManualStationOverride *string    `json:"manual_station_override"`
	PIN                   string     `json:"-"`
	SpotifyRefreshToken   *string    `json:"-"`
	SpotifyConnected      bool       `json:"spotify_connected"`
	Version               int64      `json:"version"`
}

// DefaultSettings returns the values used for keys that were never written.
func DefaultSettings() Settings {
	return Settings{
		DefaultType: SourceStation,
		Volume:      70,
		PIN:         DefaultPIN,
	}
}

// Default returns the fallback source reference.
func (s Settings) Default() SourceRef {
	return SourceRef{Type: s.DefaultType, Ref: s.DefaultStation}
}

// ManualOverride returns the pinned station when manual mode applies.
func (s Settings) ManualOverride() (string, bool) {
	if s.FollowSchedule || s.ManualStationOverride == nil || *s.ManualStationOverride == "" {
		return "", false
	}
	return *s.ManualStationOverride, true
}

// SettingKeys lists every known key.
var SettingKeys = []string{
	KeyDefaultStation, KeyDefaultType, KeyVolume, KeyIsPaused, KeyFollowSchedule,
	KeyManualStationOverride, KeyPIN, KeySpotifyRefreshToken, KeySpotifyConnected,
}

// Apply decodes one persisted key into s.
func (s *Settings) Apply(key string, raw json.RawMessage) error {
	var err error
	switch key {
	case KeyDefaultStation:
		err = json.Unmarshal(raw, &s.DefaultStation)
	case KeyDefaultType:
		var v string
		if err = json.Unmarshal(raw, &v); err == nil {
			s.DefaultType, err = ParseSourceType(v)
		}
	case KeyVolume:
		err = json.Unmarshal(raw, &s.Volume)
	case KeyIsPaused:
		err = json.Unmarshal(raw, &s.IsPaused)
	case KeyFollowSchedule:
		err = json.Unmarshal(raw, &s.FollowSchedule)
	case KeyManualStationOverride:
		err = json.Unmarshal(raw, &s.ManualStationOverride)
	case KeyPIN:
		err = json.Unmarshal(raw, &s.PIN)
	case KeySpotifyRefreshToken:
		err = json.Unmarshal(raw, &s.SpotifyRefreshToken)
	case KeySpotifyConnected:
		err = json.Unmarshal(raw, &s.SpotifyConnected)
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	if err != nil {
		return fmt.Errorf("decode setting %s: %w", key, err)
	}
	return nil
}

// ValidateSetting checks a value before it is persisted.
func ValidateSetting(key string, value any) error {
	switch key {
	case KeyVolume:
		v, ok := asInt(value)
		if !ok || v < 0 || v > 100 {
			return fmt.Errorf("volume must be between 0 and 100")
		}
	case KeyIsPaused, KeyFollowSchedule, KeySpotifyConnected:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s must be a boolean", key)
		}
	case KeyDefaultType:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("default_type must be a string")
		}
		if _, err := ParseSourceType(v); err != nil {
			return err
		}
	case KeyDefaultStation, KeyPIN:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%s must be a string", key)
		}
	case KeyManualStationOverride, KeySpotifyRefreshToken:
		if value == nil {
			return nil
		}
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%s must be a string or null", key)
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
