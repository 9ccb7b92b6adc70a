package models

import (
	"encoding/json"
	"testing"
)

func TestSettingsApplyDecodesEveryKey(t *testing.T) {
	s := DefaultSettings()
	raw := map[string]string{
		KeyDefaultStation:        `"groovesalad"`,
		KeyDefaultType:           `"somafm"`,
		KeyVolume:                `55`,
		KeyIsPaused:              `true`,
		KeyFollowSchedule:        `true`,
		KeyManualStationOverride: `"lush"`,
		KeySpotifyRefreshToken:   `null`,
		KeySpotifyConnected:      `false`,
	}
	for key, value := range raw {
		if err := s.Apply(key, json.RawMessage(value)); err != nil {
			t.Fatalf("apply %s: %v", key, err)
		}
	}

	if s.DefaultStation != "groovesalad" || s.DefaultType != SourceStation {
		t.Fatalf("unexpected default: %+v", s.Default())
	}
	if s.Volume != 55 || !s.IsPaused || !s.FollowSchedule {
		t.Fatalf("unexpected transport settings: %+v", s)
	}
	if s.SpotifyRefreshToken != nil {
		t.Fatal("expected null refresh token")
	}
	if _, ok := s.ManualOverride(); ok {
		t.Fatal("manual override must not apply while following the schedule")
	}

	s.FollowSchedule = false
	if id, ok := s.ManualOverride(); !ok || id != "lush" {
		t.Fatalf("expected lush override, got %q %v", id, ok)
	}
}

func TestValidateSetting(t *testing.T) {
	tests := []struct {
		key     string
		value   any
		wantErr bool
	}{
		{KeyVolume, float64(70), false},
		{KeyVolume, float64(101), true},
		{KeyVolume, 12.5, true},
		{KeyVolume, "loud", true},
		{KeyIsPaused, true, false},
		{KeyIsPaused, "yes", true},
		{KeyDefaultType, "spotify", false},
		{KeyDefaultType, "cassette", true},
		{KeyManualStationOverride, nil, false},
		{KeyManualStationOverride, "lush", false},
		{KeyManualStationOverride, 3, true},
		{"colour_scheme", "dark", true},
	}

	for _, tt := range tests {
		err := ValidateSetting(tt.key, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSetting(%s, %v) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
		}
	}
}

func TestColorForIsStable(t *testing.T) {
	a := ColorFor("96062a7b-0601-11e8-ae97-52543be04c81")
	b := ColorFor("96062a7b-0601-11e8-ae97-52543be04c81")
	if a != b {
		t.Fatalf("expected stable color, got %s and %s", a, b)
	}
}
