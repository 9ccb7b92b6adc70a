package models

import (
	"fmt"
	"time"
)

// SourceType enumerates the kinds of audio source a block can reference.
type SourceType string

const (
	// SourceStation is a direct internet radio stream.
	SourceStation SourceType = "station"
	// SourceSpotify is an external playlist played through a Spotify Connect device.
	SourceSpotify SourceType = "spotify"
)

// SourceTypes lists every source kind.
var SourceTypes = []SourceType{SourceStation, SourceSpotify}

// Valid reports whether t is one of the known source kinds.
func (t SourceType) Valid() bool {
	switch t {
	case SourceStation, SourceSpotify:
		return true
	}
	return false
}

// ParseSourceType accepts the canonical names plus the aliases older clients send.
func ParseSourceType(s string) (SourceType, error) {
	switch s {
	case "station", "somafm", "direct-stream", "":
		return SourceStation, nil
	case "spotify", "external-playlist":
		return SourceSpotify, nil
	}
	return "", fmt.Errorf("unknown source type %q", s)
}

// SourceRef identifies an audio source independently of any schedule slot.
type SourceRef struct {
	Type SourceType `json:"source_type"`
	Ref  string     `json:"source_ref"`
	Name string     `json:"source_name,omitempty"`
}

// Same reports whether two refs point at the same source. Display names are ignored.
func (r SourceRef) Same(other SourceRef) bool {
	return r.Type == other.Type && r.Ref == other.Ref
}

// Key is a stable identity string for the source.
func (r SourceRef) Key() string {
	return string(r.Type) + ":" + r.Ref
}

// ScheduleBlock assigns one source to a time range on one day of the week.
// DayOfWeek is Monday=0 through Sunday=6.
type ScheduleBlock struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	DayOfWeek   int        `gorm:"index:idx_schedule_blocks_slot" json:"day_of_week"`
	StartHour   int        `gorm:"index:idx_schedule_blocks_slot" json:"start_hour"`
	StartMinute int        `json:"start_minute"`
	EndHour     int        `json:"end_hour"`
	EndMinute   int        `json:"end_minute"`
	SourceType  SourceType `gorm:"type:varchar(16)" json:"source_type"`
	SourceRef   string     `gorm:"type:varchar(255)" json:"source_ref"`
	SourceName  string     `gorm:"type:varchar(255)" json:"source_name,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Source returns the block's source reference.
func (b ScheduleBlock) Source() SourceRef {
	return SourceRef{Type: b.SourceType, Ref: b.SourceRef, Name: b.SourceName}
}

// Station is a direct-stream internet radio station.
type Station struct {
	ID          string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255)" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	StreamURL   string    `gorm:"type:text" json:"stream_url"`
	Color       string    `gorm:"type:varchar(16)" json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StationPlaylist is an ordered grouping of stations used to fill consecutive hours.
type StationPlaylist struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(255)" json:"name"`
	StationIDs []string  `gorm:"serializer:json" json:"station_ids"`
	Color      string    `gorm:"type:varchar(16)" json:"color"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ExternalPlaylist is a streaming-service playlist known to the library.
type ExternalPlaylist struct {
	ID         string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(255)" json:"name"`
	URI        string    `gorm:"type:varchar(255);uniqueIndex" json:"uri"`
	TrackCount int       `json:"track_count"`
	ImageURL   string    `gorm:"type:text" json:"image_url,omitempty"`
	Color      string    `gorm:"type:varchar(16)" json:"color"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Setting is one persisted settings key. Value holds the JSON encoding.
// Revision is the settings version at the time of the write.
type Setting struct {
	Key       string `gorm:"type:varchar(64);primaryKey"`
	Value     string `gorm:"type:text"`
	Revision  int64  `gorm:"index"`
	UpdatedAt time.Time
}
