package models

// Library is a read-only snapshot of every source the schedule may reference.
type Library struct {
	Stations  []Station          `json:"stations"`
	Playlists []StationPlaylist  `json:"playlists"`
	External  []ExternalPlaylist `json:"external_playlists"`
}

// Station looks up a station by id.
func (l Library) Station(id string) (Station, bool) {
	for _, s := range l.Stations {
		if s.ID == id {
			return s, true
		}
	}
	return Station{}, false
}

// Playlist looks up a station playlist by id.
func (l Library) Playlist(id string) (StationPlaylist, bool) {
	for _, p := range l.Playlists {
		if p.ID == id {
			return p, true
		}
	}
	return StationPlaylist{}, false
}

// ExternalByURI looks up an external playlist by provider URI.
func (l Library) ExternalByURI(uri string) (ExternalPlaylist, bool) {
	for _, p := range l.External {
		if p.URI == uri {
			return p, true
		}
	}
	return ExternalPlaylist{}, false
}

// Has reports whether ref resolves to a library entry.
func (l Library) Has(ref SourceRef) bool {
	switch ref.Type {
	case SourceStation:
		_, ok := l.Station(ref.Ref)
		return ok
	case SourceSpotify:
		_, ok := l.ExternalByURI(ref.Ref)
		return ok
	}
	return false
}

// Palette is the set of display colors assigned to library entries.
var Palette = []string{
	"#4CAF50", "#7B1FA2", "#E91E63", "#1A237E", "#FF9800",
	"#795548", "#8BC34A", "#FFC107", "#FF5722", "#CE93D8",
	"#00BCD4", "#3F51B5", "#009688", "#F44336", "#607D8B",
}

// ColorFor picks a stable palette color for an id.
func ColorFor(id string) string {
	var h uint32
	for i := 0; i < len(id); i++ {
		h = h*31 + uint32(id[i])
	}
	return Palette[h%uint32(len(Palette))]
}
