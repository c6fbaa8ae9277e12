package spotify

import "strings"

// CurrentlyPlaying is the response of GET /me/player/currently-playing.
type CurrentlyPlaying struct {
	IsPlaying            bool   `json:"is_playing"`
	ProgressMs           int    `json:"progress_ms"`
	CurrentlyPlayingType string `json:"currently_playing_type"`
	Item                 *Track `json:"item"`
}

// Track is the subset of a Spotify track object the tools display.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	URI        string   `json:"uri"`
	DurationMs int      `json:"duration_ms"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
}

// Artist is a simplified artist object.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album is a simplified album object.
type Album struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Track returns the playing track, or false when playback is paused or the
// item is not a track (episodes, ads).
func (c *CurrentlyPlaying) Track() (*Track, bool) {
	if c == nil || !c.IsPlaying || c.Item == nil || c.Item.Type != "track" {
		return nil, false
	}
	return c.Item, true
}

// ArtistNames joins the artist names with ", ". It returns "" when the track
// has no named artists.
func (t *Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}
