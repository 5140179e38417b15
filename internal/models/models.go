package models

import "strings"

// ScrapedMention is one "artist - name" line read from the radio playlist page.
type ScrapedMention struct {
	Artist string `json:"artist"`
	Name   string `json:"name"`
}

func (m ScrapedMention) String() string {
	return m.Artist + " - " + m.Name
}

// featureSeparators split a credited artist string into the primary artist and guests.
var featureSeparators = []string{"&", "ft."}

// PrimaryArtist returns the text before the first featuring separator, trimmed.
func PrimaryArtist(artist string) string {
	cut := len(artist)
	for _, sep := range featureSeparators {
		if i := strings.Index(artist, sep); i >= 0 && i < cut {
			cut = i
		}
	}
	return strings.TrimSpace(artist[:cut])
}

// NewScrapedMention builds a mention keeping only the primary artist.
func NewScrapedMention(artist, name string) ScrapedMention {
	return ScrapedMention{Artist: PrimaryArtist(artist), Name: strings.TrimSpace(name)}
}

// Artist is a catalog artist.
type Artist struct {
	ID   string `json:"id"`
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// Album is a catalog album.
type Album struct {
	ID      string   `json:"id"`
	URI     string   `json:"uri"`
	Name    string   `json:"name"`
	Artists []Artist `json:"artists"`
}

// Track is a catalog track.
type Track struct {
	ID         string   `json:"id"`
	URI        string   `json:"uri"`
	Name       string   `json:"name"`
	Popularity int      `json:"popularity"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
}

// ArtistNames returns the track's artist names in credit order.
func (t Track) ArtistNames() []string {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return names
}

// Label is a human readable "Artists - Name" string for logs and reports.
func (t Track) Label() string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return strings.Join(t.ArtistNames(), ", ") + " - " + t.Name
}

// Playlist is a snapshot of a catalog playlist and all of its tracks.
type Playlist struct {
	ID            string  `json:"id"`
	URI           string  `json:"uri"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Public        bool    `json:"public"`
	Collaborative bool    `json:"collaborative"`
	Tracks        []Track `json:"tracks"`
}

// URIs returns the URIs of tracks in order.
func URIs(tracks []Track) []string {
	uris := make([]string, len(tracks))
	for i, t := range tracks {
		uris[i] = t.URI
	}
	return uris
}
