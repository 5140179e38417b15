// package services defines the [Catalog] interface for the music catalog HTTP API
//
// Spotify
package services

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/desertthunder/radiosync/internal/models"
)

// Catalog is the set of catalog operations the sync core depends on.
type Catalog interface {
	// SearchTracks returns candidate tracks for an artist and track name. An empty slice is not an error.
	SearchTracks(ctx context.Context, artist, trackName string) ([]models.Track, error)

	// GetPlaylist returns the playlist with every track, following pagination.
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// AddTracks appends tracks by URI. An empty slice issues no request.
	AddTracks(ctx context.Context, playlistID string, uris []string) error

	// RemoveTracks removes every occurrence of each URI. An empty slice issues no request.
	RemoveTracks(ctx context.Context, playlistID string, uris []string) error

	// UpdatePlaylistDescription replaces the playlist description.
	UpdatePlaylistDescription(ctx context.Context, playlistID, description string) error
}

// Authorizer runs the one-time authorization code flow that yields a refresh token.
type Authorizer interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}
