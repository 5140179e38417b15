// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/shared"
)

// MockCatalog is an in-memory test double for [services.Catalog].
//
// Writes are applied to the stored playlists so consecutive runs observe earlier changes.
type MockCatalog struct {
	mu        sync.Mutex
	results   map[string][]models.Track
	tracks    map[string]models.Track
	playlists map[string]*models.Playlist
	calls     []string

	SearchErr   error
	GetErr      error
	AddErr      error
	RemoveErr   error
	DescribeErr error
}

func NewMockCatalog() *MockCatalog {
	return &MockCatalog{
		results:   map[string][]models.Track{},
		tracks:    map[string]models.Track{},
		playlists: map[string]*models.Playlist{},
	}
}

func searchKey(artist, name string) string {
	return artist + "|" + name
}

// AddResult registers the search results for an exact artist and name query.
func (m *MockCatalog) AddResult(artist, name string, tracks ...models.Track) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[searchKey(artist, name)] = append(m.results[searchKey(artist, name)], tracks...)
	for _, t := range tracks {
		m.tracks[t.URI] = t
	}
}

// AddPlaylist stores a playlist.
func (m *MockCatalog) AddPlaylist(p models.Playlist) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range p.Tracks {
		m.tracks[t.URI] = t
	}
	p.Tracks = slices.Clone(p.Tracks)
	m.playlists[p.ID] = &p
}

// Playlist returns a copy of a stored playlist.
func (m *MockCatalog) Playlist(id string) models.Playlist {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := *m.playlists[id]
	p.Tracks = slices.Clone(p.Tracks)
	return p
}

// Calls returns the recorded calls, e.g. "search Artist|Name" or "add pl1 3".
func (m *MockCatalog) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallsWithPrefix returns the recorded calls starting with prefix.
func (m *MockCatalog) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range m.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears recorded calls.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockCatalog) call(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

func (m *MockCatalog) SearchTracks(ctx context.Context, artist, trackName string) ([]models.Track, error) {
	m.call("search %s", searchKey(artist, trackName))
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.results[searchKey(artist, trackName)]), nil
}

func (m *MockCatalog) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	m.call("get %s", playlistID)
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	out := *p
	out.Tracks = slices.Clone(p.Tracks)
	return &out, nil
}

func (m *MockCatalog) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	m.call("add %s %d", playlistID, len(uris))
	if m.AddErr != nil {
		return m.AddErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.playlists[playlistID]
	for _, uri := range uris {
		p.Tracks = append(p.Tracks, m.tracks[uri])
	}
	return nil
}

func (m *MockCatalog) RemoveTracks(ctx context.Context, playlistID string, uris []string) error {
	m.call("remove %s %d", playlistID, len(uris))
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.playlists[playlistID]
	p.Tracks = slices.DeleteFunc(p.Tracks, func(t models.Track) bool {
		return slices.Contains(uris, t.URI)
	})
	return nil
}

func (m *MockCatalog) UpdatePlaylistDescription(ctx context.Context, playlistID, description string) error {
	m.call("describe %s", playlistID)
	if m.DescribeErr != nil {
		return m.DescribeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playlists[playlistID].Description = description
	return nil
}

// MockSource returns fixed mentions.
type MockSource struct {
	Mentions []models.ScrapedMention
	Err      error
}

func (m *MockSource) Scrape(ctx context.Context) ([]models.ScrapedMention, error) {
	return m.Mentions, m.Err
}

// NewTrack builds a catalog track with a single artist.
func NewTrack(id, name, artist string, popularity int) models.Track {
	return models.Track{
		ID:         id,
		URI:        "spotify:track:" + id,
		Name:       name,
		Popularity: popularity,
		Artists:    []models.Artist{{ID: "artist-" + artist, Name: artist}},
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = &FCloser{}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
