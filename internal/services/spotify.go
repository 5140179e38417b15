// Spotify API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// maxBatchSize is the most URIs the playlist items endpoints accept per request.
	maxBatchSize      = 100
	defaultRetryAfter = time.Second
	maxErrorBody      = 512
)

var spotifyScopes = []string{
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	URI     string          `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context. Track is null for removed or
// unavailable items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPlaylistTracks is one page of playlist items.
type SpotifyPlaylistTracks struct {
	Items []SpotifyPlaylistTrack `json:"items"`
	Total int                    `json:"total"`
	Next  *string                `json:"next"`
}

// SpotifyPlaylist represents a Spotify playlist with its first page of items.
type SpotifyPlaylist struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Description   string                `json:"description"`
	Public        *bool                 `json:"public"`
	Collaborative bool                  `json:"collaborative"`
	Tracks        SpotifyPlaylistTracks `json:"tracks"`
	URI           string                `json:"uri"`
}

type searchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

type addTracksRequest struct {
	URIs []string `json:"uris"`
}

type trackURI struct {
	URI string `json:"uri"`
}

type removeTracksRequest struct {
	Tracks []trackURI `json:"tracks"`
}

type updatePlaylistRequest struct {
	Description string `json:"description"`
}

// SpotifyOptions tunes a [SpotifyService]. Zero values select the defaults.
type SpotifyOptions struct {
	BaseURL           string
	AuthURL           string
	TokenURL          string
	Market            string
	SearchLimit       int
	RequestsPerSecond float64
	Timeout           time.Duration
	MaxRetries        int
	// Transport is the base round tripper under the OAuth2 transport.
	Transport http.RoundTripper
	Logger    *log.Logger
}

// SpotifyService implements the [Catalog] interface for the Spotify Web API.
// Uses [oauth2] for authentication and a [rate.Limiter] to pace requests.
type SpotifyService struct {
	config      *oauth2.Config
	tokens      *refreshableTokenSource
	tokenClient *http.Client
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseURL     string
	market      string
	searchLimit int
	maxRetries  int
	logger      *log.Logger
}

// NewSpotifyService creates a Spotify client from credentials. The refresh token may be empty for the
// authorization flow, in which case only [SpotifyService.AuthURL] and [SpotifyService.Exchange] work.
func NewSpotifyService(credentials shared.SpotifyConfig, opts SpotifyOptions) (*SpotifyService, error) {
	if credentials.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if credentials.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.AuthURL == "" {
		opts.AuthURL = spotifyAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	config := &oauth2.Config{
		ClientID:     credentials.ClientID,
		ClientSecret: credentials.ClientSecret,
		RedirectURL:  credentials.RedirectURI,
		Scopes:       spotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   opts.AuthURL,
			TokenURL:  opts.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	tokenClient := &http.Client{Timeout: opts.Timeout, Transport: opts.Transport}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, tokenClient)
	tokens := newRefreshableTokenSource(tokenCtx, config, credentials.RefreshToken)

	return &SpotifyService{
		config:      config,
		tokens:      tokens,
		tokenClient: tokenClient,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &oauth2.Transport{Source: tokens, Base: opts.Transport},
		},
		limiter:     rate.NewLimiter(limit, 1),
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		market:      opts.Market,
		searchLimit: opts.SearchLimit,
		maxRetries:  opts.MaxRetries,
		logger:      opts.Logger,
	}, nil
}

// NewSpotifyServiceFromConfig builds a client from the application configuration.
func NewSpotifyServiceFromConfig(cfg *shared.Config, logger *log.Logger) (*SpotifyService, error) {
	return NewSpotifyService(cfg.Credentials.Spotify, SpotifyOptions{
		Market:            cfg.Catalog.Market,
		SearchLimit:       cfg.Catalog.SearchLimit,
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		Timeout:           cfg.Catalog.Timeout(),
		MaxRetries:        cfg.Catalog.MaxRetries,
		Logger:            logger,
	})
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SetTokenRefreshCallback registers a function called with every newly issued token.
func (s *SpotifyService) SetTokenRefreshCallback(callback func(*oauth2.Token)) {
	s.tokens.setCallback(callback)
}

// RefreshToken returns the current refresh token, which differs from the configured one after rotation.
func (s *SpotifyService) RefreshToken() string {
	return s.tokens.currentRefreshToken()
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and starts using it.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.tokenClient)
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	s.tokens.set(token)
	return token, nil
}

// SearchTracks searches for tracks matching an artist and a track name.
func (s *SpotifyService) SearchTracks(ctx context.Context, artist, trackName string) ([]models.Track, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("artist:%s track:%s", artist, trackName))
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(s.searchLimit))
	if s.market != "" {
		params.Set("market", s.market)
	}

	var response searchResponse
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(response.Tracks.Items))
	for _, item := range response.Tracks.Items {
		tracks = append(tracks, item.toModel())
	}

	s.logger.Debug("search", "artist", artist, "track", trackName, "results", len(tracks))
	return tracks, nil
}

// Playlist retrieves a playlist by ID with its first page of items.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, http.MethodGet, playlistEndpoint(playlistID), nil, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// GetPlaylist retrieves a playlist and all of its tracks.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	sp, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	playlist := &models.Playlist{
		ID:            sp.ID,
		URI:           sp.URI,
		Name:          sp.Name,
		Description:   html.UnescapeString(sp.Description),
		Public:        sp.Public != nil && *sp.Public,
		Collaborative: sp.Collaborative,
		Tracks:        make([]models.Track, 0, sp.Tracks.Total),
	}

	page := sp.Tracks
	for {
		for _, item := range page.Items {
			if item.Track == nil {
				continue
			}
			playlist.Tracks = append(playlist.Tracks, item.Track.toModel())
		}

		if page.Next == nil || *page.Next == "" {
			break
		}

		next := *page.Next
		page = SpotifyPlaylistTracks{}
		if err := s.doRequest(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("fetched playlist", "id", playlistID, "name", playlist.Name, "tracks", len(playlist.Tracks))
	return playlist, nil
}

// AddTracks appends tracks to a playlist in batches.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	endpoint := playlistEndpoint(playlistID) + "/tracks"
	for _, batch := range batches(uris, maxBatchSize) {
		if err := s.doRequest(ctx, http.MethodPost, endpoint, addTracksRequest{URIs: batch}, nil); err != nil {
			return err
		}
	}
	return nil
}

// RemoveTracks removes tracks from a playlist in batches.
func (s *SpotifyService) RemoveTracks(ctx context.Context, playlistID string, uris []string) error {
	endpoint := playlistEndpoint(playlistID) + "/tracks"
	for _, batch := range batches(uris, maxBatchSize) {
		body := removeTracksRequest{Tracks: make([]trackURI, len(batch))}
		for i, uri := range batch {
			body.Tracks[i] = trackURI{URI: uri}
		}
		if err := s.doRequest(ctx, http.MethodDelete, endpoint, body, nil); err != nil {
			return err
		}
	}
	return nil
}

// UpdatePlaylistDescription replaces a playlist's description.
func (s *SpotifyService) UpdatePlaylistDescription(ctx context.Context, playlistID, description string) error {
	return s.doRequest(ctx, http.MethodPut, playlistEndpoint(playlistID), updatePlaylistRequest{Description: description}, nil)
}

// doRequest performs an authenticated, rate limited request to the Spotify API.
//
// endpoint is relative to the base URL unless it is absolute, as pagination links are.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s %s: %w", shared.ErrAPIRequest, method, endpoint, err)
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %s %s: %w", shared.ErrAPIRequest, method, endpoint, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < s.maxRetries {
			wait := retryAfter(resp.Header.Get("Retry-After"))
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			s.logger.Warn("rate limited", "method", method, "endpoint", endpoint, "retry_after", wait, "attempt", attempt+1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		return s.handleResponse(resp, method, endpoint, result)
	}
}

func (s *SpotifyService) handleResponse(resp *http.Response, method, endpoint string, result any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := fmt.Sprintf("%s %s returned %d: %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(body)))

		if kind := statusError(resp.StatusCode, endpoint); kind != nil {
			return fmt.Errorf("%w: %w: %s", shared.ErrAPIRequest, kind, msg)
		}
		return fmt.Errorf("%w: %s", shared.ErrAPIRequest, msg)
	}

	if result == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func statusError(status int, endpoint string) error {
	switch {
	case status == http.StatusUnauthorized:
		return shared.ErrNotAuthenticated
	case status == http.StatusNotFound && strings.Contains(endpoint, "/playlists/"):
		return shared.ErrPlaylistNotFound
	case status == http.StatusTooManyRequests:
		return shared.ErrRateLimited
	case status >= 500:
		return shared.ErrServiceUnavailable
	default:
		return nil
	}
}

// retryAfter parses a Retry-After value in seconds.
func retryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

func playlistEndpoint(playlistID string) string {
	return "/playlists/" + url.PathEscape(playlistID)
}

// batches splits items into consecutive slices of at most size elements.
func batches(items []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

func (t SpotifyTrack) toModel() models.Track {
	return models.Track{
		ID:         t.ID,
		URI:        t.URI,
		Name:       t.Name,
		Popularity: t.Popularity,
		Artists:    toArtists(t.Artists),
		Album: models.Album{
			ID:      t.Album.ID,
			URI:     t.Album.URI,
			Name:    t.Album.Name,
			Artists: toArtists(t.Album.Artists),
		},
	}
}

func toArtists(artists []SpotifyArtist) []models.Artist {
	out := make([]models.Artist, len(artists))
	for i, a := range artists {
		out[i] = models.Artist{ID: a.ID, URI: a.URI, Name: a.Name}
	}
	return out
}
