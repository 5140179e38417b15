package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables read by [Config.ApplyEnv].
const (
	EnvClientID        = "SPOTIFY_CLIENT_ID"
	EnvClientSecret    = "SPOTIFY_CLIENT_SECRET"
	EnvRefreshToken    = "SPOTIFY_REFRESH_TOKEN"
	EnvSyncedPlaylist  = "SPOTIFY_SYNCED_PLAYLIST_ID"
	EnvLegacyPlaylist  = "SPOTIFY_RADIO_6_PLAYLIST_ID"
	EnvArchivePlaylist = "SPOTIFY_ARCHIVE_PLAYLIST_ID"
	EnvDatabasePath    = "RADIOSYNC_DATABASE_PATH"
	EnvLogLevel        = "RADIOSYNC_LOG_LEVEL"
)

// Identity policies accepted by sync.identity.
const (
	IdentityByID             = "id"
	IdentityByNameAndArtists = "name_artists"
)

// Config represents the application configuration.
//
// It is built once at startup (defaults, TOML file, .env, environment) and handed to constructors.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Playlists   PlaylistsConfig   `toml:"playlists"`
	Source      SourceConfig      `toml:"source"`
	Catalog     CatalogConfig     `toml:"catalog"`
	Sync        SyncConfig        `toml:"sync"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`
	RedirectURI  string `toml:"redirect_uri"`
}

// PlaylistsConfig names the two target playlists.
type PlaylistsConfig struct {
	Synced  string `toml:"synced"`
	Archive string `toml:"archive"`
}

// SourceConfig describes the scraped radio playlist page.
type SourceConfig struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// CatalogConfig tunes the catalog HTTP client.
type CatalogConfig struct {
	Market            string  `toml:"market"`
	SearchLimit       int     `toml:"search_limit"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	MaxRetries        int     `toml:"max_retries"`
}

// SyncConfig holds reconciliation settings.
type SyncConfig struct {
	Identity string `toml:"identity"`
	Timezone string `toml:"timezone"`
}

// DatabaseConfig contains the run history database path. Empty disables history.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Timeout returns the source request timeout.
func (s SourceConfig) Timeout() time.Duration {
	return seconds(s.TimeoutSeconds)
}

// Timeout returns the per-request catalog timeout.
func (c CatalogConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 30 * time.Second
	}
	return time.Duration(n) * time.Second
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// LoadConfig reads a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// Load builds the runtime configuration.
//
// The TOML file at path is optional. Variables from envFile are loaded into the process
// environment without overriding existing values, then the environment is applied on top.
func Load(path, envFile string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	config.ApplyEnv(os.LookupEnv)
	return config, nil
}

// ApplyEnv overrides config values with any set environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}

	set(&c.Credentials.Spotify.ClientID, EnvClientID)
	set(&c.Credentials.Spotify.ClientSecret, EnvClientSecret)
	set(&c.Credentials.Spotify.RefreshToken, EnvRefreshToken)
	set(&c.Playlists.Synced, EnvSyncedPlaylist, EnvLegacyPlaylist)
	set(&c.Playlists.Archive, EnvArchivePlaylist)
	set(&c.Database.Path, EnvDatabasePath)
	set(&c.Log.Level, EnvLogLevel)
}

// ValidateClient checks the application credentials needed for any Spotify call.
func (c *Config) ValidateClient() error {
	var missing []string
	if c.Credentials.Spotify.ClientID == "" {
		missing = append(missing, EnvClientID)
	}
	if c.Credentials.Spotify.ClientSecret == "" {
		missing = append(missing, EnvClientSecret)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Validate checks everything a sync run needs and fails on the first class of problem.
func (c *Config) Validate() error {
	if err := c.ValidateClient(); err != nil {
		return err
	}
	if c.Credentials.Spotify.RefreshToken == "" {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, EnvRefreshToken)
	}

	var missing []string
	if c.Playlists.Synced == "" {
		missing = append(missing, EnvSyncedPlaylist)
	}
	if c.Playlists.Archive == "" {
		missing = append(missing, EnvArchivePlaylist)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing playlist ids %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}

	switch c.Sync.Identity {
	case IdentityByID, IdentityByNameAndArtists:
	default:
		return fmt.Errorf("%w: unknown sync.identity %q", ErrInvalidConfig, c.Sync.Identity)
	}

	if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
		return fmt.Errorf("%w: sync.timezone %q: %v", ErrInvalidConfig, c.Sync.Timezone, err)
	}
	if c.Source.URL == "" {
		return fmt.Errorf("%w: source.url is empty", ErrInvalidConfig)
	}
	if c.Catalog.RequestsPerSecond < 0 || c.Catalog.MaxRetries < 0 {
		return fmt.Errorf("%w: catalog limits must not be negative", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
