package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/repositories"
	"github.com/desertthunder/radiosync/internal/shared"
	"github.com/desertthunder/radiosync/internal/tasks"
	tu "github.com/desertthunder/radiosync/internal/testing"
)

func testConfig() *shared.Config {
	config := shared.DefaultConfig()
	config.Credentials.Spotify.ClientID = "client-id"
	config.Credentials.Spotify.ClientSecret = "client-secret"
	config.Credentials.Spotify.RefreshToken = "refresh-token"
	config.Playlists.Synced = "synced-id"
	config.Playlists.Archive = "archive-id"
	return config
}

type fixture struct {
	runner  *Runner
	catalog *tu.MockCatalog
	output  *bytes.Buffer
}

func newFixture(t *testing.T, history *repositories.HistoryRepository) *fixture {
	t.Helper()

	source := &tu.MockSource{Mentions: []models.ScrapedMention{
		{Artist: "Wet Leg", Name: "Chaise Longue"},
		{Artist: "Fontaines D.C.", Name: "Starburster"},
		{Artist: "Nobody", Name: "Unknown Song"},
	}}

	catalog := tu.NewMockCatalog()
	catalog.AddResult("Wet Leg", "Chaise Longue", tu.NewTrack("t1", "Chaise Longue", "Wet Leg", 50))
	catalog.AddResult("Fontaines D.C.", "Starburster", tu.NewTrack("t2", "Starburster", "Fontaines D.C.", 60))
	catalog.AddPlaylist(models.Playlist{
		ID:          "synced-id",
		Name:        "6 Music Playlist",
		Description: "Mirror of the A list",
		Tracks:      []models.Track{tu.NewTrack("t9", "Old Song", "Someone", 10)},
	})
	catalog.AddPlaylist(models.Playlist{ID: "archive-id", Name: "6 Music Archive"})

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:     testConfig(),
		ConfigPath: filepath.Join(t.TempDir(), "config.toml"),
		Source:     source,
		Catalog:    catalog,
		History:    history,
		Logger:     shared.NewLogger(io.Discard),
		Output:     output,
	})

	return &fixture{runner: runner, catalog: catalog, output: output}
}

func (f *fixture) run(t *testing.T, args ...string) error {
	t.Helper()
	return newApp(f.runner).Run(context.Background(), append([]string{"radiosync"}, args...))
}

func newHistory(t *testing.T) *repositories.HistoryRepository {
	t.Helper()
	db, err := shared.OpenHistory(":memory:")
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewHistoryRepository(db)
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			source := &tu.MockSource{}
			catalog := tu.NewMockCatalog()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Source:     source,
				Catalog:    catalog,
				HTTPClient: httpClient,
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.source != source {
				t.Error("expected source to be set")
			}
			if runner.catalog != catalog {
				t.Error("expected catalog to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.configuration() == nil {
				t.Error("expected default config")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("writePlainln surrounds with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			runner.writePlainln("Next steps:")
			if output.String() != "\nNext steps:\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		names := []string{}
		for _, cmd := range commands {
			names = append(names, cmd.Name)
		}
		expected := "sync,scrape,resolve,history,auth,setup"
		if strings.Join(names, ",") != expected {
			t.Errorf("expected commands %s, got %v", expected, names)
		}
	})

	t.Run("Before", func(t *testing.T) {
		for _, key := range []string{
			shared.EnvClientID, shared.EnvClientSecret, shared.EnvRefreshToken, shared.EnvSyncedPlaylist,
			shared.EnvLegacyPlaylist, shared.EnvArchivePlaylist, shared.EnvDatabasePath, shared.EnvLogLevel,
		} {
			t.Setenv(key, "")
		}

		t.Run("loads config file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			config := shared.DefaultConfig()
			config.Playlists.Synced = "from-file"
			config.Log.Level = "warn"
			config.Database.Path = filepath.Join(t.TempDir(), "history.db")
			if err := shared.SaveConfig(path, config); err != nil {
				t.Fatalf("failed to save config: %v", err)
			}

			logger := shared.NewLogger(io.Discard)
			runner := NewRunner(RunnerOpts{Logger: logger, Output: &bytes.Buffer{}})
			if err := newApp(runner).Run(context.Background(), []string{"radiosync", "--config", path, "--env", "", "setup", "database"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if runner.configuration().Playlists.Synced != "from-file" {
				t.Errorf("expected playlist from file, got %q", runner.configuration().Playlists.Synced)
			}
			if runner.configPath != path {
				t.Errorf("expected config path %s, got %s", path, runner.configPath)
			}
			if logger.GetLevel() != log.WarnLevel {
				t.Errorf("expected warn level, got %v", logger.GetLevel())
			}
		})

		t.Run("verbose enables debug", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Database.Path = filepath.Join(t.TempDir(), "history.db")
			logger := shared.NewLogger(io.Discard)
			runner := NewRunner(RunnerOpts{Config: config, Logger: logger, Output: &bytes.Buffer{}})
			if err := newApp(runner).Run(context.Background(), []string{"radiosync", "--verbose", "setup", "database"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if logger.GetLevel() != log.DebugLevel {
				t.Errorf("expected debug level, got %v", logger.GetLevel())
			}
		})

		t.Run("invalid log level", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Log.Level = "loud"
			runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard), Output: &bytes.Buffer{}})

			err := newApp(runner).Run(context.Background(), []string{"radiosync", "setup", "database"})
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})

	t.Run("tokenIssued", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Config: testConfig(), Logger: shared.NewLogger(io.Discard)})

		runner.tokenIssued(&oauth2.Token{AccessToken: "a", RefreshToken: ""})
		if runner.config.Credentials.Spotify.RefreshToken != "refresh-token" {
			t.Error("expected refresh token to be kept")
		}

		runner.tokenIssued(&oauth2.Token{AccessToken: "b", RefreshToken: "rotated"})
		if runner.config.Credentials.Spotify.RefreshToken != "rotated" {
			t.Errorf("expected rotated refresh token, got %q", runner.config.Credentials.Spotify.RefreshToken)
		}
	})
}

func TestSync(t *testing.T) {
	t.Run("applies changes and prints report", func(t *testing.T) {
		f := newFixture(t, nil)

		if err := f.run(t, "sync"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		synced := f.catalog.Playlist("synced-id")
		if len(synced.Tracks) != 2 {
			t.Errorf("expected 2 synced tracks, got %d", len(synced.Tracks))
		}
		for _, track := range synced.Tracks {
			if track.ID == "t9" {
				t.Error("expected outdated track to be removed")
			}
		}
		if !strings.HasPrefix(synced.Description, "Mirror of the A list Last updated: ") {
			t.Errorf("unexpected description %q", synced.Description)
		}
		if archive := f.catalog.Playlist("archive-id"); len(archive.Tracks) != 2 {
			t.Errorf("expected 2 archive tracks, got %d", len(archive.Tracks))
		}

		out := f.output.String()
		for _, want := range []string{"Found 3 mentions", "Sync Complete!", "+ Wet Leg - Chaise Longue", "- Someone - Old Song", "Nobody - Unknown Song"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("dry run modifies nothing", func(t *testing.T) {
		f := newFixture(t, nil)

		if err := f.run(t, "sync", "--dry-run"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if calls := f.catalog.CallsWithPrefix("add"); len(calls) != 0 {
			t.Errorf("expected no add calls, got %v", calls)
		}
		if calls := f.catalog.CallsWithPrefix("describe"); len(calls) != 0 {
			t.Errorf("expected no describe calls, got %v", calls)
		}
		if !strings.Contains(f.output.String(), "Dry Run Complete") {
			t.Errorf("expected dry run header, got:\n%s", f.output.String())
		}
	})

	t.Run("json report has no progress lines", func(t *testing.T) {
		f := newFixture(t, nil)

		if err := f.run(t, "sync", "--format", "json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var result tasks.SyncResult
		if err := json.Unmarshal(f.output.Bytes(), &result); err != nil {
			t.Fatalf("expected JSON output, got %v:\n%s", err, f.output.String())
		}
		if result.Mentions != 3 || result.Resolved != 2 || len(result.Targets) != 2 {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("writes report file", func(t *testing.T) {
		f := newFixture(t, nil)
		path := filepath.Join(t.TempDir(), "report.csv")

		if err := f.run(t, "sync", "--format", "csv", "--output", path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		tu.AssertFileExists(t, path)
		if content := tu.MustReadFile(t, path); !strings.HasPrefix(content, "Run,Target,Playlist,Action") {
			t.Errorf("expected CSV header, got %q", content)
		}
		if !strings.Contains(f.output.String(), "Report written to "+path) {
			t.Errorf("expected confirmation, got:\n%s", f.output.String())
		}
	})

	t.Run("records history", func(t *testing.T) {
		history := newHistory(t)
		f := newFixture(t, history)

		if err := f.run(t, "sync"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		runs, err := history.ListRuns(context.Background(), 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 1 || runs[0].Added != 4 || runs[0].Removed != 1 || runs[0].Misses != 1 {
			t.Errorf("unexpected runs %+v", runs)
		}
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		f := newFixture(t, nil)

		if err := f.run(t, "sync", "--format", "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if len(f.catalog.Calls()) != 0 {
			t.Error("expected no catalog calls")
		}
	})

	t.Run("fails fast on missing playlist ids", func(t *testing.T) {
		f := newFixture(t, nil)
		f.runner.config.Playlists.Archive = ""

		if err := f.run(t, "sync"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("returns catalog errors", func(t *testing.T) {
		f := newFixture(t, nil)
		f.catalog.AddErr = shared.ErrRateLimited

		if err := f.run(t, "sync"); !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})
}

func TestScrape(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		f := newFixture(t, nil)

		if err := f.run(t, "scrape"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out := f.output.String(); !strings.Contains(out, " 1. Wet Leg - Chaise Longue") || !strings.Contains(out, "Found 3 mentions") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		f := newFixture(t, nil)

		if err := f.run(t, "scrape", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var mentions []models.ScrapedMention
		if err := json.Unmarshal(f.output.Bytes(), &mentions); err != nil {
			t.Fatalf("expected JSON output, got %v", err)
		}
		if len(mentions) != 3 || mentions[1].Artist != "Fontaines D.C." {
			t.Errorf("unexpected mentions %+v", mentions)
		}
	})

	t.Run("empty page", func(t *testing.T) {
		f := newFixture(t, nil)
		f.runner.source = &tu.MockSource{}

		if err := f.run(t, "scrape"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(f.output.String(), "empty") {
			t.Errorf("expected empty warning, got %q", f.output.String())
		}
	})

	t.Run("scrape error", func(t *testing.T) {
		f := newFixture(t, nil)
		f.runner.source = &tu.MockSource{Err: shared.ErrScrapeFailed}

		if err := f.run(t, "scrape"); !errors.Is(err, shared.ErrScrapeFailed) {
			t.Errorf("expected ErrScrapeFailed, got %v", err)
		}
	})
}

func TestResolve(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		f := newFixture(t, nil)

		if err := f.run(t, "resolve", "--artist", "Wet Leg & Friends", "--name", "Chaise Longue"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out := f.output.String(); !strings.Contains(out, "Wet Leg - Chaise Longue") || !strings.Contains(out, "spotify:track:t1") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("miss", func(t *testing.T) {
		f := newFixture(t, nil)

		if err := f.run(t, "resolve", "--artist", "Nobody", "--name", "Unknown Song"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(f.output.String(), "No match for Nobody - Unknown Song") {
			t.Errorf("unexpected output:\n%s", f.output.String())
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		config := shared.DefaultConfig()
		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard), Output: &bytes.Buffer{}})

		err := newApp(runner).Run(context.Background(), []string{"radiosync", "resolve", "--artist", "A", "--name", "B"})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestHistory(t *testing.T) {
	t.Run("requires a database", func(t *testing.T) {
		f := newFixture(t, nil)

		if err := f.run(t, "history"); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("lists and shows runs", func(t *testing.T) {
		f := newFixture(t, newHistory(t))

		if err := f.run(t, "sync", "--dry-run"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := f.run(t, "sync"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		f.output.Reset()
		if err := f.run(t, "history"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, "2 runs") || !strings.Contains(out, "(dry run)") || !strings.Contains(out, "+4 -1") {
			t.Errorf("unexpected listing:\n%s", out)
		}
		if strings.Index(out, "#2") > strings.Index(out, "#1") {
			t.Errorf("expected newest run first:\n%s", out)
		}

		f.output.Reset()
		if err := f.run(t, "history", "--run", "2"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = f.output.String()
		for _, want := range []string{"Run #2", "Status: succeeded", "+ [synced] Wet Leg - Chaise Longue", "- [synced] Someone - Old Song", "Nobody - Unknown Song"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		f := newFixture(t, newHistory(t))

		if err := f.run(t, "history", "--run", "42"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})
}

func TestSetup(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		f := newFixture(t, nil)

		if err := f.run(t, "setup", "config"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.AssertFileExists(t, f.runner.configPath)

		if err := f.run(t, "setup", "config"); err == nil {
			t.Error("expected error when config already exists")
		}
	})

	t.Run("database", func(t *testing.T) {
		f := newFixture(t, nil)
		path := filepath.Join(t.TempDir(), "history.db")
		f.runner.config.Database.Path = path

		if err := f.run(t, "setup", "database"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.AssertFileExists(t, path)
	})

	t.Run("database without path", func(t *testing.T) {
		f := newFixture(t, nil)

		if err := f.run(t, "setup", "database"); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})
}

func TestAuthHelpers(t *testing.T) {
	t.Run("callbackAddress", func(t *testing.T) {
		tests := []struct {
			name     string
			redirect string
			addr     string
			path     string
			wantErr  bool
		}{
			{"full uri", "http://127.0.0.1:3000/callback", "127.0.0.1:3000", "/callback", false},
			{"custom path", "http://localhost:8888/auth/spotify", "localhost:8888", "/auth/spotify", false},
			{"port from server config", "http://127.0.0.1", "127.0.0.1:3000", "/callback", false},
			{"https rejected", "https://example.com/callback", "", "", true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				config := shared.DefaultConfig()
				config.Credentials.Spotify.RedirectURI = tt.redirect

				addr, path, err := callbackAddress(config)
				if tt.wantErr {
					if !errors.Is(err, shared.ErrInvalidConfig) {
						t.Errorf("expected ErrInvalidConfig, got %v", err)
					}
					return
				}
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if addr != tt.addr || path != tt.path {
					t.Errorf("expected %s%s, got %s%s", tt.addr, tt.path, addr, path)
				}
			})
		}
	})

	t.Run("saveRefreshToken keeps file values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		config := shared.DefaultConfig()
		config.Playlists.Synced = "synced-id"
		if err := shared.SaveConfig(path, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		if err := saveRefreshToken(path, "new-token"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		loaded, err := shared.LoadConfig(path)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}
		if loaded.Credentials.Spotify.RefreshToken != "new-token" || loaded.Playlists.Synced != "synced-id" {
			t.Errorf("unexpected config %+v", loaded)
		}
	})

	t.Run("saveRefreshToken creates file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := saveRefreshToken(path, "new-token"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "new-token") {
			t.Errorf("expected token in file, got %q", content)
		}
	})
}
