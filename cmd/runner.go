package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/radiosync/internal/repositories"
	"github.com/desertthunder/radiosync/internal/scraper"
	"github.com/desertthunder/radiosync/internal/services"
	"github.com/desertthunder/radiosync/internal/shared"
	"github.com/desertthunder/radiosync/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies left nil in [RunnerOpts] are built from the configuration on first use.
type Runner struct {
	config     *shared.Config
	configPath string
	source     tasks.MentionSource
	catalog    services.Catalog
	history    *repositories.HistoryRepository
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Source     tasks.MentionSource
	Catalog    services.Catalog
	History    *repositories.HistoryRepository
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		source:     opts.Source,
		catalog:    opts.Catalog,
		history:    opts.History,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, scrapeCommand, resolveCommand, historyCommand, authCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by the global flags unless one was injected, and applies the log level.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" && r.configPath == "" {
		r.configPath = path
	}

	if r.config == nil {
		config, err := shared.Load(r.configPath, cmd.String("env"))
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	level, err := shared.ParseLogLevel(r.config.Log.Level)
	if err != nil {
		return ctx, err
	}
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	return ctx, nil
}

// configuration returns the loaded configuration, falling back to defaults.
func (r *Runner) configuration() *shared.Config {
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	return r.config
}

// mentionSource returns the radio playlist scraper.
func (r *Runner) mentionSource() tasks.MentionSource {
	if r.source == nil {
		cfg := r.configuration()
		client := &http.Client{Timeout: cfg.Source.Timeout(), Transport: r.httpClient.Transport}
		r.source = scraper.New(cfg.Source.URL, client, shared.WithLogger(r.logger, "component", "scraper"))
	}
	return r.source
}

// catalogClient returns the Spotify client, authenticated with the configured refresh token.
func (r *Runner) catalogClient() (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}

	cfg := r.configuration()
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}
	if cfg.Credentials.Spotify.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s is not set, run 'radiosync auth' first", shared.ErrMissingCredentials, shared.EnvRefreshToken)
	}

	svc, err := services.NewSpotifyServiceFromConfig(cfg, shared.WithLogger(r.logger, "component", "spotify"))
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	svc.SetTokenRefreshCallback(r.tokenIssued)

	r.catalog = svc
	return svc, nil
}

// openHistory opens the run history database. The returned close function is always safe to call.
//
// Returns a nil repository when no database path is configured.
func (r *Runner) openHistory() (*repositories.HistoryRepository, func() error, error) {
	noop := func() error { return nil }
	if r.history != nil {
		return r.history, noop, nil
	}

	path := r.configuration().Database.Path
	if path == "" {
		return nil, noop, nil
	}

	db, err := shared.OpenHistory(path)
	if err != nil {
		return nil, noop, err
	}
	return repositories.NewHistoryRepository(db), db.Close, nil
}

// tokenIssued logs each access token and warns when the refresh token has been rotated.
func (r *Runner) tokenIssued(token *oauth2.Token) {
	r.logger.Debug("access token issued", "expires", token.Expiry)

	cfg := r.configuration()
	if token.RefreshToken == "" || token.RefreshToken == cfg.Credentials.Spotify.RefreshToken {
		return
	}
	cfg.Credentials.Spotify.RefreshToken = token.RefreshToken
	r.logger.Warn("refresh token rotated, run 'radiosync auth' or update " + shared.EnvRefreshToken + " before the next run")
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
