package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/radiosync/internal/server"
	"github.com/desertthunder/radiosync/internal/services"
	"github.com/desertthunder/radiosync/internal/shared"
	"github.com/desertthunder/radiosync/internal/ui"
)

const authTimeout = 2 * time.Minute

// Auth performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server on the redirect URI, opens the browser for user authorization, and exchanges the
// code for tokens. The refresh token is printed and written to the config file.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	cfg := r.configuration()
	if err := cfg.ValidateClient(); err != nil {
		return err
	}

	svc, err := services.NewSpotifyServiceFromConfig(cfg, shared.WithLogger(r.logger, "component", "spotify"))
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	token, err := r.doOAuth(ctx, cfg, svc)
	if err != nil {
		return err
	}
	if token.RefreshToken == "" {
		return fmt.Errorf("%w: no refresh token in response", shared.ErrAuthFailed)
	}
	cfg.Credentials.Spotify.RefreshToken = token.RefreshToken

	r.writePlainln("%s", ui.Styles.OK("Authorization successful"))
	r.writePlain("Refresh token: %s\n\n", token.RefreshToken)

	if r.configPath == "" {
		return r.writePlain("Set %s to this value before running sync.\n", shared.EnvRefreshToken)
	}

	if err := saveRefreshToken(r.configPath, token.RefreshToken); err != nil {
		return err
	}

	r.writePlain("%s\n\n", ui.Styles.OK("Refresh token saved to "+r.configPath))
	r.writePlain("You can now use: radiosync sync --dry-run\n")
	return nil
}

// saveRefreshToken stores token in the config file at path, leaving values that came from the environment out of it.
func saveRefreshToken(path, token string) error {
	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return err
		}
	}

	config.Credentials.Spotify.RefreshToken = token
	if err := shared.SaveConfig(path, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// callbackAddress derives the listen address and callback path from the redirect URI.
//
// The server section fills in a missing host or port.
func callbackAddress(cfg *shared.Config) (string, string, error) {
	u, err := url.Parse(cfg.Credentials.Spotify.RedirectURI)
	if err != nil {
		return "", "", fmt.Errorf("%w: redirect_uri: %v", shared.ErrInvalidConfig, err)
	}
	if u.Scheme != "http" {
		return "", "", fmt.Errorf("%w: redirect_uri must be a local http URL, got %q", shared.ErrInvalidConfig, cfg.Credentials.Spotify.RedirectURI)
	}

	host, port := u.Hostname(), u.Port()
	if host == "" {
		host = cfg.Server.Host
	}
	if port == "" {
		port = strconv.Itoa(cfg.Server.Port)
	}

	path := u.Path
	if path == "" {
		path = "/callback"
	}

	return net.JoinHostPort(host, port), path, nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, cfg *shared.Config, authorizer services.Authorizer) (*oauth2.Token, error) {
	addr, path, err := callbackAddress(cfg)
	if err != nil {
		return nil, err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := authorizer.AuthURL(state)
	oauthHandler := server.NewOAuthHandler(authorizer, state, path)
	router := server.NewBasicRouter()
	router.Use(server.LoggingMiddleware(r.logger))
	router.Handler(oauthHandler)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("%s", ui.Styles.Warn("Could not open browser automatically."))
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}
