package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/radiosync/internal/shared"
)

const (
	// accessTokenLifetime is how long an access token from the token endpoint stays valid.
	accessTokenLifetime = time.Hour
	// refreshMargin is how long before expiry a cached token stops being handed out.
	refreshMargin = 5 * time.Minute
)

// refreshableTokenSource hands out a cached access token and trades the refresh token for a new one once
// the cached token is within [refreshMargin] of its lifetime.
//
// oauth2's own reuse source only refreshes after expiry, so each refresh builds a fresh source.
type refreshableTokenSource struct {
	mu           sync.Mutex
	ctx          context.Context
	config       *oauth2.Config
	refreshToken string
	token        *oauth2.Token
	issuedAt     time.Time
	now          func() time.Time
	callback     func(*oauth2.Token)
}

func newRefreshableTokenSource(ctx context.Context, config *oauth2.Config, refreshToken string) *refreshableTokenSource {
	return &refreshableTokenSource{
		ctx:          ctx,
		config:       config,
		refreshToken: refreshToken,
		now:          time.Now,
	}
}

// Token implements [oauth2.TokenSource].
func (s *refreshableTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil && s.now().Before(s.issuedAt.Add(accessTokenLifetime-refreshMargin)) {
		return s.token, nil
	}

	if s.refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	issuedAt := s.now()
	token, err := s.config.TokenSource(s.ctx, &oauth2.Token{RefreshToken: s.refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	s.token = token
	s.issuedAt = issuedAt
	if token.RefreshToken != "" {
		s.refreshToken = token.RefreshToken
	}

	if s.callback != nil {
		s.callback(token)
	}
	return token, nil
}

// set replaces the cached token, as after an authorization code exchange.
func (s *refreshableTokenSource) set(token *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.issuedAt = s.now()
	if token.RefreshToken != "" {
		s.refreshToken = token.RefreshToken
	}
}

func (s *refreshableTokenSource) currentRefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

func (s *refreshableTokenSource) setCallback(callback func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = callback
}
