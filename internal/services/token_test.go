package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/radiosync/internal/shared"
)

// tokenServer is a fake token endpoint that issues numbered access tokens.
type tokenServer struct {
	mu            sync.Mutex
	calls         int
	refreshTokens []string
	rotate        bool
	fail          bool
}

func (ts *tokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ts.calls++
	ts.refreshTokens = append(ts.refreshTokens, r.PostForm.Get("refresh_token"))

	w.Header().Set("Content-Type", "application/json")
	if ts.fail {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Refresh token revoked"}`)
		return
	}

	body := fmt.Sprintf(`{"access_token":"access-%d","token_type":"Bearer","expires_in":3600`, ts.calls)
	if ts.rotate {
		body += fmt.Sprintf(`,"refresh_token":"refresh-%d"`, ts.calls)
	}
	fmt.Fprint(w, body+"}")
}

func newTestTokenSource(t *testing.T, ts *tokenServer, refreshToken string) (*refreshableTokenSource, *time.Time) {
	t.Helper()
	server := httptest.NewServer(ts)
	t.Cleanup(server.Close)

	config := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: server.URL, AuthStyle: oauth2.AuthStyleInParams},
	}

	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	source := newRefreshableTokenSource(context.Background(), config, refreshToken)
	source.now = func() time.Time { return clock }
	return source, &clock
}

func TestRefreshableTokenSource(t *testing.T) {
	t.Run("caches until five minutes before expiry", func(t *testing.T) {
		ts := &tokenServer{}
		source, clock := newTestTokenSource(t, ts, "refresh-0")

		first, err := source.Token()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first.AccessToken != "access-1" {
			t.Errorf("expected access-1, got %s", first.AccessToken)
		}

		*clock = clock.Add(54 * time.Minute)
		cached, err := source.Token()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cached.AccessToken != "access-1" || ts.calls != 1 {
			t.Errorf("expected cached token, got %s after %d calls", cached.AccessToken, ts.calls)
		}

		*clock = clock.Add(time.Minute)
		refreshed, err := source.Token()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if refreshed.AccessToken != "access-2" || ts.calls != 2 {
			t.Errorf("expected refresh at the margin, got %s after %d calls", refreshed.AccessToken, ts.calls)
		}
	})

	t.Run("sends the refresh token and keeps it when not rotated", func(t *testing.T) {
		ts := &tokenServer{}
		source, clock := newTestTokenSource(t, ts, "long-lived")

		source.Token()
		*clock = clock.Add(time.Hour)
		source.Token()

		for i, rt := range ts.refreshTokens {
			if rt != "long-lived" {
				t.Errorf("call %d: expected refresh token long-lived, got %q", i, rt)
			}
		}
		if got := source.currentRefreshToken(); got != "long-lived" {
			t.Errorf("expected refresh token to be kept, got %s", got)
		}
	})

	t.Run("rotated refresh token replaces the old one", func(t *testing.T) {
		ts := &tokenServer{rotate: true}
		source, clock := newTestTokenSource(t, ts, "refresh-0")

		source.Token()
		*clock = clock.Add(time.Hour)
		source.Token()

		if ts.refreshTokens[1] != "refresh-1" {
			t.Errorf("expected second refresh to use rotated token, got %s", ts.refreshTokens[1])
		}
		if got := source.currentRefreshToken(); got != "refresh-2" {
			t.Errorf("expected refresh-2, got %s", got)
		}
	})

	t.Run("calls callback on every new token", func(t *testing.T) {
		ts := &tokenServer{}
		source, clock := newTestTokenSource(t, ts, "refresh-0")

		var captured []string
		source.setCallback(func(token *oauth2.Token) {
			captured = append(captured, token.AccessToken)
		})

		source.Token()
		source.Token()
		*clock = clock.Add(time.Hour)
		source.Token()

		if len(captured) != 2 || captured[0] != "access-1" || captured[1] != "access-2" {
			t.Errorf("expected callback for access-1 and access-2, got %v", captured)
		}
	})

	t.Run("refresh failure", func(t *testing.T) {
		ts := &tokenServer{fail: true}
		source, _ := newTestTokenSource(t, ts, "revoked")

		_, err := source.Token()
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
	})

	t.Run("no refresh token", func(t *testing.T) {
		ts := &tokenServer{}
		source, _ := newTestTokenSource(t, ts, "")

		_, err := source.Token()
		if !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
		if ts.calls != 0 {
			t.Errorf("expected no token requests, got %d", ts.calls)
		}
	})

	t.Run("set installs an exchanged token", func(t *testing.T) {
		ts := &tokenServer{}
		source, _ := newTestTokenSource(t, ts, "")

		source.set(&oauth2.Token{AccessToken: "exchanged", RefreshToken: "new-refresh"})
		token, err := source.Token()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token.AccessToken != "exchanged" || ts.calls != 0 {
			t.Errorf("expected exchanged token without refresh, got %s", token.AccessToken)
		}
		if source.currentRefreshToken() != "new-refresh" {
			t.Errorf("expected refresh token from exchange, got %s", source.currentRefreshToken())
		}
	})
}
