package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/spotify-mcp/internal/mcp/oauth"
)

const (
	testIdentity = "jane@example.com"
	testBaseURL  = "http://localhost:3000"
)

// newFakeAccounts serves a token endpoint that accepts the code "good" and
// the refresh token "refresh-1".
func newFakeAccounts(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseForm()) {
			return
		}
		w.Header().Set("Content-Type", "application/json")

		ok := (r.PostForm.Get("grant_type") == "authorization_code" && r.PostForm.Get("code") == "good") ||
			(r.PostForm.Get("grant_type") == "refresh_token" && r.PostForm.Get("refresh_token") == "refresh-1")
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid authorization code",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         "user-read-playback-state",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServerContext(t *testing.T, tokenURL, apiURL string) *ServerContext {
	t.Helper()
	sc, err := NewServerContext(context.Background(), Options{
		OAuth: oauth.Config{
			ClientID:     "client-123",
			ClientSecret: "secret",
			BaseURL:      testBaseURL,
			TokenURL:     tokenURL,
		},
		APIBaseURL: apiURL,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

// beginLogin returns the composite state Spotify would echo back.
func beginLogin(t *testing.T, sc *ServerContext, identity string) string {
	t.Helper()
	authURL, err := sc.Registry().BeginLogin(identity)
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}
