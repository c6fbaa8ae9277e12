package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/spotify-mcp/internal/mcp/oauth"
	"github.com/teemow/spotify-mcp/internal/spotify"
)

func serve(t *testing.T, sc *ServerContext, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewAuthHandler(sc).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServeLogin(t *testing.T) {
	sc := newTestServerContext(t, newFakeAccounts(t).URL, "")

	rec := serve(t, sc, "/login?email="+url.QueryEscape(testIdentity))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	body := rec.Body.String()
	assert.Contains(t, body, spotify.AuthURL)
	assert.Contains(t, body, testIdentity)
	assert.Equal(t, 1, sc.Registry().Len())
}

func TestServeLogin_MissingEmail(t *testing.T) {
	sc := newTestServerContext(t, newFakeAccounts(t).URL, "")

	rec := serve(t, sc, "/login")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing email parameter.")
	assert.Equal(t, 0, sc.Registry().Len())
}

func TestServeCallback_Errors(t *testing.T) {
	tests := []struct {
		name       string
		query      func(state string) url.Values
		wantStatus int
		wantIcon   string
		wantText   string
	}{
		{
			name: "provider error",
			query: func(state string) url.Values {
				return url.Values{"error": {"access_denied"}, "state": {state}}
			},
			wantStatus: http.StatusBadRequest,
			wantIcon:   iconDenied,
			wantText:   "Authorization failed: access_denied",
		},
		{
			name: "missing state",
			query: func(string) url.Values {
				return url.Values{"code": {"good"}}
			},
			wantStatus: http.StatusBadRequest,
			wantIcon:   iconState,
			wantText:   "State verification failed.",
		},
		{
			name: "state without separator",
			query: func(string) url.Values {
				return url.Values{"code": {"good"}, "state": {"nocolon"}}
			},
			wantStatus: http.StatusBadRequest,
			wantIcon:   iconState,
			wantText:   "State verification failed.",
		},
		{
			name: "state for another identity",
			query: func(state string) url.Values {
				_, random, _ := oauth.SplitState(state)
				return url.Values{"code": {"good"}, "state": {oauth.ComposeState("mallory@example.com", random)}}
			},
			wantStatus: http.StatusBadRequest,
			wantIcon:   iconState,
			wantText:   "State verification failed.",
		},
		{
			name: "missing code",
			query: func(state string) url.Values {
				return url.Values{"state": {state}}
			},
			wantStatus: http.StatusBadRequest,
			wantIcon:   iconMissing,
			wantText:   "No authorization code received.",
		},
		{
			name: "exchange rejected",
			query: func(state string) url.Values {
				return url.Values{"code": {"bad"}, "state": {state}}
			},
			wantStatus: http.StatusInternalServerError,
			wantIcon:   iconExchange,
			wantText:   "Failed to exchange authorization code for tokens:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := newTestServerContext(t, newFakeAccounts(t).URL, "")
			state := beginLogin(t, sc, testIdentity)

			rec := serve(t, sc, "/callback?"+tt.query(state).Encode())

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantIcon)
			assert.Contains(t, rec.Body.String(), tt.wantText)
			assert.False(t, sc.Tokens().IsAuthenticated(context.Background(), testIdentity))
		})
	}
}

func TestServeCallback_StateIsOneShot(t *testing.T) {
	sc := newTestServerContext(t, newFakeAccounts(t).URL, "")
	state := beginLogin(t, sc, testIdentity)
	target := "/callback?" + url.Values{"code": {"good"}, "state": {state}}.Encode()

	require.Equal(t, http.StatusOK, serve(t, sc, target).Code)

	replay := serve(t, sc, target)
	assert.Equal(t, http.StatusBadRequest, replay.Code)
	assert.Contains(t, replay.Body.String(), "State verification failed.")
}

func TestServeCallback_SecondLoginInvalidatesFirst(t *testing.T) {
	sc := newTestServerContext(t, newFakeAccounts(t).URL, "")
	first := beginLogin(t, sc, testIdentity)
	second := beginLogin(t, sc, testIdentity)

	rec := serve(t, sc, "/callback?"+url.Values{"code": {"good"}, "state": {first}}.Encode())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, sc, "/callback?"+url.Values{"code": {"good"}, "state": {second}}.Encode())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginCallbackThenProtectedCall(t *testing.T) {
	var calls int
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer api.Close()

	sc := newTestServerContext(t, newFakeAccounts(t).URL, api.URL)
	ctx := context.Background()

	// Unauthenticated: the gate hands back the login link without calling Spotify.
	res := sc.Gate().Run(ctx, testIdentity, func(ctx context.Context, c *spotify.Client) error {
		_, err := c.CurrentlyPlaying(ctx)
		return err
	})
	require.Equal(t, oauth.OutcomeNeedsLogin, res.Outcome)
	assert.Equal(t, testBaseURL+"/login?email=jane%40example.com", res.LoginURL)
	assert.Zero(t, calls)

	require.Equal(t, http.StatusOK, serve(t, sc, "/login?email="+url.QueryEscape(testIdentity)).Code)
	state := beginLogin(t, sc, testIdentity)
	rec := serve(t, sc, "/callback?"+url.Values{"code": {"good"}, "state": {state}}.Encode())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authentication Successful!")

	require.True(t, sc.Tokens().IsAuthenticated(ctx, testIdentity))
	rec2, ok := sc.Tokens().Get(ctx, testIdentity)
	require.True(t, ok)
	assert.Equal(t, "refresh-1", rec2.Token.RefreshToken)

	res = sc.Gate().Run(ctx, testIdentity, func(ctx context.Context, c *spotify.Client) error {
		cp, err := c.CurrentlyPlaying(ctx)
		if cp != nil {
			return errors.New("expected nothing playing")
		}
		return err
	})
	assert.Equal(t, oauth.OutcomeDone, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, calls)
}
