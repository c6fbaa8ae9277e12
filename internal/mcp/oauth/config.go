package oauth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/spotify-mcp/internal/spotify"
)

// Config holds the Spotify application credentials and the server's
// public address. Fields carry envdecode tags so cmd can fill them straight
// from the environment.
type Config struct {
	// ClientID is the Spotify application client ID
	ClientID string `env:"SPOTIFY_CLIENT_ID"`

	// ClientSecret is the Spotify application client secret
	ClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`

	// RedirectURI must match the URI registered in the Spotify dashboard.
	// Default: {BaseURL}/callback
	RedirectURI string `env:"SPOTIFY_REDIRECT_URI"`

	// BaseURL is used to build the login links shown to users
	BaseURL string `env:"MCP_BASE_URL"`

	// Production requires HTTPS for BaseURL and RedirectURI
	Production bool `env:"SPOTIFY_MCP_PRODUCTION"`

	// Scopes defaults to spotify.DefaultScopes
	Scopes []string

	// AuthURL and TokenURL default to the Spotify accounts service
	AuthURL  string
	TokenURL string

	// PendingAuthTTL is how long a login link stays valid.
	// Default: DefaultPendingAuthTTL
	PendingAuthTTL time.Duration

	// RateLimit configures per-IP limiting of the auth endpoints
	RateLimit RateLimitConfig

	// HTTPClient is used for token endpoint calls. Nil means http.DefaultClient.
	HTTPClient *http.Client
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is the number of requests per second allowed per IP (0 = no limit)
	Rate float64

	// Burst is the maximum burst size allowed per IP
	Burst int

	// TrustProxy indicates whether to trust X-Forwarded-For and X-Real-IP headers.
	// Only set to true if the server is behind a trusted proxy.
	TrustProxy bool
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.RedirectURI == "" && c.BaseURL != "" {
		c.RedirectURI = c.BaseURL + "/callback"
	}
	if len(c.Scopes) == 0 {
		c.Scopes = spotify.DefaultScopes
	}
	if c.AuthURL == "" {
		c.AuthURL = spotify.AuthURL
	}
	if c.TokenURL == "" {
		c.TokenURL = spotify.TokenURL
	}
	if c.PendingAuthTTL <= 0 {
		c.PendingAuthTTL = DefaultPendingAuthTTL
	}
}

// Validate checks required fields. It expects ApplyDefaults to have run.
func (c *Config) Validate() error {
	var errs []error
	if c.ClientID == "" {
		errs = append(errs, errors.New("SPOTIFY_CLIENT_ID is required"))
	}
	if c.ClientSecret == "" {
		errs = append(errs, errors.New("SPOTIFY_CLIENT_SECRET is required"))
	}
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	}
	for name, raw := range map[string]string{"base URL": c.BaseURL, "redirect URI": c.RedirectURI} {
		if raw == "" {
			continue
		}
		if err := validateURL(raw, c.Production); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func validateURL(raw string, production bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if production {
			return fmt.Errorf("%q must use https in production", raw)
		}
		return nil
	default:
		return fmt.Errorf("%q must use http or https", raw)
	}
}

// OAuth2Config builds the golang.org/x/oauth2 configuration for the
// Spotify accounts service. Client credentials go in the Basic auth header.
func (c *Config) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}
