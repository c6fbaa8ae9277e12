package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/giantswarm/mcp-oauth/storage/memory"
	"golang.org/x/oauth2"

	"github.com/teemow/spotify-mcp/internal/instrumentation"
	"github.com/teemow/spotify-mcp/internal/mcp/oauth"
	"github.com/teemow/spotify-mcp/internal/spotify"
)

// Options configures a ServerContext.
type Options struct {
	// OAuth holds the Spotify credentials and public base URL
	OAuth oauth.Config

	// APIBaseURL overrides the Spotify Web API root. Empty means
	// spotify.DefaultAPIBaseURL.
	APIBaseURL string

	// DefaultIdentity is used by tools when the caller omits the email
	// argument. Only the stdio transport sets it.
	DefaultIdentity string

	// LoginWaitTimeout and LoginPollInterval tune the stdio login wait.
	LoginWaitTimeout  time.Duration
	LoginPollInterval time.Duration

	// Instrumentation is optional. Nil disables metrics and tool auditing.
	Instrumentation *instrumentation.Provider
	ToolAudit       *instrumentation.AuditLogger

	Logger *slog.Logger
}

// ServerContext owns every per-process component: the pending login
// registry, the token store and the gate built on top of them. Tool handlers
// and HTTP handlers receive it explicitly.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	config          oauth.Config
	defaultIdentity string

	backend     *memory.Store
	registry    *oauth.PendingAuthRegistry
	tokens      *oauth.TokenStore
	exchanger   *oauth.Exchanger
	gate        *oauth.Gate
	waiter      *oauth.LoginWaiter
	rateLimiter *oauth.RateLimiter
	sessions    *SessionRegistry

	metrics   *instrumentation.Metrics
	toolAudit *instrumentation.AuditLogger
	authAudit *oauth.AuditLogger
	logger    *slog.Logger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext validates opts and wires all components.
func NewServerContext(ctx context.Context, opts Options) (*ServerContext, error) {
	cfg := opts.OAuth
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid OAuth configuration: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var metrics *instrumentation.Metrics
	if opts.Instrumentation != nil {
		metrics = opts.Instrumentation.Metrics()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	oauth2Config := cfg.OAuth2Config()
	backend := memory.New()
	tokens := oauth.NewTokenStore(backend, logger)
	exchanger := oauth.NewExchanger(oauth2Config, cfg.HTTPClient)
	authAudit := oauth.NewAuditLogger(logger)

	apiBaseURL := opts.APIBaseURL
	httpClient := cfg.HTTPClient
	newClient := func(ctx context.Context, token *oauth2.Token) *spotify.Client {
		if httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		}
		clientOpts := []spotify.Option{spotify.WithMetrics(metrics), spotify.WithLogger(logger)}
		if apiBaseURL != "" {
			clientOpts = append(clientOpts, spotify.WithBaseURL(apiBaseURL))
		}
		return spotify.NewClient(ctx, token, clientOpts...)
	}

	gate := oauth.NewGate(oauth.GateConfig{
		Tokens:    tokens,
		Refresher: exchanger,
		BaseURL:   cfg.BaseURL,
		NewClient: newClient,
		Metrics:   metrics,
		Audit:     authAudit,
		Logger:    logger,
	})

	rateCfg := cfg.RateLimit
	if rateCfg.Rate == 0 && rateCfg.Burst == 0 {
		rateCfg.Rate = oauth.DefaultRateLimitRate
		rateCfg.Burst = oauth.DefaultRateLimitBurst
	}
	var rateLimiter *oauth.RateLimiter
	if rateCfg.Rate > 0 {
		rateLimiter = oauth.NewRateLimiter(rateCfg.Rate, rateCfg.Burst, rateCfg.TrustProxy, authAudit)
	}

	return &ServerContext{
		ctx:             shutdownCtx,
		cancel:          cancel,
		config:          cfg,
		defaultIdentity: opts.DefaultIdentity,
		backend:         backend,
		registry:        oauth.NewPendingAuthRegistry(oauth2Config, cfg.PendingAuthTTL, logger),
		tokens:          tokens,
		exchanger:       exchanger,
		gate:            gate,
		waiter:          oauth.NewLoginWaiter(tokens, opts.LoginWaitTimeout, opts.LoginPollInterval),
		rateLimiter:     rateLimiter,
		sessions:        NewSessionRegistry(logger),
		metrics:         metrics,
		toolAudit:       opts.ToolAudit,
		authAudit:       authAudit,
		logger:          logger,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Config returns the effective OAuth configuration.
func (sc *ServerContext) Config() oauth.Config {
	return sc.config
}

// DefaultIdentity returns the identity tools fall back to, or "".
func (sc *ServerContext) DefaultIdentity() string {
	return sc.defaultIdentity
}

// Registry returns the pending login registry.
func (sc *ServerContext) Registry() *oauth.PendingAuthRegistry {
	return sc.registry
}

// Tokens returns the token store.
func (sc *ServerContext) Tokens() *oauth.TokenStore {
	return sc.tokens
}

// Exchanger returns the authorization-code exchanger.
func (sc *ServerContext) Exchanger() *oauth.Exchanger {
	return sc.exchanger
}

// Gate returns the authentication gate used by tools.
func (sc *ServerContext) Gate() *oauth.Gate {
	return sc.gate
}

// LoginWaiter returns the waiter used by the stdio transport.
func (sc *ServerContext) LoginWaiter() *oauth.LoginWaiter {
	return sc.waiter
}

// RateLimiter returns the auth endpoint limiter. It is nil when disabled.
func (sc *ServerContext) RateLimiter() *oauth.RateLimiter {
	return sc.rateLimiter
}

// Sessions returns the MCP session to identity bindings.
func (sc *ServerContext) Sessions() *SessionRegistry {
	return sc.sessions
}

// Metrics returns the metrics recorder. A nil recorder is valid.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// ToolAudit returns the tool audit logger. A nil logger is valid.
func (sc *ServerContext) ToolAudit() *instrumentation.AuditLogger {
	return sc.toolAudit
}

// AuthAudit returns the OAuth audit logger.
func (sc *ServerContext) AuthAudit() *oauth.AuditLogger {
	return sc.authAudit
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Shutdown stops background cleanup and cancels the server context. It is
// safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true

	sc.registry.Stop()
	sc.rateLimiter.Stop()
	sc.backend.Stop()
	sc.cancel()

	return nil
}

// IsShutdown returns whether the server is shutting down
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}
