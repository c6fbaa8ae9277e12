package oauth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/teemow/spotify-mcp/internal/instrumentation"
	"github.com/teemow/spotify-mcp/internal/logging"
	"github.com/teemow/spotify-mcp/internal/spotify"
)

// Outcome is the result class of a gated operation.
type Outcome int

const (
	// OutcomeDone means the operation ran and succeeded.
	OutcomeDone Outcome = iota
	// OutcomeRetry means the token was refreshed after a 401; the caller
	// should ask the user to try again.
	OutcomeRetry
	// OutcomeNeedsLogin means the user has to (re)authorize via LoginURL.
	OutcomeNeedsLogin
	// OutcomeFailed means the operation failed for a non-auth reason.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeRetry:
		return "retry"
	case OutcomeNeedsLogin:
		return "needs_login"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Readiness is the answer of EnsureReady: either a client or a login URL.
type Readiness struct {
	Client   *spotify.Client
	LoginURL string
}

// Ready reports whether a client was issued.
func (r Readiness) Ready() bool {
	return r.Client != nil
}

// Recovery is the answer of Recover.
type Recovery struct {
	Refreshed bool
	LoginURL  string
}

// Result is what Run hands back to the tool layer.
type Result struct {
	Outcome  Outcome
	LoginURL string
	Err      error
}

// Refresher refreshes token material. *Exchanger implements it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenMaterial, error)
}

// ClientFactory builds a Spotify client for one call.
type ClientFactory func(ctx context.Context, token *oauth2.Token) *spotify.Client

// GateConfig wires a Gate.
type GateConfig struct {
	Tokens    *TokenStore
	Refresher Refresher
	BaseURL   string

	// NewClient defaults to spotify.NewClient with Metrics attached.
	NewClient ClientFactory

	Metrics *instrumentation.Metrics
	Audit   *AuditLogger
	Logger  *slog.Logger
}

// Gate decides, per identity, whether a protected call may proceed. Tokens
// are never checked up front; a 401 from Spotify triggers one refresh.
type Gate struct {
	tokens    *TokenStore
	refresher Refresher
	baseURL   string
	newClient ClientFactory
	metrics   *instrumentation.Metrics
	audit     *AuditLogger
	logger    *slog.Logger
}

// NewGate creates a Gate.
func NewGate(cfg GateConfig) *Gate {
	g := &Gate{
		tokens:    cfg.Tokens,
		refresher: cfg.Refresher,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		newClient: cfg.NewClient,
		metrics:   cfg.Metrics,
		audit:     cfg.Audit,
		logger:    cfg.Logger,
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.newClient == nil {
		metrics := cfg.Metrics
		g.newClient = func(ctx context.Context, token *oauth2.Token) *spotify.Client {
			return spotify.NewClient(ctx, token, spotify.WithMetrics(metrics))
		}
	}
	return g
}

// LoginURL is the link a user follows to (re)authorize identity.
func (g *Gate) LoginURL(identity string) string {
	return g.baseURL + "/login?email=" + url.QueryEscape(identity)
}

// IsAuthenticated reports the token store's local view.
func (g *Gate) IsAuthenticated(ctx context.Context, identity string) bool {
	return g.tokens.IsAuthenticated(ctx, identity)
}

// EnsureReady returns a fresh client for identity, or a login URL when the
// identity has no usable token.
func (g *Gate) EnsureReady(ctx context.Context, identity string) Readiness {
	if !g.tokens.IsAuthenticated(ctx, identity) {
		return Readiness{LoginURL: g.LoginURL(identity)}
	}

	rec, ok := g.tokens.Get(ctx, identity)
	if !ok {
		return Readiness{LoginURL: g.LoginURL(identity)}
	}

	return Readiness{Client: g.newClient(ctx, rec.Token)}
}

// Recover handles a 401. On a successful refresh the new material is
// committed; otherwise the identity is cleared and must log in again.
func (g *Gate) Recover(ctx context.Context, identity string) Recovery {
	logger := logging.WithIdentity(g.logger, identity)

	rec, ok := g.tokens.Get(ctx, identity)
	if !ok || rec.Token.RefreshToken == "" {
		logger.Info("No refresh token, login required")
		g.fail(ctx, identity, ErrNoRefreshToken)
		return Recovery{LoginURL: g.LoginURL(identity)}
	}

	tok, err := g.refresher.Refresh(ctx, rec.Token.RefreshToken)
	if err == nil {
		err = g.tokens.Commit(ctx, identity, tok)
	}
	if err != nil {
		logger.Warn("Token refresh failed", logging.Err(err))
		g.fail(ctx, identity, err)
		return Recovery{LoginURL: g.LoginURL(identity)}
	}

	g.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	g.audit.LogTokenRefreshed(identity, tok.RefreshToken != rec.Token.RefreshToken, nil)
	logger.Info("Token refreshed")

	return Recovery{Refreshed: true}
}

func (g *Gate) fail(ctx context.Context, identity string, err error) {
	g.tokens.MarkUnauthenticated(ctx, identity, true)
	g.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
	g.audit.LogTokenRefreshed(identity, false, err)
}

// Run executes op for identity under the gate contract. op is called at
// most once.
func (g *Gate) Run(ctx context.Context, identity string, op func(context.Context, *spotify.Client) error) Result {
	ready := g.EnsureReady(ctx, identity)
	if !ready.Ready() {
		return Result{Outcome: OutcomeNeedsLogin, LoginURL: ready.LoginURL}
	}

	err := op(ctx, ready.Client)
	switch {
	case err == nil:
		return Result{Outcome: OutcomeDone}
	case errors.Is(err, spotify.ErrUnauthorized):
		rec := g.Recover(ctx, identity)
		if rec.Refreshed {
			return Result{Outcome: OutcomeRetry, Err: err}
		}
		return Result{Outcome: OutcomeNeedsLogin, LoginURL: rec.LoginURL, Err: err}
	default:
		return Result{Outcome: OutcomeFailed, Err: err}
	}
}
