package server

import (
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/teemow/spotify-mcp/internal/instrumentation"
	"github.com/teemow/spotify-mcp/internal/logging"
	"github.com/teemow/spotify-mcp/internal/mcp/oauth"
)

// AuthHandler serves the browser half of the login flow.
type AuthHandler struct {
	sc *ServerContext
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(sc *ServerContext) *AuthHandler {
	return &AuthHandler{sc: sc}
}

// Register mounts /login and /callback behind the per-IP rate limiter.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	limiter := h.sc.RateLimiter()
	mux.Handle("GET /login", limiter.Middleware(http.HandlerFunc(h.ServeLogin)))
	mux.Handle("GET /callback", limiter.Middleware(http.HandlerFunc(h.ServeCallback)))
}

// ServeLogin issues a fresh state for ?email= and renders the page linking
// to Spotify's consent screen. A previous pending login for the same
// identity is invalidated.
func (h *AuthHandler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithOperation(h.sc.Logger(), "login")

	identity := r.URL.Query().Get("email")
	if identity == "" {
		renderError(w, logger, http.StatusBadRequest, errorPage{
			Title:   "Missing email",
			Message: "Missing email parameter.",
			Icon:    iconMissing,
		})
		return
	}

	authURL, err := h.sc.Registry().BeginLogin(identity)
	if err != nil {
		logger.Error("Failed to start login", logging.UserHash(identity), logging.Err(err))
		renderError(w, logger, http.StatusInternalServerError, errorPage{
			Title:   "Login unavailable",
			Message: "Failed to start the Spotify login. Please try again.",
			Icon:    iconExchange,
		})
		return
	}

	h.sc.AuthAudit().LogLoginStarted(identity, h.clientIP(r))
	logger.Info("Login started", logging.UserHash(identity))

	renderPage(w, logger, http.StatusOK, pageAuth, authPage{Identity: identity, AuthURL: authURL})
}

// ServeCallback completes the flow Spotify redirects back to. The checks run
// in a fixed order: provider error, state, code, then the exchange.
func (h *AuthHandler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.WithOperation(h.sc.Logger(), "callback")
	metrics := h.sc.Metrics()
	audit := h.sc.AuthAudit()
	ip := h.clientIP(r)
	q := r.URL.Query()

	if reason := q.Get("error"); reason != "" {
		identity, _, _ := oauth.SplitState(q.Get("state"))
		err := &oauth.AuthorizationDeniedError{Reason: reason}
		logger.Warn("Authorization denied", logging.UserHash(identity), logging.Err(err))
		metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultDenied)
		audit.LogAuthFailure(oauth.AuditEventAuthDenied, identity, ip, reason)
		h.fail(w, err, iconDenied, "Authorization failed", "Authorization failed: "+reason)
		return
	}

	identity, err := h.sc.Registry().Verify(q.Get("state"))
	if err != nil {
		metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultState)
		audit.LogAuthFailure(oauth.AuditEventStateVerification, "", ip, err.Error())
		h.fail(w, err, iconState, "Security check failed", "State verification failed.")
		return
	}
	logger = logging.WithIdentity(logger, identity)

	code := q.Get("code")
	if code == "" {
		logger.Warn("Callback without authorization code")
		metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		audit.LogAuthFailure(oauth.AuditEventTokenExchangeFailure, identity, ip, "missing code")
		h.fail(w, oauth.ErrBadRequest, iconMissing, "Missing authorization code", "No authorization code received.")
		return
	}

	tok, err := h.sc.Exchanger().ExchangeCode(ctx, code)
	if err == nil {
		err = h.sc.Tokens().Commit(ctx, identity, tok)
	}
	if err != nil {
		logger.Error("Token exchange failed", logging.Err(err))
		metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		audit.LogAuthFailure(oauth.AuditEventTokenExchangeFailure, identity, ip, err.Error())
		h.fail(w, err, iconExchange, "Token exchange failed",
			"Failed to exchange authorization code for tokens: "+err.Error())
		return
	}

	metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	audit.LogAuthSuccess(identity, ip, grantedScope(tok))
	logger.Info("Authentication completed", slog.String("access_token", logging.SanitizeToken(tok.AccessToken)))

	renderPage(w, logger, http.StatusOK, pageSuccess, successPage{Identity: identity})
}

// fail renders an error page with the status mapped from err.
func (h *AuthHandler) fail(w http.ResponseWriter, err error, icon, title, message string) {
	renderError(w, h.sc.Logger(), oauth.ToOAuthError(err).Status, errorPage{Title: title, Message: message, Icon: icon})
}

func (h *AuthHandler) clientIP(r *http.Request) string {
	return oauth.ClientIP(r, h.sc.Config().RateLimit.TrustProxy)
}

func grantedScope(tok *oauth2.Token) string {
	scope, _ := tok.Extra("scope").(string)
	return scope
}
