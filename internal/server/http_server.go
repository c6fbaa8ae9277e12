package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/spotify-mcp/internal/logging"
)

// Transport names accepted by NewHTTPServer.
const (
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"

	// TransportAuthOnly serves only /login, /callback and health. The stdio
	// transport runs it alongside the stdin/stdout MCP session.
	TransportAuthOnly = "auth-only"
)

// DefaultAddr is the default listen address for the HTTP server.
const DefaultAddr = ":3000"

const (
	defaultReadHeaderTimeout = 10 * time.Second
	defaultWriteTimeout      = 10 * time.Second
	defaultIdleTimeout       = 120 * time.Second
)

// HTTPServer serves the login flow and, for the network transports, the MCP
// endpoints on one listener.
type HTTPServer struct {
	sc         *ServerContext
	mcpServer  *mcpserver.MCPServer
	transport  string
	health     *HealthChecker
	httpServer *http.Server
}

// NewHTTPServer creates a server for the given transport.
func NewHTTPServer(sc *ServerContext, mcpServer *mcpserver.MCPServer, transport string) (*HTTPServer, error) {
	switch transport {
	case TransportSSE, TransportStreamableHTTP:
		if mcpServer == nil {
			return nil, fmt.Errorf("MCP server is required for %s transport", transport)
		}
	case TransportAuthOnly:
	default:
		return nil, fmt.Errorf("unsupported server type: %s", transport)
	}

	return &HTTPServer{
		sc:        sc,
		mcpServer: mcpServer,
		transport: transport,
		health:    NewHealthChecker(sc),
	}, nil
}

// Health returns the health checker so callers can flip readiness during
// shutdown.
func (s *HTTPServer) Health() *HealthChecker {
	return s.health
}

// Handler builds the full middleware chain and route table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	NewAuthHandler(s.sc).Register(mux)
	s.health.RegisterHealthEndpoints(mux)

	switch s.transport {
	case TransportSSE:
		sseServer := mcpserver.NewSSEServer(s.mcpServer,
			mcpserver.WithBaseURL(s.sc.Config().BaseURL),
			mcpserver.WithSSEEndpoint("/sse"),
			mcpserver.WithMessageEndpoint("/messages"),
		)
		mux.Handle("/sse", requireEmail(sseServer.SSEHandler()))
		mux.Handle("/messages", sseServer.MessageHandler())

	case TransportStreamableHTTP:
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(s.mcpServer,
			mcpserver.WithEndpointPath("/mcp"),
			mcpserver.WithHTTPContextFunc(identityFromQuery),
		))
	}

	var handler http.Handler = mux
	handler = instrumentationMiddleware(s.sc.Metrics(), handler)
	handler = requestIDMiddleware(handler)
	if s.sc.Metrics() != nil {
		handler = otelhttp.NewHandler(handler, "spotify-mcp")
	}
	return handler
}

// Start listens on addr and blocks until the server stops.
func (s *HTTPServer) Start(addr string) error {
	cfg := s.sc.Config()
	if err := validateHTTPSRequirement(cfg.BaseURL); err != nil {
		if cfg.Production {
			return err
		}
		s.sc.Logger().Warn("Base URL is not HTTPS, only use this for development", logging.Err(err))
	}

	if addr == "" {
		addr = DefaultAddr
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}
	if s.transport == TransportSSE {
		// SSE responses stay open for the whole session.
		s.httpServer.WriteTimeout = 0
	}

	s.sc.Logger().Info("Starting HTTP server", "addr", addr, "transport", s.transport)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// requireEmail rejects SSE connections that do not name an identity and
// puts the identity in the request context, where the session registration
// hook picks it up.
func requireEmail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		if email == "" {
			http.Error(w, "Missing email parameter in /sse endpoint", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), email)))
	})
}

// identityFromQuery carries ?email= of a streamable HTTP request into the
// MCP request context.
func identityFromQuery(ctx context.Context, r *http.Request) context.Context {
	if email := r.URL.Query().Get("email"); email != "" {
		return WithIdentity(ctx, email)
	}
	return ctx
}

// validateHTTPSRequirement allows HTTP only for loopback addresses
// (localhost, 127.0.0.1, ::1).
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth requires HTTPS for production (got: %s). Use HTTPS or localhost for development", baseURL)
		}
	} else if u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}

	return nil
}
