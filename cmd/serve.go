package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/spotify-mcp/internal/browser"
	"github.com/teemow/spotify-mcp/internal/instrumentation"
	"github.com/teemow/spotify-mcp/internal/logging"
	"github.com/teemow/spotify-mcp/internal/mcp/oauth"
	"github.com/teemow/spotify-mcp/internal/resources"
	"github.com/teemow/spotify-mcp/internal/server"
	"github.com/teemow/spotify-mcp/internal/tools/player_tools"
)

const transportStdio = "stdio"

// shutdownTimeout bounds graceful shutdown of the HTTP listeners.
const shutdownTimeout = 30 * time.Second

// serveOptions collects every serve flag after environment fallbacks.
type serveOptions struct {
	Transport string
	HTTPAddr  string
	Email     string

	OAuth oauth.Config

	Debug     bool
	LogLevel  string
	LogFormat string

	MetricsEnabled bool
	MetricsAddr    string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Spotify MCP server",
		Long: `Start the MCP server exposing Spotify playback tools.

Transports:
  sse              GET /sse?email=<identity> and POST /messages (default)
  streamable-http  POST /mcp?email=<identity>
  stdio            single user; requires --email, opens the login page in a browser

All transports serve /login and /callback for the Spotify authorization
flow. Credentials come from SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadServeEnv(cmd, &opts); err != nil {
				return err
			}
			return runServe(cmd.Context(), opts)
		},
	}
	bindServeFlags(cmd, &opts)

	return cmd
}

func bindServeFlags(cmd *cobra.Command, opts *serveOptions) {
	cmd.Flags().StringVar(&opts.Transport, "transport", server.TransportSSE, "Transport type: sse, streamable-http or stdio. Can also use MCP_TRANSPORT env var.")
	cmd.Flags().StringVar(&opts.HTTPAddr, "http-addr", server.DefaultAddr, "HTTP listen address for the login flow and network transports. Can also use HTTP_ADDR env var.")
	cmd.Flags().StringVar(&opts.Email, "email", "", "Spotify identity used by the stdio transport. Can also use SPOTIFY_MCP_EMAIL env var.")

	cmd.Flags().StringVar(&opts.OAuth.ClientID, "client-id", "", "Spotify application client ID. Can also use SPOTIFY_CLIENT_ID env var.")
	cmd.Flags().StringVar(&opts.OAuth.ClientSecret, "client-secret", "", "Spotify application client secret. Can also use SPOTIFY_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&opts.OAuth.RedirectURI, "redirect-uri", "", "OAuth redirect URI registered with Spotify (default: {base-url}/callback). Can also use SPOTIFY_REDIRECT_URI env var.")
	cmd.Flags().StringVar(&opts.OAuth.BaseURL, "base-url", "", "Public base URL used in login links (default: http://localhost{http-addr}). Can also use MCP_BASE_URL env var.")
	cmd.Flags().BoolVar(&opts.OAuth.Production, "production", false, "Require HTTPS for the base URL and redirect URI. Can also use SPOTIFY_MCP_PRODUCTION env var.")

	cmd.Flags().Float64Var(&opts.OAuth.RateLimit.Rate, "rate-limit", oauth.DefaultRateLimitRate, "Requests per second per IP on /login and /callback (negative disables). Can also use RATE_LIMIT env var.")
	cmd.Flags().IntVar(&opts.OAuth.RateLimit.Burst, "rate-limit-burst", oauth.DefaultRateLimitBurst, "Burst size per IP on /login and /callback. Can also use RATE_LIMIT_BURST env var.")
	cmd.Flags().BoolVar(&opts.OAuth.RateLimit.TrustProxy, "trust-proxy", false, "Trust X-Forwarded-For and X-Real-IP. Only enable behind a trusted proxy. Can also use TRUST_PROXY env var.")

	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn or error. Can also use LOG_LEVEL env var.")
	cmd.Flags().StringVar(&opts.LogFormat, "log-format", string(logging.FormatText), "Log format: text or json. Can also use LOG_FORMAT env var.")

	cmd.Flags().BoolVar(&opts.MetricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")
}

// loadServeEnv fills opts from the environment wherever the corresponding
// flag was not set explicitly.
func loadServeEnv(cmd *cobra.Command, opts *serveOptions) error {
	var envOAuth oauth.Config
	if err := envdecode.Decode(&envOAuth); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("failed to read Spotify configuration from environment: %w", err)
	}

	flags := cmd.Flags()
	setString := func(flag string, dst *string, env string) {
		if !flags.Changed(flag) && env != "" {
			*dst = env
		}
	}

	setString("client-id", &opts.OAuth.ClientID, envOAuth.ClientID)
	setString("client-secret", &opts.OAuth.ClientSecret, envOAuth.ClientSecret)
	setString("redirect-uri", &opts.OAuth.RedirectURI, envOAuth.RedirectURI)
	setString("base-url", &opts.OAuth.BaseURL, envOAuth.BaseURL)
	if !flags.Changed("production") && envOAuth.Production {
		opts.OAuth.Production = true
	}

	setString("transport", &opts.Transport, os.Getenv("MCP_TRANSPORT"))
	setString("http-addr", &opts.HTTPAddr, os.Getenv("HTTP_ADDR"))
	setString("email", &opts.Email, os.Getenv("SPOTIFY_MCP_EMAIL"))
	setString("log-level", &opts.LogLevel, os.Getenv("LOG_LEVEL"))
	setString("log-format", &opts.LogFormat, os.Getenv("LOG_FORMAT"))
	setString("metrics-addr", &opts.MetricsAddr, os.Getenv("METRICS_ADDR"))

	if !flags.Changed("rate-limit") {
		if v := os.Getenv("RATE_LIMIT"); v != "" {
			rate, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid RATE_LIMIT %q: %w", v, err)
			}
			opts.OAuth.RateLimit.Rate = rate
		}
	}
	if !flags.Changed("rate-limit-burst") {
		if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
			burst, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid RATE_LIMIT_BURST %q: %w", v, err)
			}
			opts.OAuth.RateLimit.Burst = burst
		}
	}
	if !flags.Changed("trust-proxy") && os.Getenv("TRUST_PROXY") == "true" {
		opts.OAuth.RateLimit.TrustProxy = true
	}
	if !flags.Changed("metrics-enabled") {
		if v := os.Getenv("METRICS_ENABLED"); v != "" {
			opts.MetricsEnabled = v == "true"
		}
	}

	if opts.OAuth.BaseURL == "" {
		opts.OAuth.BaseURL = defaultBaseURL(opts.HTTPAddr)
	}
	return nil
}

// defaultBaseURL derives a loopback base URL from a listen address.
func defaultBaseURL(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		_, port, _ = net.SplitHostPort(server.DefaultAddr)
	}
	return "http://localhost:" + port
}

func validateServeOptions(opts serveOptions) error {
	switch opts.Transport {
	case transportStdio:
		if opts.Email == "" {
			return errors.New("--email (or SPOTIFY_MCP_EMAIL) is required for the stdio transport")
		}
	case server.TransportSSE, server.TransportStreamableHTTP:
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: sse, streamable-http, stdio)", opts.Transport)
	}
	return nil
}

func runServe(ctx context.Context, opts serveOptions) error {
	if err := validateServeOptions(opts); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logging.New(os.Stderr, logging.Options{
		Level:  opts.LogLevel,
		Format: logging.Format(opts.LogFormat),
		Debug:  opts.Debug,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	shutdownCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("Error during instrumentation shutdown", logging.Err(err))
		}
	}()

	var metricsServer *server.MetricsServer
	if opts.Transport != transportStdio && opts.MetricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.MetricsAddr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped", logging.Err(err))
			}
		}()
		defer shutdownWithTimeout(logger, "metrics server", metricsServer.Shutdown)
	}

	srvOpts := server.Options{
		OAuth:     opts.OAuth,
		ToolAudit: instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging),
		Logger:    logger,
	}
	if provider.Enabled() {
		srvOpts.Instrumentation = provider
	}
	if opts.Transport == transportStdio {
		srvOpts.DefaultIdentity = opts.Email
	}

	serverContext, err := server.NewServerContext(shutdownCtx, srvOpts)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("Error during server context shutdown", logging.Err(err))
		}
	}()

	mcpSrv, err := newMCPServer(serverContext, player_tools.Config{
		Interactive: opts.Transport == transportStdio,
		OpenBrowser: browser.Open,
	})
	if err != nil {
		return err
	}

	switch opts.Transport {
	case transportStdio:
		return runStdioServer(shutdownCtx, mcpSrv, serverContext, opts.HTTPAddr)
	default:
		return runHTTPServer(shutdownCtx, mcpSrv, serverContext, opts.Transport, opts.HTTPAddr)
	}
}

// newMCPServer creates the MCP server with session hooks, tools and
// resources.
func newMCPServer(sc *server.ServerContext, toolCfg player_tools.Config) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("spotify-mcp", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
		mcpserver.WithHooks(server.NewHooks(sc)),
	)
	if err := player_tools.RegisterPlayerTools(mcpSrv, sc, toolCfg); err != nil {
		return nil, fmt.Errorf("failed to register player tools: %w", err)
	}
	if err := resources.RegisterAuthResources(mcpSrv, sc); err != nil {
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}
	return mcpSrv, nil
}

// runStdioServer speaks MCP on stdin/stdout while the login flow is served
// over HTTP in the background.
func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, addr string) error {
	authServer, err := server.NewHTTPServer(sc, nil, server.TransportAuthOnly)
	if err != nil {
		return err
	}
	go func() {
		if err := authServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sc.Logger().Error("Login server stopped", logging.Err(err))
		}
	}()
	defer shutdownWithTimeout(sc.Logger(), "login server", authServer.Shutdown)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}

func runHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, transport, addr string) error {
	httpServer, err := server.NewHTTPServer(sc, mcpSrv, transport)
	if err != nil {
		return err
	}

	logger := sc.Logger()
	logger.Info("Spotify MCP server starting",
		"transport", transport,
		"addr", addr,
		"base_url", sc.Config().BaseURL,
		"redirect_uri", sc.Config().RedirectURI,
	)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

func shutdownWithTimeout(logger *slog.Logger, name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("Error during shutdown", "component", name, logging.Err(err))
	}
}
