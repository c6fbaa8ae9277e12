package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teemow/spotify-mcp/internal/instrumentation"
)

const (
	// DefaultMetricsAddr is the default address for the metrics server.
	DefaultMetricsAddr = ":9090"

	// DefaultMetricsReadTimeout is the default read timeout for the metrics server.
	DefaultMetricsReadTimeout = 10 * time.Second

	// DefaultMetricsWriteTimeout is the default write timeout for the metrics server.
	DefaultMetricsWriteTimeout = 10 * time.Second

	// DefaultMetricsIdleTimeout is the default idle timeout for the metrics server.
	DefaultMetricsIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful server shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// MetricsServerConfig holds configuration for the metrics server.
type MetricsServerConfig struct {
	// Addr is the address to bind the metrics server to (e.g., ":9090").
	Addr string

	// InstrumentationProvider must be enabled with the Prometheus exporter.
	InstrumentationProvider *instrumentation.Provider

	Logger *slog.Logger
}

// MetricsServer serves Prometheus metrics on a port separate from the
// login and MCP endpoints.
type MetricsServer struct {
	httpServer *http.Server
	addr       string
	logger     *slog.Logger
}

// NewMetricsServer validates config and prepares the /metrics route.
func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	if config.Addr == "" {
		config.Addr = DefaultMetricsAddr
	}
	if config.InstrumentationProvider == nil {
		return nil, errors.New("instrumentation provider is required for metrics server")
	}
	if !config.InstrumentationProvider.Enabled() {
		return nil, errors.New("instrumentation provider is not enabled")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	mux := http.NewServeMux()
	// The OpenTelemetry Prometheus exporter registers with the default
	// registry, which promhttp.Handler exposes.
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &MetricsServer{
		addr:   config.Addr,
		logger: config.Logger,
		httpServer: &http.Server{
			Addr:              config.Addr,
			Handler:           mux,
			ReadHeaderTimeout: DefaultMetricsReadTimeout,
			WriteTimeout:      DefaultMetricsWriteTimeout,
			IdleTimeout:       DefaultMetricsIdleTimeout,
		},
	}, nil
}

// Handler returns the metrics route table.
func (s *MetricsServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens on the configured address and blocks.
func (s *MetricsServer) Start() error {
	s.logger.Info("Starting metrics server", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on l and blocks.
func (s *MetricsServer) Serve(l net.Listener) error {
	s.logger.Info("Starting metrics server", "addr", l.Addr().String())
	return s.httpServer.Serve(l)
}

// Shutdown gracefully shuts down the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down metrics server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured address for the metrics server.
func (s *MetricsServer) Addr() string {
	return s.addr
}
