package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHTTPSRequirement(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "valid HTTPS URL", baseURL: "https://mcp.example.com"},
		{name: "valid HTTP localhost", baseURL: "http://localhost:3000"},
		{name: "valid HTTP 127.0.0.1", baseURL: "http://127.0.0.1:3000"},
		{name: "valid HTTP ::1 (IPv6 loopback)", baseURL: "http://[::1]:3000"},
		{name: "invalid HTTP non-localhost", baseURL: "http://mcp.example.com", wantErr: true},
		{name: "invalid HTTP with localhost substring", baseURL: "http://localhost.example.com", wantErr: true},
		{name: "invalid HTTP with 127.0.0.1 in domain", baseURL: "http://127.0.0.1.example.com", wantErr: true},
		{name: "empty URL", baseURL: "", wantErr: true},
		{name: "invalid URL format", baseURL: "not a url", wantErr: true},
		{name: "invalid scheme", baseURL: "ftp://example.com", wantErr: true},
		{name: "HTTPS with path", baseURL: "https://mcp.example.com/api"},
		{name: "HTTPS with port", baseURL: "https://mcp.example.com:8443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHTTPSRequirement(tt.baseURL)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewHTTPServer(t *testing.T) {
	sc := newTestServerContext(t, newFakeAccounts(t).URL, "")
	mcpSrv := mcpserver.NewMCPServer("test", "0.0.0")

	tests := []struct {
		name      string
		mcpServer *mcpserver.MCPServer
		transport string
		wantErr   bool
	}{
		{name: "sse", mcpServer: mcpSrv, transport: TransportSSE},
		{name: "streamable-http", mcpServer: mcpSrv, transport: TransportStreamableHTTP},
		{name: "auth only without MCP server", transport: TransportAuthOnly},
		{name: "sse without MCP server", transport: TransportSSE, wantErr: true},
		{name: "unknown transport", mcpServer: mcpSrv, transport: "carrier-pigeon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHTTPServer(sc, tt.mcpServer, tt.transport)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func newTestHandler(t *testing.T, transport string) http.Handler {
	t.Helper()
	sc := newTestServerContext(t, newFakeAccounts(t).URL, "")
	var mcpSrv *mcpserver.MCPServer
	if transport != TransportAuthOnly {
		mcpSrv = mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(false))
	}
	s, err := NewHTTPServer(sc, mcpSrv, transport)
	require.NoError(t, err)
	return s.Handler()
}

func TestHTTPServer_SSERequiresEmail(t *testing.T) {
	handler := newTestHandler(t, TransportSSE)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sse", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing email parameter in /sse endpoint")
}

func TestHTTPServer_StreamableHTTPInitialize(t *testing.T) {
	handler := newTestHandler(t, TransportStreamableHTTP)

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp?email=jane%40example.com", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "serverInfo")
}

func TestHTTPServer_AuthOnlyRoutes(t *testing.T) {
	handler := newTestHandler(t, TransportAuthOnly)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{path: "/login?email=jane%40example.com", wantStatus: http.StatusOK},
		{path: "/healthz", wantStatus: http.StatusOK},
		{path: "/readyz", wantStatus: http.StatusOK},
		{path: "/mcp", wantStatus: http.StatusNotFound},
		{path: "/sse", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHTTPServer_RequestID(t *testing.T) {
	handler := newTestHandler(t, TransportAuthOnly)

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
		assert.NoError(t, err)
	})

	t.Run("propagated", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(RequestIDHeader, id)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
	})

	t.Run("garbage replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(RequestIDHeader, "<script>")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.NotEqual(t, "<script>", rec.Header().Get(RequestIDHeader))
	})
}

func TestRequestIDFromContext(t *testing.T) {
	var got string
	h := requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = RequestIDFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, got)
	assert.Equal(t, rec.Header().Get(RequestIDHeader), got)
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestIdentityFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/sse?email=jane%40example.com", nil)
	ctx := identityFromQuery(context.Background(), req)
	assert.Equal(t, "jane@example.com", IdentityFromContext(ctx))

	req = httptest.NewRequest(http.MethodGet, "/sse", nil)
	ctx = identityFromQuery(context.Background(), req)
	assert.Empty(t, IdentityFromContext(ctx))
}

func TestResponseWriter(t *testing.T) {
	t.Run("captures status code", func(t *testing.T) {
		rw := newResponseWriter(httptest.NewRecorder())
		rw.WriteHeader(http.StatusNotFound)
		assert.Equal(t, http.StatusNotFound, rw.statusCode)
	})

	t.Run("defaults to 200", func(t *testing.T) {
		rw := newResponseWriter(httptest.NewRecorder())
		assert.Equal(t, http.StatusOK, rw.statusCode)
	})

	t.Run("passes write header to underlying writer", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		rw := newResponseWriter(recorder)
		rw.WriteHeader(http.StatusCreated)
		assert.Equal(t, http.StatusCreated, recorder.Code)
	})

	t.Run("forwards flush", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		rw := newResponseWriter(recorder)
		rw.Flush()
		assert.True(t, recorder.Flushed)
	})
}

func TestInstrumentationMiddleware(t *testing.T) {
	t.Run("calls next handler when no metrics", func(t *testing.T) {
		called := false
		next := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) { called = true })

		instrumentationMiddleware(nil, next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.True(t, called)
	})

	t.Run("records with metrics", func(t *testing.T) {
		provider := createTestProvider(t)
		next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })

		rec := httptest.NewRecorder()
		instrumentationMiddleware(provider.Metrics(), next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})
}

func TestMetricPath(t *testing.T) {
	assert.Equal(t, "/callback", metricPath("/callback"))
	assert.Equal(t, "/healthz/detailed", metricPath("/healthz/detailed"))
	assert.Equal(t, "other", metricPath("/wp-admin"))
}
