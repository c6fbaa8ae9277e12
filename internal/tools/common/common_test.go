package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/spotify-mcp/internal/instrumentation"
	"github.com/teemow/spotify-mcp/internal/mcp/oauth"
	"github.com/teemow/spotify-mcp/internal/server"
)

func newTestServerContext(t *testing.T, defaultIdentity string, audit *instrumentation.AuditLogger) *server.ServerContext {
	t.Helper()
	sc, err := server.NewServerContext(context.Background(), server.Options{
		OAuth: oauth.Config{
			ClientID:     "id",
			ClientSecret: "secret",
			BaseURL:      "http://localhost:3000",
		},
		DefaultIdentity: defaultIdentity,
		ToolAudit:       audit,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func toolRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: "test_tool", Arguments: args}}
}

func TestGetIdentityFromArgs(t *testing.T) {
	tests := []struct {
		name            string
		defaultIdentity string
		ctx             context.Context
		args            map[string]any
		expected        string
	}{
		{
			name:     "explicit email",
			ctx:      context.Background(),
			args:     map[string]any{"email": "jane@example.com"},
			expected: "jane@example.com",
		},
		{
			name:            "explicit email beats default",
			defaultIdentity: "me@example.com",
			ctx:             context.Background(),
			args:            map[string]any{"email": "jane@example.com"},
			expected:        "jane@example.com",
		},
		{
			name:     "request identity",
			ctx:      server.WithIdentity(context.Background(), "sse@example.com"),
			args:     map[string]any{},
			expected: "sse@example.com",
		},
		{
			name:            "default identity",
			defaultIdentity: "me@example.com",
			ctx:             context.Background(),
			args:            nil,
			expected:        "me@example.com",
		},
		{
			name:     "non-string email ignored",
			ctx:      context.Background(),
			args:     map[string]any{"email": 123},
			expected: "",
		},
		{
			name:     "nothing",
			ctx:      context.Background(),
			args:     map[string]any{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := newTestServerContext(t, tt.defaultIdentity, nil)
			assert.Equal(t, tt.expected, GetIdentityFromArgs(tt.ctx, sc, tt.args))
		})
	}
}

func TestInstrumentedToolHandler(t *testing.T) {
	tests := []struct {
		name      string
		handler   ToolHandler
		wantErr   bool
		wantLog   string
		wantLevel string
	}{
		{
			name: "success",
			handler: func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				RecordOutcome(ctx, "done")
				return mcp.NewToolResultText("ok"), nil
			},
			wantLog:   "tool_executed",
			wantLevel: "INFO",
		},
		{
			name: "failed outcome with text result",
			handler: func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				RecordOutcome(ctx, OutcomeFailed)
				return mcp.NewToolResultText("❌ nope"), nil
			},
			wantLog:   "tool_failed",
			wantLevel: "WARN",
		},
		{
			name: "error result",
			handler: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultError("bad"), nil
			},
			wantLog:   "tool_failed",
			wantLevel: "WARN",
		},
		{
			name: "go error",
			handler: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return nil, errors.New("boom")
			},
			wantErr:   true,
			wantLog:   "tool_failed",
			wantLevel: "WARN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			audit := instrumentation.NewAuditLogger(slog.New(slog.NewTextHandler(&buf, nil)))
			sc := newTestServerContext(t, "", audit)

			wrapped := InstrumentedToolHandler("test_tool", instrumentation.OperationNext, sc, tt.handler)
			_, err := wrapped(context.Background(), toolRequest(map[string]any{"email": "jane@example.com"}))

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			out := buf.String()
			assert.Contains(t, out, tt.wantLog)
			assert.Contains(t, out, "level="+tt.wantLevel)
			assert.Contains(t, out, "user_domain=example.com")
			assert.Contains(t, out, "operation=next")
			assert.NotContains(t, out, "jane@example.com")
		})
	}
}

func TestInstrumentedToolHandler_NoInstrumentation(t *testing.T) {
	sc := newTestServerContext(t, "", nil)

	called := false
	wrapped := InstrumentedToolHandler("test_tool", instrumentation.OperationNext, sc,
		func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			called = true
			return mcp.NewToolResultText("ok"), nil
		})

	result, err := wrapped(context.Background(), toolRequest(nil))
	require.NoError(t, err)
	assert.True(t, called)
	assert.NotNil(t, result)
}

func TestRecordOutcome_OutsideWrapper(t *testing.T) {
	assert.NotPanics(t, func() { RecordOutcome(context.Background(), "done") })
}

func TestInstrumentedToolHandler_RegistersWithServer(t *testing.T) {
	sc := newTestServerContext(t, "", nil)
	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))

	s.AddTool(mcp.NewTool("test_tool"), InstrumentedToolHandler("test_tool", instrumentation.OperationNext, sc,
		func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("ok"), nil
		}))

	registered, ok := s.ListTools()["test_tool"]
	require.True(t, ok)
	result, err := registered.Handler(context.Background(), toolRequest(nil))
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "ok", text.Text)
}
