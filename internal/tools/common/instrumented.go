package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/spotify-mcp/internal/instrumentation"
	"github.com/teemow/spotify-mcp/internal/server"
)

// ToolHandler is the mcp-go tool handler signature.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// OutcomeFailed marks an invocation as failed even though the tool returned
// a text result.
const OutcomeFailed = "failed"

type outcomeKey struct{}

type outcomeHolder struct {
	outcome string
}

// RecordOutcome lets a handler report the gate outcome to the wrapper. It
// does nothing outside InstrumentedToolHandler.
func RecordOutcome(ctx context.Context, outcome string) {
	if h, ok := ctx.Value(outcomeKey{}).(*outcomeHolder); ok {
		h.outcome = outcome
	}
}

// InstrumentedToolHandler wraps a tool handler with a span, metrics and
// audit logging.
//
// Usage:
//
//	s.AddTool(tool, common.InstrumentedToolHandler("now-playing", instrumentation.OperationCurrentlyPlaying, sc, handler))
func InstrumentedToolHandler(toolName, operation string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		identity := GetIdentityFromArgs(ctx, sc, request.GetArguments())

		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		holder := &outcomeHolder{}
		ctx = context.WithValue(ctx, outcomeKey{}, holder)

		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithUser(identity).
			WithOperation(operation).
			WithSpanContext(ctx)

		result, err := handler(ctx, request)

		success := err == nil && (result == nil || !result.IsError) && holder.outcome != OutcomeFailed
		invocation.WithOutcome(holder.outcome).Complete(success, err)
		if success {
			instrumentation.SetSpanSuccess(span)
		} else {
			instrumentation.SetSpanError(span, err)
		}

		sc.Metrics().RecordToolInvocation(ctx, toolName, invocation.Status(),
			instrumentation.ExtractUserDomain(identity), time.Since(start))
		sc.ToolAudit().LogToolInvocation(invocation)

		return result, err
	}
}
