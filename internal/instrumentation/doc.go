// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for the spotify-mcp server.
//
// # Metrics
//
// Server/HTTP:
//   - http_requests_total: HTTP requests by method, path and status
//   - http_request_duration_seconds: HTTP request durations
//   - active_sessions: connected MCP sessions
//
// Spotify Web API:
//   - spotify_api_operations_total: calls by service, operation and status
//   - spotify_api_operation_duration_seconds: call durations
//
// OAuth:
//   - oauth_auth_total: callback completions by result
//   - oauth_token_refresh_total: refresh attempts by result
//
// MCP tools:
//   - mcp_tool_invocations_total: invocations by tool and status
//   - mcp_tool_duration_seconds: tool execution durations
//
// # Tracing
//
// Spans are created for MCP tool invocations (tool.<name>) and Spotify Web API
// calls (spotify.<service>.<operation>). Inbound HTTP spans come from otelhttp.
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT
//   - OTEL_TRACES_SAMPLER_ARG (default: 0.1)
//   - OTEL_SERVICE_NAME (default: spotify-mcp)
//   - METRICS_DETAILED_LABELS (default: false)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordToolInvocation(ctx, "now-playing", instrumentation.StatusSuccess, "", d)
package instrumentation
