// Package server wires the Spotify login flow and the MCP transports onto
// one HTTP listener.
//
// ServerContext owns the per-process state: the pending login registry, the
// token store, the code exchanger and the authentication gate. Tools and HTTP
// handlers receive it explicitly; nothing is global.
//
// HTTPServer routes:
//   - GET /login?email= renders a page linking to Spotify's consent screen
//   - GET /callback completes the authorization code flow
//   - /sse and /messages for the SSE transport, /mcp for streamable HTTP
//   - /healthz, /readyz and /healthz/detailed
//
// /login and /callback are rate limited per client IP. Every response
// carries an X-Request-ID header.
//
// MetricsServer exposes Prometheus metrics on a separate port.
package server
