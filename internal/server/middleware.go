package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/spotify-mcp/internal/instrumentation"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFromContext returns the request ID set by requestIDMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestIDMiddleware reuses an incoming X-Request-ID when it parses as a
// UUID and generates one otherwise.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// responseWriter records the status code. It forwards Flush so SSE streams
// keep working through it.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// knownPaths bounds the path label of http_requests_total.
var knownPaths = map[string]bool{
	"/login":            true,
	"/callback":         true,
	"/sse":              true,
	"/messages":         true,
	"/mcp":              true,
	"/healthz":          true,
	"/readyz":           true,
	"/healthz/detailed": true,
}

func metricPath(path string) string {
	if knownPaths[path] {
		return path
	}
	return "other"
}

// instrumentationMiddleware records request count and latency.
func instrumentationMiddleware(metrics *instrumentation.Metrics, next http.Handler) http.Handler {
	if metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)
		metrics.RecordHTTPRequest(r.Context(), r.Method, metricPath(r.URL.Path), rw.statusCode, time.Since(start))
	})
}
