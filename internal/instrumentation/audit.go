package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ToolInvocation captures one MCP tool call for audit logging.
//
// User holds the caller-supplied identity, which is PII. LogAttrs only emits
// its domain; LogAuditAttrs emits it in full.
type ToolInvocation struct {
	Tool      string
	User      string
	Operation string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Outcome   string
	Error     string

	TraceID string
	SpanID  string
}

// NewToolInvocation creates a new ToolInvocation with timing started.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{Tool: tool, StartTime: time.Now()}
}

// WithUser sets the identity the tool acted on.
func (ti *ToolInvocation) WithUser(user string) *ToolInvocation {
	ti.User = user
	return ti
}

// WithOperation sets the Spotify operation performed by the tool.
func (ti *ToolInvocation) WithOperation(operation string) *ToolInvocation {
	ti.Operation = operation
	return ti
}

// WithOutcome sets the gate outcome (done, retry, needs_login, failed).
func (ti *ToolInvocation) WithOutcome(outcome string) *ToolInvocation {
	ti.Outcome = outcome
	return ti
}

// WithSpanContext copies trace and span IDs from the span in ctx.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		ti.TraceID = sc.TraceID().String()
		ti.SpanID = sc.SpanID().String()
	}
	return ti
}

// Complete stops the clock and records the result.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Status returns StatusSuccess or StatusError.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns attributes safe for operational logs.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String("user_domain", ExtractUserDomain(ti.User)),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	return append(attrs, ti.optionalAttrs()...)
}

// LogAuditAttrs returns attributes including the full identity.
func (ti *ToolInvocation) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String("user", ti.User),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	attrs = append(attrs, ti.optionalAttrs()...)
	if ti.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ti.SpanID))
	}
	return attrs
}

func (ti *ToolInvocation) optionalAttrs() []slog.Attr {
	var attrs []slog.Attr
	if ti.Operation != "" {
		attrs = append(attrs, slog.String("operation", ti.Operation))
	}
	if ti.Outcome != "" {
		attrs = append(attrs, slog.String("outcome", ti.Outcome))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}
	return attrs
}

// AuditLogger writes tool_executed / tool_failed records.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an enabled AuditLogger that anonymizes identities.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogToolInvocation logs ti at Info on success and Warn on failure.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	attrs := ti.LogAttrs()
	if al.includePII {
		attrs = ti.LogAuditAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ti.Success {
		al.logger.Info("tool_executed", args...)
	} else {
		al.logger.Warn("tool_failed", args...)
	}
}
