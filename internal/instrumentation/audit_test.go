package instrumentation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

const (
	testIdentity = "jane@example.com"
	testDomain   = "example.com"
)

func TestToolInvocation_Complete(t *testing.T) {
	ti := NewToolInvocation("now-playing").WithUser(testIdentity).WithOperation(OperationCurrentlyPlaying)

	if ti.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}

	ti.Complete(true, nil)
	if !ti.Success || ti.Status() != StatusSuccess {
		t.Errorf("expected success, got %v/%s", ti.Success, ti.Status())
	}
	if ti.Duration < 0 {
		t.Error("Duration should not be negative")
	}

	ti.Complete(false, errors.New("spotify down"))
	if ti.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusError)
	}
	if ti.Error != "spotify down" {
		t.Errorf("Error = %q", ti.Error)
	}
}

func TestToolInvocation_LogAttrsAnonymizes(t *testing.T) {
	ti := NewToolInvocation("skip-next").WithUser(testIdentity).WithOutcome("done")
	ti.Complete(true, nil)

	attrs := map[string]string{}
	for _, a := range ti.LogAttrs() {
		attrs[a.Key] = a.Value.String()
	}

	if attrs["user_domain"] != testDomain {
		t.Errorf("user_domain = %q, want %q", attrs["user_domain"], testDomain)
	}
	if _, ok := attrs["user"]; ok {
		t.Error("LogAttrs must not include the full identity")
	}
	if attrs["outcome"] != "done" {
		t.Errorf("outcome = %q", attrs["outcome"])
	}
}

func TestToolInvocation_WithSpanContextWithoutSpan(t *testing.T) {
	ti := NewToolInvocation("skip-previous").WithSpanContext(context.Background())
	if ti.TraceID != "" || ti.SpanID != "" {
		t.Error("expected no trace context")
	}
}

func TestAuditLogger_LogToolInvocation(t *testing.T) {
	tests := []struct {
		name       string
		config     AuditLoggingConfig
		success    bool
		wantMsg    string
		wantFull   bool
		wantOutput bool
	}{
		{name: "success anonymized", config: AuditLoggingConfig{Enabled: true}, success: true, wantMsg: "tool_executed", wantOutput: true},
		{name: "failure anonymized", config: AuditLoggingConfig{Enabled: true}, success: false, wantMsg: "tool_failed", wantOutput: true},
		{name: "success with PII", config: AuditLoggingConfig{Enabled: true, IncludePII: true}, success: true, wantMsg: "tool_executed", wantFull: true, wantOutput: true},
		{name: "disabled", config: AuditLoggingConfig{Enabled: false}, success: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			al := NewAuditLoggerWithConfig(logger, tt.config)

			ti := NewToolInvocation("now-playing").WithUser(testIdentity)
			ti.Complete(tt.success, nil)
			al.LogToolInvocation(ti)

			out := buf.String()
			if !tt.wantOutput {
				if out != "" {
					t.Errorf("expected no output, got %q", out)
				}
				return
			}
			if !strings.Contains(out, tt.wantMsg) {
				t.Errorf("expected %q in %q", tt.wantMsg, out)
			}
			if got := strings.Contains(out, testIdentity); got != tt.wantFull {
				t.Errorf("full identity present = %v, want %v", got, tt.wantFull)
			}
		})
	}
}

func TestAuditLogger_Nil(t *testing.T) {
	var al *AuditLogger
	al.LogToolInvocation(NewToolInvocation("now-playing"))
}
