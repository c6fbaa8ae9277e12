package oauth

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/spotify-mcp/internal/logging"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	// Authorization flow events
	AuditEventLoginStarted         AuditEventType = "login_started"
	AuditEventAuthSuccess          AuditEventType = "auth_success"
	AuditEventAuthDenied           AuditEventType = "auth_denied"
	AuditEventStateVerification    AuditEventType = "state_verification_failed"
	AuditEventTokenExchangeFailure AuditEventType = "token_exchange_failed"

	// Token lifecycle events
	AuditEventTokenRefreshed AuditEventType = "token_refreshed"
	AuditEventRefreshFailed  AuditEventType = "token_refresh_failed"

	// Security events
	AuditEventRateLimitExceeded AuditEventType = "rate_limit_exceeded"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	Timestamp time.Time
	EventType AuditEventType

	// UserHash is the anonymized identity, never the raw value
	UserHash string

	// IPAddress is the source IP address (for security monitoring)
	IPAddress string

	Success      bool
	ErrorMessage string
	Metadata     map[string]string
}

// AuditLogger writes authorization flow events. Identities are hashed before
// they reach the log.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger}
}

// LogEvent logs an audit event with structured logging
func (a *AuditLogger) LogEvent(event AuditEvent) {
	if a == nil {
		return
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("event_type", string(event.EventType)),
		slog.Time("timestamp", event.Timestamp),
		slog.Bool("success", event.Success),
	}
	if event.UserHash != "" {
		attrs = append(attrs, slog.String(logging.KeyUserHash, event.UserHash))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.ErrorMessage != "" {
		attrs = append(attrs, slog.String("error", event.ErrorMessage))
	}
	for key, value := range event.Metadata {
		attrs = append(attrs, slog.String("meta_"+key, value))
	}

	a.logger.LogAttrs(context.Background(), level, "audit_event", attrs...)
}

// LogLoginStarted logs an issued authorization request.
func (a *AuditLogger) LogLoginStarted(identity, ipAddress string) {
	a.LogEvent(AuditEvent{
		Timestamp: time.Now(),
		EventType: AuditEventLoginStarted,
		UserHash:  logging.AnonymizeIdentity(identity),
		IPAddress: ipAddress,
		Success:   true,
	})
}

// LogAuthSuccess logs a completed callback.
func (a *AuditLogger) LogAuthSuccess(identity, ipAddress, scope string) {
	a.LogEvent(AuditEvent{
		Timestamp: time.Now(),
		EventType: AuditEventAuthSuccess,
		UserHash:  logging.AnonymizeIdentity(identity),
		IPAddress: ipAddress,
		Success:   true,
		Metadata:  map[string]string{"scope": scope},
	})
}

// LogAuthFailure logs a failed callback. eventType is one of the
// authorization flow events.
func (a *AuditLogger) LogAuthFailure(eventType AuditEventType, identity, ipAddress, reason string) {
	a.LogEvent(AuditEvent{
		Timestamp:    time.Now(),
		EventType:    eventType,
		UserHash:     logging.AnonymizeIdentity(identity),
		IPAddress:    ipAddress,
		Success:      false,
		ErrorMessage: reason,
	})
}

// LogTokenRefreshed logs a refresh attempt.
func (a *AuditLogger) LogTokenRefreshed(identity string, rotated bool, err error) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: AuditEventTokenRefreshed,
		UserHash:  logging.AnonymizeIdentity(identity),
		Success:   err == nil,
		Metadata:  map[string]string{"rotated": boolToString(rotated)},
	}
	if err != nil {
		event.EventType = AuditEventRefreshFailed
		event.ErrorMessage = err.Error()
		event.Metadata = nil
	}
	a.LogEvent(event)
}

// LogRateLimitExceeded logs when rate limit is exceeded
func (a *AuditLogger) LogRateLimitExceeded(ipAddress, path string) {
	a.LogEvent(AuditEvent{
		Timestamp:    time.Now(),
		EventType:    AuditEventRateLimitExceeded,
		IPAddress:    ipAddress,
		Success:      false,
		ErrorMessage: "Rate limit exceeded",
		Metadata:     map[string]string{"path": path},
	})
}
