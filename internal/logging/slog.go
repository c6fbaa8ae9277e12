package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation = "operation"
	KeyService   = "service"
	KeyUserHash  = "user_hash"
	KeyState     = "state"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyTool      = "tool"
	KeyOutcome   = "outcome"
)

// Status values for consistent logging.
// Duplicated from instrumentation so that package can import this one.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithTool returns a logger with the tool attribute set.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(slog.String(KeyTool, tool))
}

// WithIdentity returns a logger carrying the hashed identity.
func WithIdentity(logger *slog.Logger, identity string) *slog.Logger {
	return logger.With(UserHash(identity))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Service returns a slog attribute for the service name.
func Service(svc string) slog.Attr {
	return slog.String(KeyService, svc)
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Outcome returns a slog attribute for an authentication gate outcome.
func Outcome(outcome string) slog.Attr {
	return slog.String(KeyOutcome, outcome)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that slog omits from output.
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeIdentity returns a stable hash of a user identity so log lines can
// be correlated without exposing the email address.
func AnonymizeIdentity(identity string) string {
	if identity == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(identity))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns a slog attribute with the anonymized identity.
//
//	logger.Info("token stored", logging.UserHash(identity))
func UserHash(identity string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeIdentity(identity))
}

// State returns a slog attribute for an OAuth state parameter. Only the
// identity part survives, hashed; the random suffix is replaced by its length.
func State(state string) slog.Attr {
	idx := strings.LastIndex(state, ":")
	if idx < 0 {
		return slog.String(KeyState, SanitizeToken(state))
	}
	return slog.String(KeyState, AnonymizeIdentity(state[:idx])+":"+SanitizeToken(state[idx+1:]))
}

// SanitizeToken returns a masked version of a token for logging.
// Only the length is kept; even a short prefix can help an attacker.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// ExtractDomain extracts the domain part from an email address.
func ExtractDomain(email string) string {
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// Domain returns a slog attribute for the email domain (lower cardinality than full email).
func Domain(email string) slog.Attr {
	return slog.String("user_domain", ExtractDomain(email))
}
