// Package logging provides structured logging helpers for spotify-mcp.
//
// Everything logs through log/slog. This package only fixes attribute names
// and keeps PII out of log lines:
//
//	logger := logging.WithTool(slog.Default(), "now-playing")
//	logger.Info("token refreshed", logging.UserHash(identity))
//
// Identities are hashed, OAuth state values keep only their hashed identity
// part, and tokens are reduced to their length.
package logging
