// Package resources provides read-only MCP resources. The auth status
// resource reports whether the calling identity holds Spotify tokens,
// scoped to the identity the session was opened with.
package resources
