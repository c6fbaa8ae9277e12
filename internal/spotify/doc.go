// Package spotify is a minimal Spotify Web API client for the player
// endpoints used by the MCP tools.
//
// A Client is bound to one access token and is meant to be built for a single
// call; token refresh is handled by the caller (see internal/mcp/oauth). A 401
// from the API surfaces as an error that matches ErrUnauthorized.
package spotify
