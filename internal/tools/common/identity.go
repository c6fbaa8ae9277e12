package common

import (
	"context"

	"github.com/teemow/spotify-mcp/internal/server"
)

// EmailArg is the tool argument naming the Spotify identity.
const EmailArg = "email"

// GetIdentityFromArgs extracts the identity a tool call acts on.
//
// Priority order:
//  1. Explicit "email" argument
//  2. The ?email= the MCP request or session was opened with
//  3. The default identity (stdio transport)
//
// It returns "" when none applies.
func GetIdentityFromArgs(ctx context.Context, sc *server.ServerContext, args map[string]any) string {
	explicit, _ := args[EmailArg].(string)
	return sc.ResolveIdentity(ctx, explicit)
}
