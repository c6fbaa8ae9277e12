package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/spotify-mcp/internal/server"
)

// AuthStatusURI identifies the auth status resource.
const AuthStatusURI = "spotify://auth/status"

// AuthStatus is the JSON body of the auth status resource. Token material
// is never included.
type AuthStatus struct {
	Identity        string     `json:"identity"`
	Authenticated   bool       `json:"authenticated"`
	HasRefreshToken bool       `json:"has_refresh_token"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	LoginURL        string     `json:"login_url,omitempty"`
}

// RegisterAuthResources registers the session-scoped auth status resource.
func RegisterAuthResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	statusResource := mcp.NewResource(
		AuthStatusURI,
		"Spotify Authentication Status",
		mcp.WithResourceDescription("Whether the identity bound to this session is logged in to Spotify"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(statusResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleAuthStatus(ctx, request, sc)
	})

	return nil
}

func handleAuthStatus(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	identity := sc.ResolveIdentity(ctx, "")
	if identity == "" {
		return nil, fmt.Errorf("no identity bound to this session; connect with ?email=<identity>")
	}

	status := AuthStatus{
		Identity:      identity,
		Authenticated: sc.Gate().IsAuthenticated(ctx, identity),
	}
	if status.Authenticated {
		if rec, ok := sc.Tokens().Get(ctx, identity); ok {
			status.HasRefreshToken = rec.Token.RefreshToken != ""
			if !rec.Token.Expiry.IsZero() {
				expiry := rec.Token.Expiry
				status.ExpiresAt = &expiry
			}
		}
	} else {
		status.LoginURL = sc.Gate().LoginURL(identity)
	}

	jsonData, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auth status: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
