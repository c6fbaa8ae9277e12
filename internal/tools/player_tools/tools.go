package player_tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/spotify-mcp/internal/instrumentation"
	"github.com/teemow/spotify-mcp/internal/logging"
	"github.com/teemow/spotify-mcp/internal/mcp/oauth"
	"github.com/teemow/spotify-mcp/internal/server"
	"github.com/teemow/spotify-mcp/internal/spotify"
	"github.com/teemow/spotify-mcp/internal/tools/common"
)

// Tool names.
const (
	ToolNowPlaying   = "now-playing"
	ToolSkipNext     = "skip-next"
	ToolSkipPrevious = "skip-previous"
)

// Response texts.
const (
	textNothingPlaying  = "🔇 Nothing is currently playing."
	textTokenExpired    = "🔐 Token expired. Please try again - authentication will be triggered automatically."
	textLoginTimedOut   = "❌ Authentication failed or timed out. Please try again."
	textMissingEmail    = "❌ Missing email argument. Pass the email of the Spotify account to use."
	textFetchFailed     = "❌ Failed to fetch currently playing track. Make sure Spotify is active on a device."
	textSkipFailed      = "❌ Failed to skip track. Make sure Spotify is active on a device."
	textSkippedNext     = "⏭️ Skipped to next track."
	textSkippedPrevious = "⏮️ Went back to previous track."
	unknownArtist       = "Unknown artist"

	textNotAuthenticated = "🔐 Not authenticated with Spotify. Open this link to log in, then try again:\n"
	textReauthenticate   = "🔐 Your Spotify session has expired. Open this link to log in again, then try again:\n"
)

// Config controls how the tools behave when an identity is not logged in.
type Config struct {
	// Interactive opens the login page and blocks until the login completes.
	// Only meaningful when the user sits at the same machine (stdio).
	Interactive bool

	// OpenBrowser opens a URL. Required when Interactive is set.
	OpenBrowser func(url string) error
}

type playerTools struct {
	sc  *server.ServerContext
	cfg Config
}

// RegisterPlayerTools registers all playback tools with the MCP server.
func RegisterPlayerTools(s *mcpserver.MCPServer, sc *server.ServerContext, cfg Config) error {
	if cfg.Interactive && cfg.OpenBrowser == nil {
		return fmt.Errorf("interactive mode requires a browser opener")
	}
	p := &playerTools{sc: sc, cfg: cfg}

	nowPlaying := mcp.NewTool(ToolNowPlaying,
		mcp.WithDescription("Get the currently playing Spotify track"),
		p.emailOption(),
	)
	s.AddTool(nowPlaying, common.InstrumentedToolHandler(ToolNowPlaying,
		instrumentation.OperationCurrentlyPlaying, sc, p.handleNowPlaying))

	skipNext := mcp.NewTool(ToolSkipNext,
		mcp.WithDescription("Skip to the next track in the Spotify queue"),
		p.emailOption(),
	)
	s.AddTool(skipNext, common.InstrumentedToolHandler(ToolSkipNext,
		instrumentation.OperationNext, sc, p.handleSkipNext))

	skipPrevious := mcp.NewTool(ToolSkipPrevious,
		mcp.WithDescription("Go back to the previous Spotify track"),
		p.emailOption(),
	)
	s.AddTool(skipPrevious, common.InstrumentedToolHandler(ToolSkipPrevious,
		instrumentation.OperationPrevious, sc, p.handleSkipPrevious))

	return nil
}

// emailOption makes email required unless a default identity is configured.
func (p *playerTools) emailOption() mcp.ToolOption {
	if p.sc.DefaultIdentity() != "" {
		return mcp.WithString(common.EmailArg,
			mcp.Description("Email of the Spotify account to use (default: "+p.sc.DefaultIdentity()+")"),
		)
	}
	return mcp.WithString(common.EmailArg,
		mcp.Required(),
		mcp.Description("Email of the Spotify account to use"),
	)
}

func (p *playerTools) handleNowPlaying(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return p.run(ctx, request, ToolNowPlaying, textFetchFailed, func(ctx context.Context, c *spotify.Client) (string, error) {
		cp, err := c.CurrentlyPlaying(ctx)
		if err != nil {
			return "", err
		}
		return formatNowPlaying(cp), nil
	})
}

func (p *playerTools) handleSkipNext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return p.run(ctx, request, ToolSkipNext, textSkipFailed, func(ctx context.Context, c *spotify.Client) (string, error) {
		if err := c.Next(ctx); err != nil {
			return "", err
		}
		return textSkippedNext, nil
	})
}

func (p *playerTools) handleSkipPrevious(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return p.run(ctx, request, ToolSkipPrevious, textSkipFailed, func(ctx context.Context, c *spotify.Client) (string, error) {
		if err := c.Previous(ctx); err != nil {
			return "", err
		}
		return textSkippedPrevious, nil
	})
}

// run resolves the identity, passes the call through the gate and turns the
// outcome into tool text. Tool errors never surface as Go errors.
func (p *playerTools) run(
	ctx context.Context,
	request mcp.CallToolRequest,
	tool, failureText string,
	op func(context.Context, *spotify.Client) (string, error),
) (*mcp.CallToolResult, error) {
	identity := common.GetIdentityFromArgs(ctx, p.sc, request.GetArguments())
	if identity == "" {
		common.RecordOutcome(ctx, common.OutcomeFailed)
		return mcp.NewToolResultError(textMissingEmail), nil
	}
	logger := logging.WithIdentity(logging.WithTool(p.sc.Logger(), tool), identity)
	gate := p.sc.Gate()

	if p.cfg.Interactive && !gate.IsAuthenticated(ctx, identity) {
		if !p.interactiveLogin(ctx, logger, identity) {
			common.RecordOutcome(ctx, common.OutcomeFailed)
			return mcp.NewToolResultText(textLoginTimedOut), nil
		}
	}

	var text string
	res := gate.Run(ctx, identity, func(ctx context.Context, c *spotify.Client) error {
		var err error
		text, err = op(ctx, c)
		return err
	})
	common.RecordOutcome(ctx, res.Outcome.String())

	switch res.Outcome {
	case oauth.OutcomeDone:
		return mcp.NewToolResultText(text), nil
	case oauth.OutcomeRetry:
		logger.Info("Access token refreshed, asking caller to retry")
		return mcp.NewToolResultText(textTokenExpired), nil
	case oauth.OutcomeNeedsLogin:
		if res.Err != nil {
			logger.Info("Refresh failed, login required")
			return mcp.NewToolResultText(reauthenticateText(res.LoginURL)), nil
		}
		return mcp.NewToolResultText(notAuthenticatedText(res.LoginURL)), nil
	default:
		logger.Warn("Spotify call failed", logging.Err(res.Err))
		return mcp.NewToolResultText(failureText), nil
	}
}

// interactiveLogin waits for the callback. Concurrent callers for the same
// identity share one wait, and only the first of them opens the login page.
func (p *playerTools) interactiveLogin(ctx context.Context, logger *slog.Logger, identity string) bool {
	return p.sc.LoginWaiter().Wait(ctx, identity, func() {
		loginURL := p.sc.Gate().LoginURL(identity)
		if err := p.cfg.OpenBrowser(loginURL); err != nil {
			logger.Warn("Failed to open browser, waiting for manual login", "url", loginURL, logging.Err(err))
			return
		}
		logger.Info("Opened browser for Spotify login")
	})
}

func formatNowPlaying(cp *spotify.CurrentlyPlaying) string {
	track, ok := cp.Track()
	if !ok {
		return textNothingPlaying
	}
	artists := track.ArtistNames()
	if artists == "" {
		artists = unknownArtist
	}
	return fmt.Sprintf("🎵 Now playing: **%s** by **%s**", track.Name, artists)
}

func notAuthenticatedText(loginURL string) string {
	return textNotAuthenticated + loginURL
}

func reauthenticateText(loginURL string) string {
	return textReauthenticate + loginURL
}
