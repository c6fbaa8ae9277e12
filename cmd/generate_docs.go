package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/teemow/spotify-mcp/internal/mcp/oauth"
	"github.com/teemow/spotify-mcp/internal/server"
	"github.com/teemow/spotify-mcp/internal/tools/player_tools"
)

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for all available MCP tools.
This command introspects the registered tools so the documentation always
matches the actual tool definitions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFile == "" {
				return runGenerateDocs(cmd.OutOrStdout())
			}
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			if err := runGenerateDocs(f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Documentation written to: %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(w io.Writer) error {
	// Tool definitions do not depend on real credentials.
	serverContext, err := server.NewServerContext(context.Background(), server.Options{
		OAuth: oauth.Config{
			ClientID:     "docs",
			ClientSecret: "docs",
			BaseURL:      defaultBaseURL(server.DefaultAddr),
			RateLimit:    oauth.RateLimitConfig{Rate: -1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv, err := newMCPServer(serverContext, player_tools.Config{})
	if err != nil {
		return err
	}

	serverTools := mcpSrv.ListTools()
	tools := make([]mcp.Tool, 0, len(serverTools))
	for _, serverTool := range serverTools {
		tools = append(tools, serverTool.Tool)
	}

	_, err = io.WriteString(w, generateToolsMarkdown(tools))
	return err
}

func generateToolsMarkdown(tools []mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("This document provides a complete reference of all tools available when running spotify-mcp as an MCP server.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the tool definitions.\n\n")

	sb.WriteString("## Identities\n\n")
	sb.WriteString("Every tool acts on the Spotify account named by the `email` argument:\n\n")
	sb.WriteString("- **HTTP transports:** `email` is required unless the session was opened with `?email=`\n")
	sb.WriteString("- **stdio:** `email` defaults to the identity passed with `--email`\n")
	sb.WriteString("- **Not logged in:** the tool answers with a link to `/login?email=<identity>`\n\n")

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})

	sb.WriteString("## Playback Tools\n\n")
	for _, tool := range tools {
		sb.WriteString(generateToolMarkdown(tool))
		sb.WriteString("\n")
	}

	return sb.String()
}

func generateToolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("### %s\n\n", tool.Name))

	if tool.Description != "" {
		sb.WriteString(fmt.Sprintf("%s\n\n", tool.Description))
	}

	if len(tool.InputSchema.Properties) > 0 {
		sb.WriteString("**Arguments:**\n")

		propNames := make([]string, 0, len(tool.InputSchema.Properties))
		for name := range tool.InputSchema.Properties {
			propNames = append(propNames, name)
		}
		sort.Strings(propNames)

		for _, name := range propNames {
			propMap, ok := tool.InputSchema.Properties[name].(map[string]any)
			if !ok {
				continue
			}

			requiredStr := "optional"
			if slices.Contains(tool.InputSchema.Required, name) {
				requiredStr = "required"
			}

			sb.WriteString(fmt.Sprintf("- `%s` (%s): ", name, requiredStr))
			if desc, ok := propMap["description"].(string); ok {
				sb.WriteString(desc)
			} else {
				sb.WriteString(fmt.Sprintf("%s parameter", getPropertyType(propMap)))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func getPropertyType(prop map[string]any) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}
