package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the spotify-mcp application
var rootCmd = &cobra.Command{
	Use:   "spotify-mcp",
	Short: "MCP server for controlling Spotify playback",
	Long: `spotify-mcp exposes Spotify playback controls as MCP tools.

Each user authorizes the server once through the browser login flow
(/login?email=<identity>). Tokens are kept in memory per identity and
refreshed when Spotify rejects them.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "spotify-mcp version %s\n" .Version}}`)

	// If no subcommand is provided, run the MCP server
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
