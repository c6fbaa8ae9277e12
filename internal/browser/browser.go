// Package browser opens URLs in the user's default browser. The stdio
// transport uses it to start the Spotify login without the user copying a
// link out of the MCP client.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

var (
	getRuntime = func() string { return runtime.GOOS }
	launch     = func(cmd *exec.Cmd) error { return cmd.Start() }
)

// Open starts the platform's URL handler for url and returns without
// waiting for the browser.
func Open(url string) error {
	var cmd *exec.Cmd
	rt := getRuntime()
	switch rt {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux", "freebsd", "openbsd", "netbsd":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", rt)
	}

	if err := launch(cmd); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
