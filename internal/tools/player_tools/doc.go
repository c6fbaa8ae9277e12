// Package player_tools provides the Spotify playback MCP tools:
// now-playing, skip-next and skip-previous.
//
// Every tool takes an email argument naming the Spotify identity to act on.
// The identity is caller-supplied and not verified, so any client that can
// reach the server can act as any identity that has logged in.
//
// Calls go through the authentication gate. An identity without tokens gets
// a login link instead of a provider call; a 401 from Spotify triggers one
// token refresh and the user is asked to try again. In interactive (stdio)
// mode the tools open the login page in the browser and wait for the
// callback before calling Spotify.
package player_tools
