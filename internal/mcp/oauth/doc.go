// Package oauth manages Spotify credentials for many users at once.
//
// A login starts in PendingAuthRegistry, which issues a state of the form
// "<identity>:<random>" and remembers the random part per identity. The
// callback consumes that state exactly once, the Exchanger trades the code
// for tokens, and TokenStore commits them. Tool calls go through Gate: it
// hands out a Spotify client optimistically and, on a 401, refreshes once or
// sends the user back to /login.
//
// The identity is whatever email the MCP client passes. It is not verified;
// anyone who knows an identity that has logged in can act on that account.
// Deployments that expose the server beyond a single trusted client need an
// authenticating proxy in front of it.
//
// All state is in memory. A restart logs everyone out.
package oauth
