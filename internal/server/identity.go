package server

import "context"

type identityKey struct{}

// WithIdentity returns a context carrying the identity an MCP session was
// opened for.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the session identity, or "".
func IdentityFromContext(ctx context.Context) string {
	identity, _ := ctx.Value(identityKey{}).(string)
	return identity
}
