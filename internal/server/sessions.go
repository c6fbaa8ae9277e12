package server

import (
	"context"
	"log/slog"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/spotify-mcp/internal/logging"
)

// SessionRegistry remembers which identity each SSE session was opened for.
// The SSE transport only sees ?email= on the stream request, while tool
// calls arrive on /messages, so the binding is made at session registration.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]string
	logger   *slog.Logger
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(logger *slog.Logger) *SessionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRegistry{sessions: make(map[string]string), logger: logger}
}

// Bind associates identity with sessionID.
func (r *SessionRegistry) Bind(sessionID, identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = identity
}

// Identity returns the identity bound to sessionID, or "".
func (r *SessionRegistry) Identity(sessionID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

// Remove forgets sessionID.
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Len returns the number of bound sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// NewHooks returns MCP server hooks that bind sessions to identities and
// track the active_sessions gauge.
func NewHooks(sc *ServerContext) *mcpserver.Hooks {
	hooks := &mcpserver.Hooks{}

	hooks.AddOnRegisterSession(func(ctx context.Context, session mcpserver.ClientSession) {
		if identity := IdentityFromContext(ctx); identity != "" {
			sc.Sessions().Bind(session.SessionID(), identity)
			sc.Logger().Debug("Session bound", "session_id", session.SessionID(), logging.UserHash(identity))
		}
		sc.Metrics().IncrementActiveSessions(ctx)
	})

	hooks.AddOnUnregisterSession(func(ctx context.Context, session mcpserver.ClientSession) {
		sc.Sessions().Remove(session.SessionID())
		sc.Metrics().DecrementActiveSessions(ctx)
	})

	return hooks
}

// ResolveIdentity picks the identity a tool call acts on. An explicit
// argument wins, then the identity the request or session was opened with,
// then the configured default. It returns "" when none applies.
func (sc *ServerContext) ResolveIdentity(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if identity := IdentityFromContext(ctx); identity != "" {
		return identity
	}
	if session := mcpserver.ClientSessionFromContext(ctx); session != nil {
		if identity := sc.sessions.Identity(session.SessionID()); identity != "" {
			return identity
		}
	}
	return sc.defaultIdentity
}
