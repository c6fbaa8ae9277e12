package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/giantswarm/mcp-oauth/storage"
	"golang.org/x/oauth2"

	"github.com/teemow/spotify-mcp/internal/logging"
)

// TokenMaterial is what the token endpoint returns.
type TokenMaterial = *oauth2.Token

// TokenRecord is a snapshot of one identity's credentials.
type TokenRecord struct {
	Identity      string
	Token         *oauth2.Token
	Authenticated bool
}

// TokenStore is the single owner of token records. Token material lives in a
// mcp-oauth storage backend; the authenticated flag is kept alongside it.
// Records handed out are copies.
type TokenStore struct {
	backend       storage.TokenStore
	mu            sync.RWMutex
	authenticated map[string]bool
	logger        *slog.Logger
}

// NewTokenStore wraps backend, typically memory.New().
func NewTokenStore(backend storage.TokenStore, logger *slog.Logger) *TokenStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenStore{
		backend:       backend,
		authenticated: make(map[string]bool),
		logger:        logger,
	}
}

// Commit replaces the record for identity and marks it authenticated.
func (s *TokenStore) Commit(ctx context.Context, identity string, material TokenMaterial) error {
	if identity == "" {
		return fmt.Errorf("%w: missing identity", ErrBadRequest)
	}
	if material == nil || material.AccessToken == "" {
		return fmt.Errorf("refusing to store empty token material")
	}

	if err := s.backend.SaveToken(ctx, identity, copyToken(material)); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	s.mu.Lock()
	s.authenticated[identity] = true
	s.mu.Unlock()

	s.logger.Debug("Committed token",
		logging.UserHash(identity),
		slog.Time("expiry", material.Expiry),
		slog.Bool("has_refresh_token", material.RefreshToken != ""),
	)
	return nil
}

// Get returns a copy of the record for identity.
func (s *TokenStore) Get(ctx context.Context, identity string) (*TokenRecord, bool) {
	tok, err := s.backend.GetToken(ctx, identity)
	if err != nil || tok == nil {
		return nil, false
	}

	s.mu.RLock()
	authenticated := s.authenticated[identity]
	s.mu.RUnlock()

	return &TokenRecord{
		Identity:      identity,
		Token:         copyToken(tok),
		Authenticated: authenticated,
	}, true
}

// MarkUnauthenticated clears the authenticated flag. With clearTokens the
// access and refresh tokens are deleted too; use it when refresh has failed
// and nothing stored can recover the session.
func (s *TokenStore) MarkUnauthenticated(ctx context.Context, identity string, clearTokens bool) {
	s.mu.Lock()
	s.authenticated[identity] = false
	s.mu.Unlock()

	if clearTokens {
		if err := s.backend.DeleteToken(ctx, identity); err != nil {
			s.logger.Debug("No token to delete", logging.UserHash(identity), logging.Err(err))
		}
	}

	s.logger.Info("Identity marked unauthenticated",
		logging.UserHash(identity),
		slog.Bool("tokens_cleared", clearTokens),
	)
}

// IsAuthenticated is a local check: a record exists, is flagged
// authenticated, and has an access token. It does not call Spotify, so an
// expired token still passes until a request fails.
func (s *TokenStore) IsAuthenticated(ctx context.Context, identity string) bool {
	s.mu.RLock()
	authenticated := s.authenticated[identity]
	s.mu.RUnlock()
	if !authenticated {
		return false
	}

	tok, err := s.backend.GetToken(ctx, identity)
	return err == nil && tok != nil && tok.AccessToken != ""
}

// Count returns the number of identities currently authenticated.
func (s *TokenStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, ok := range s.authenticated {
		if ok {
			n++
		}
	}
	return n
}

func copyToken(t *oauth2.Token) *oauth2.Token {
	cp := *t
	return &cp
}
