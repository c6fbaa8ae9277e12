package oauth

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/spotify-mcp/internal/logging"
)

// PendingAuth is an authorization attempt waiting for its callback.
type PendingAuth struct {
	Identity  string
	State     string // random part only
	CreatedAt time.Time
}

// PendingAuthRegistry tracks in-flight authorizations, one per identity.
// A new login for an identity replaces the previous one.
type PendingAuthRegistry struct {
	config  *oauth2.Config
	ttl     time.Duration
	pending map[string]*PendingAuth
	mu      sync.RWMutex
	logger  *slog.Logger
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPendingAuthRegistry creates a registry that builds authorization URLs
// from config. A ttl <= 0 selects DefaultPendingAuthTTL.
func NewPendingAuthRegistry(config *oauth2.Config, ttl time.Duration, logger *slog.Logger) *PendingAuthRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultPendingAuthTTL
	}

	r := &PendingAuthRegistry{
		config:  config,
		ttl:     ttl,
		pending: make(map[string]*PendingAuth),
		logger:  logger,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go r.cleanup(DefaultCleanupInterval)

	return r
}

// BeginLogin issues a fresh state for identity and returns the Spotify
// authorization URL. It does not touch the network.
func (r *PendingAuthRegistry) BeginLogin(identity string) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("%w: missing email", ErrBadRequest)
	}

	random, err := randomAlphanumeric(StateTokenLength)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	_, replaced := r.pending[identity]
	r.pending[identity] = &PendingAuth{
		Identity:  identity,
		State:     random,
		CreatedAt: r.now(),
	}
	r.mu.Unlock()

	r.logger.Debug("Issued authorization state",
		logging.UserHash(identity),
		slog.Bool("replaced", replaced),
	)

	return r.config.AuthCodeURL(ComposeState(identity, random),
		oauth2.SetAuthURLParam(ShowDialogParam, "true"),
	), nil
}

// Consume reports whether state matches the pending entry for identity and
// deletes the entry on success, so a state verifies at most once. A wrong
// state leaves the entry in place.
func (r *PendingAuthRegistry) Consume(identity, state string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[identity]
	if !ok {
		return false
	}

	if r.now().Sub(p.CreatedAt) > r.ttl {
		delete(r.pending, identity)
		return false
	}

	if !secureEqual(p.State, state) {
		return false
	}

	delete(r.pending, identity)
	return true
}

// Verify splits a callback state parameter and consumes it. It returns the
// identity the state was issued for.
func (r *PendingAuthRegistry) Verify(compositeState string) (string, error) {
	identity, state, ok := SplitState(compositeState)
	if !ok {
		return "", fmt.Errorf("%w: malformed state", ErrStateVerificationFailed)
	}
	if !r.Consume(identity, state) {
		r.logger.Warn("State verification failed", logging.State(compositeState))
		return "", ErrStateVerificationFailed
	}
	return identity, nil
}

// Len returns the number of pending authorizations.
func (r *PendingAuthRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (r *PendingAuthRegistry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *PendingAuthRegistry) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanupExpired()
		case <-r.stop:
			return
		}
	}
}

func (r *PendingAuthRegistry) cleanupExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	deleted := 0
	for identity, p := range r.pending {
		if now.Sub(p.CreatedAt) > r.ttl {
			delete(r.pending, identity)
			deleted++
		}
	}

	if deleted > 0 {
		r.logger.Debug("Cleaned up pending authorizations", "deleted", deleted)
	}
}

// ComposeState joins identity and random state.
func ComposeState(identity, state string) string {
	return identity + StateSeparator + state
}

// SplitState splits a composite state at its last separator, so identities
// may themselves contain ':'. ok is false if either side is empty.
func SplitState(composite string) (identity, state string, ok bool) {
	idx := strings.LastIndex(composite, StateSeparator)
	if idx <= 0 || idx == len(composite)-1 {
		return "", "", false
	}
	return composite[:idx], composite[idx+1:], true
}
