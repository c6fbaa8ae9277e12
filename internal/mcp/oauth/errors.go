package oauth

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBadRequest is returned when a required parameter is missing.
	ErrBadRequest = errors.New("bad request")

	// ErrStateVerificationFailed is returned when a callback state is
	// malformed, unknown, expired or already used.
	ErrStateVerificationFailed = errors.New("state verification failed")

	// ErrRefreshFailed wraps every refresh error.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrNoRefreshToken means the stored record cannot be refreshed.
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// AuthorizationDeniedError is the error parameter Spotify sent to the
// callback, e.g. "access_denied".
type AuthorizationDeniedError struct {
	Reason string
}

func (e *AuthorizationDeniedError) Error() string {
	return "authorization denied: " + e.Reason
}

// TokenExchangeError is a non-2xx answer from the token endpoint.
type TokenExchangeError struct {
	Status      int
	StatusText  string
	Code        string // OAuth error code, if the body carried one
	Description string
}

func (e *TokenExchangeError) Error() string {
	msg := fmt.Sprintf("token endpoint returned %d %s", e.Status, e.StatusText)
	if e.Code != "" {
		msg += ": " + e.Code
		if e.Description != "" {
			msg += " (" + e.Description + ")"
		}
	}
	return msg
}

// OAuthError represents an OAuth 2.0 error response
type OAuthError struct {
	Code        string // OAuth error code (e.g., "invalid_request", "access_denied")
	Description string // Human-readable error description
	Status      int    // HTTP status code
}

// Error implements the error interface
func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewOAuthError creates a new OAuth error
func NewOAuthError(code, description string, status int) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// ToOAuthError classifies err for the callback and login handlers.
func ToOAuthError(err error) *OAuthError {
	var oe *OAuthError
	var denied *AuthorizationDeniedError
	var exchange *TokenExchangeError

	switch {
	case err == nil:
		return nil
	case errors.As(err, &oe):
		return oe
	case errors.As(err, &denied):
		return NewOAuthError("access_denied", denied.Reason, http.StatusBadRequest)
	case errors.Is(err, ErrStateVerificationFailed):
		return NewOAuthError("invalid_state", "State verification failed.", http.StatusBadRequest)
	case errors.Is(err, ErrBadRequest):
		return NewOAuthError("invalid_request", err.Error(), http.StatusBadRequest)
	case errors.As(err, &exchange):
		return NewOAuthError("server_error", exchange.Error(), http.StatusInternalServerError)
	default:
		return NewOAuthError("server_error", err.Error(), http.StatusInternalServerError)
	}
}
