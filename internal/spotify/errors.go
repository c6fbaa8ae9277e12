package spotify

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is matched by errors returned for HTTP 401 responses.
var ErrUnauthorized = errors.New("spotify: unauthorized")

// APIError is a non-2xx response from the Web API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("spotify: %d %s", e.Status, msg)
}

// Unwrap makes errors.Is(err, ErrUnauthorized) true for 401 responses.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// errorResponse is the regular error object body.
type errorResponse struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
