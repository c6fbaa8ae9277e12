package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Exchanger performs the two token endpoint calls. It keeps no state and
// never retries: authorization codes are single-use.
type Exchanger struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewExchanger creates an exchanger. httpClient may be nil.
func NewExchanger(config *oauth2.Config, httpClient *http.Client) *Exchanger {
	return &Exchanger{config: config, httpClient: httpClient}
}

// ExchangeCode trades an authorization code for tokens.
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (TokenMaterial, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", ErrBadRequest)
	}

	tok, err := e.config.Exchange(e.context(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", tokenEndpointError(err))
	}
	return tok, nil
}

// Refresh obtains a new access token. If the response carries no new
// refresh token the previous one is kept on the returned material.
func (e *Exchanger) Refresh(ctx context.Context, refreshToken string) (TokenMaterial, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, ErrNoRefreshToken)
	}

	// Without an access token the token source always hits the endpoint.
	src := e.config.TokenSource(e.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, tokenEndpointError(err))
	}

	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

func (e *Exchanger) context(ctx context.Context) context.Context {
	if e.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	}
	return ctx
}

// tokenEndpointError turns an *oauth2.RetrieveError into a TokenExchangeError.
// Transport errors pass through unchanged.
func tokenEndpointError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return err
	}
	return &TokenExchangeError{
		Status:      re.Response.StatusCode,
		StatusText:  http.StatusText(re.Response.StatusCode),
		Code:        re.ErrorCode,
		Description: re.ErrorDescription,
	}
}
