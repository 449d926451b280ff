// Package credentials issues the OAuth access tokens used as store passwords
// and bearer tokens.
package credentials

import (
	"context"
	"net/http"
	"time"

	"qcgallery/internal/config"
	"qcgallery/internal/errors"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Issuer hands out access tokens. Each call may return a cached token that is
// still valid; callers that need a fresh credential simply call again after
// their own lifetime window.
type Issuer interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// oauthIssuer wraps an oauth2 token source built per request so the context
// (and its HTTP client) is honored.
type oauthIssuer struct {
	cfg        *clientcredentials.Config
	httpClient *http.Client
}

// NewIssuer builds an Issuer from configuration: a static personal access
// token if present, otherwise the OAuth client-credentials flow.
func NewIssuer(cfg config.AuthConfig, timeout time.Duration) Issuer {
	if cfg.StaticToken != "" {
		return NewStaticIssuer(cfg.StaticToken)
	}
	return &oauthIssuer{
		cfg: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (i *oauthIssuer) Token(ctx context.Context) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, i.httpClient)
	tok, err := i.cfg.Token(ctx)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	return tok, nil
}

// classifyTokenError separates rejected credentials from an unreachable
// identity provider.
func classifyTokenError(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		if retrieve.Response != nil && retrieve.Response.StatusCode >= 500 {
			return errors.Unreachable("identity provider", err)
		}
		return errors.AuthFailure("identity provider", err)
	}
	return errors.Unreachable("identity provider", err)
}

type staticIssuer struct {
	src oauth2.TokenSource
}

// NewStaticIssuer always returns the same token.
func NewStaticIssuer(token string) Issuer {
	return &staticIssuer{src: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})}
}

func (s *staticIssuer) Token(context.Context) (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, errors.AuthFailure("static token", err)
	}
	return tok, nil
}

// BearerClient returns an HTTP client that sends tok on every request.
func BearerClient(ctx context.Context, tok *oauth2.Token, timeout time.Duration) *http.Client {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))
	client.Timeout = timeout
	return client
}
