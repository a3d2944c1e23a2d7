// Package oauth implements the per-provider OAuth clients and the connect
// flow that turns a callback into a stored connection.
package oauth

import (
	"context"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
)

// Token is the result of a code exchange or refresh.
type Token struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the provider reported lifetime in seconds; 0 means unknown.
	ExpiresIn int64
	Scope     string
	TokenType string
}

// Provider is an OAuth 2.0 authorization-code client.
type Provider interface {
	Name() social.Provider

	// AuthorizationURL builds the consent URL. codeChallenge is ignored by
	// providers that do not support PKCE.
	AuthorizationURL(state, redirectURI, codeChallenge string) (string, error)

	// ExchangeCode trades an authorization code for tokens.
	ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*Token, error)

	// RefreshToken obtains a new access token.
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)

	// FetchIdentity returns the remote account behind accessToken.
	FetchIdentity(ctx context.Context, accessToken string) (*social.Identity, error)

	// UsesPKCE reports whether the authorize step carries a code challenge.
	UsesPKCE() bool

	// DefaultTokenLifetime is assumed when a token arrives without expires_in.
	DefaultTokenLifetime() time.Duration
}

// RequestToken is the temporary credential of the OAuth 1.0a handshake.
type RequestToken struct {
	Token       string
	TokenSecret string
}

// AccessToken is the OAuth 1.0a user credential plus the account it belongs to.
type AccessToken struct {
	Token       string
	TokenSecret string
	Identity    social.Identity
}

// OAuth1Provider is an OAuth 1.0a three-legged client.
type OAuth1Provider interface {
	Name() social.Provider
	RequestToken(ctx context.Context, callbackURL string) (*RequestToken, error)
	AuthorizationURL(oauthToken string) string
	AccessToken(ctx context.Context, oauthToken, oauthTokenSecret, verifier string) (*AccessToken, error)
	// RefreshToken always fails with social.ErrRefreshUnsupported.
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)
}

// Endpoints are the provider URLs; tests point them at httptest servers.
type Endpoints struct {
	AuthURL  string
	TokenURL string
	APIBase  string
}
