package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/telemetry"
	"golang.org/x/oauth2"
)

// tokenExchanger wraps golang.org/x/oauth2 for the code and refresh grants
// so every provider maps errors and expiry the same way.
type tokenExchanger struct {
	provider   social.Provider
	conf       oauth2.Config
	httpClient *http.Client
}

func newTokenExchanger(provider social.Provider, conf oauth2.Config, httpClient *http.Client) *tokenExchanger {
	return &tokenExchanger{provider: provider, conf: conf, httpClient: httpClient}
}

func (x *tokenExchanger) config(redirectURI string) *oauth2.Config {
	conf := x.conf
	conf.RedirectURL = redirectURI
	return &conf
}

func (x *tokenExchanger) ctx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, x.httpClient)
}

func (x *tokenExchanger) authCodeURL(state, redirectURI string, opts ...oauth2.AuthCodeOption) string {
	return x.config(redirectURI).AuthCodeURL(state, opts...)
}

func (x *tokenExchanger) exchange(ctx context.Context, code, redirectURI string, opts ...oauth2.AuthCodeOption) (*Token, error) {
	tok, err := x.config(redirectURI).Exchange(x.ctx(ctx), code, opts...)
	telemetry.AddRequestAttributes(ctx,
		telemetry.KeyProvider.String(string(x.provider)),
		telemetry.KeyOperation.String("exchange_code"),
	)
	if err != nil {
		return nil, x.wrap("exchange_code", social.ErrExchangeFailed, err)
	}
	return tokenFromOAuth2(tok), nil
}

func (x *tokenExchanger) refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, social.ErrRefreshUnavailable
	}
	src := x.conf.TokenSource(x.ctx(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	telemetry.AddRequestAttributes(ctx,
		telemetry.KeyProvider.String(string(x.provider)),
		telemetry.KeyOperation.String("refresh_token"),
	)
	if err != nil {
		return nil, x.wrap("refresh_token", social.ErrRefreshFailed, err)
	}
	return tokenFromOAuth2(tok), nil
}

func (x *tokenExchanger) wrap(op string, kind, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return fmt.Errorf("%w: %w", kind, social.NewProviderError(x.provider, op, status, re.Body))
	}
	return fmt.Errorf("%w: %s %s: %v", kind, x.provider, op, err)
}

func tokenFromOAuth2(tok *oauth2.Token) *Token {
	out := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    expiresIn(tok),
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		out.Scope = scope
	}
	return out
}

// expiresIn reads the raw expires_in field, falling back to the computed expiry.
func expiresIn(tok *oauth2.Token) int64 {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	if !tok.Expiry.IsZero() {
		if d := time.Until(tok.Expiry); d > 0 {
			return int64(d.Round(time.Second) / time.Second)
		}
	}
	return 0
}
