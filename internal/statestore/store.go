// Package statestore keeps the short-lived OAuth handshake state that ties an
// authorization redirect to its callback.
package statestore

import (
	"context"
	"errors"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
)

var (
	// ErrStateNotFound is returned for unknown, expired or already consumed state.
	ErrStateNotFound = errors.New("handshake state not found")
	// ErrEmptyKey is returned when a handshake has no lookup key.
	ErrEmptyKey = errors.New("handshake key is empty")
	// ErrNilHandshake is returned when Put receives nil.
	ErrNilHandshake = errors.New("handshake is nil")
)

// Handshake is the payload stored between initiate and callback. Key is the
// OAuth2 state value, or the request-token oauth_token for OAuth1.
type Handshake struct {
	Key              string          `json:"key"`
	Provider         social.Provider `json:"provider"`
	UserID           string          `json:"user_id"`
	CodeVerifier     string          `json:"code_verifier,omitempty"`
	OAuthTokenSecret string          `json:"oauth_token_secret,omitempty"`
	RedirectURI      string          `json:"redirect_uri"`
	ReturnTo         string          `json:"return_to,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Store is single-use: Take returns a handshake at most once.
type Store interface {
	Put(ctx context.Context, h *Handshake, ttl time.Duration) error
	// Take returns and deletes the handshake stored under key.
	Take(ctx context.Context, key string) (*Handshake, error)
	Delete(ctx context.Context, key string) error
	Close()
}

func validate(h *Handshake) error {
	if h == nil {
		return ErrNilHandshake
	}
	if h.Key == "" {
		return ErrEmptyKey
	}
	return nil
}
