// Package jwtutil issues and verifies the local account session tokens that
// identify the user behind a connect or publish request.
package jwtutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	// ErrMissingSubject is returned when the JWT is missing a subject (user id)
	ErrMissingSubject = errors.New("missing subject (user id) in token")
	// ErrInvalidToken is returned when the JWT fails parsing, signature or
	// claim validation
	ErrInvalidToken = errors.New("invalid session token")
	// ErrWeakSecret is returned for HMAC secrets shorter than 32 bytes
	ErrWeakSecret = errors.New("session secret must be at least 32 bytes")
)

const minSecretLength = 32

// Claims represents the claims we care about from a session token
type Claims struct {
	Iss string `json:"iss"` // Issuer
	Sub string `json:"sub"` // Subject (local user id)
	Exp int64  `json:"exp"` // Expiry time
	Iat int64  `json:"iat"` // Issued at
}

// Sessions signs and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	issuer string
	clock  clock.Clock
}

// NewSessions creates a Sessions; a nil clock means the wall clock.
func NewSessions(secret, issuer string, clk clock.Clock) (*Sessions, error) {
	if len(secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Sessions{secret: []byte(secret), issuer: issuer, clock: clk}, nil
}

// Issue returns a signed token for userID valid for ttl.
func (s *Sessions) Issue(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", ErrMissingSubject
	}
	now := s.clock.Now()
	tok, err := jwt.NewBuilder().
		Issuer(s.issuer).
		Subject(userID).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build session token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return string(signed), nil
}

// Verify checks signature, issuer and expiry and returns the claims.
func (s *Sessions) Verify(_ context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(s.issuer),
		jwt.WithClock(jwt.ClockFunc(s.clock.Now)),
		jwt.WithAcceptableSkew(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if token.Subject() == "" {
		return nil, ErrMissingSubject
	}

	return &Claims{
		Iss: token.Issuer(),
		Sub: token.Subject(),
		Exp: token.Expiration().Unix(),
		Iat: token.IssuedAt().Unix(),
	}, nil
}
