// Package repository provides persistence for social connections.
package repository

import (
	"context"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/db"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/juju/clock"
)

// ConnectionRepository stores one row per (user, provider).
type ConnectionRepository interface {
	// Upsert writes the OAuth2 credentials and identity, leaving any OAuth1
	// pair untouched.
	Upsert(ctx context.Context, conn *social.Connection) error
	// UpdateOAuth1 writes only the OAuth1 pair of an existing connection.
	UpdateOAuth1(ctx context.Context, userID string, provider social.Provider, creds social.OAuth1Credentials, identity social.Identity) error
	// UpdateTokens replaces the OAuth2 token triple after a refresh.
	UpdateTokens(ctx context.Context, userID string, provider social.Provider, params UpdateTokensParams) error
	Get(ctx context.Context, userID string, provider social.Provider) (*social.Connection, error)
	List(ctx context.Context, userID string) ([]*social.Connection, error)
	Delete(ctx context.Context, userID string, provider social.Provider) error
}

// UpdateTokensParams carries the result of a refresh.
type UpdateTokensParams struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// NewConnectionRepository creates a SQL backed ConnectionRepository.
func NewConnectionRepository(dbService *db.Service, clk clock.Clock) ConnectionRepository {
	if clk == nil {
		clk = clock.WallClock
	}
	return &connectionRepository{dbService: dbService, clock: clk}
}
