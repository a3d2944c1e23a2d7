// Package tokens hands out valid provider access tokens, refreshing stored
// credentials when they are about to expire.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/oauth"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/repository"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/juju/clock"
	"golang.org/x/sync/singleflight"
)

// DefaultSkew is the margin kept between use and provider-side expiry.
const DefaultSkew = 5 * time.Minute

// refreshTimeout bounds a shared refresh, which outlives any single caller.
const refreshTimeout = 30 * time.Second

// Options wires a Manager.
type Options struct {
	Registry    *oauth.Registry
	Connections repository.ConnectionRepository
	Clock       clock.Clock
	Skew        time.Duration
}

// Manager is the only way publish and read paths obtain access tokens.
// Refreshes for the same (user, provider) are collapsed within a process.
type Manager struct {
	registry *oauth.Registry
	conns    repository.ConnectionRepository
	clock    clock.Clock
	skew     time.Duration
	flight   singleflight.Group
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	return &Manager{
		registry: opts.Registry,
		conns:    opts.Connections,
		clock:    opts.Clock,
		skew:     opts.Skew,
	}
}

// Connection loads the stored connection, mapping a missing row to
// social.ErrNotConnected.
func (m *Manager) Connection(ctx context.Context, userID string, provider social.Provider) (*social.Connection, error) {
	conn, err := m.conns.Get(ctx, userID, provider)
	if err != nil {
		if errors.Is(err, repository.ErrConnectionNotFound) {
			return nil, social.ErrNotConnected
		}
		return nil, fmt.Errorf("%w: %w", social.ErrStorage, err)
	}
	return conn, nil
}

// OAuth1Credentials returns the user-context OAuth1 pair. These never
// expire, so no refresh is attempted.
func (m *Manager) OAuth1Credentials(ctx context.Context, userID string, provider social.Provider) (*social.OAuth1Credentials, error) {
	conn, err := m.Connection(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	if !conn.HasOAuth1() {
		return nil, fmt.Errorf("%w: no oauth1 credentials for %s", social.ErrNotConnected, provider)
	}
	return conn.OAuth1, nil
}

// GetValidAccessToken returns the stored OAuth2 access token, refreshing it
// first when now + skew has reached its expiry.
func (m *Manager) GetValidAccessToken(ctx context.Context, userID string, provider social.Provider) (string, error) {
	conn, err := m.Connection(ctx, userID, provider)
	if err != nil {
		return "", err
	}
	if !conn.HasOAuth2() {
		return "", social.ErrNotConnected
	}
	if !m.expired(conn) {
		return conn.OAuth2.AccessToken, nil
	}

	key := userID + "|" + string(provider)
	ch := m.flight.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.refresh(rctx, conn)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			logger.FromContext(ctx).Debug("Joined in-flight token refresh", "provider", provider)
		}
		return res.Val.(string), nil
	}
}

// expired compares against the stored expiry, or against the time the pair
// was issued plus the provider default lifetime when the provider never
// reported one.
func (m *Manager) expired(conn *social.Connection) bool {
	deadline := conn.OAuth2.ExpiresAt
	if deadline == nil {
		p, err := m.registry.Provider(conn.Provider)
		if err != nil {
			return false
		}
		d := conn.OAuth2.IssuedAt.Add(p.DefaultTokenLifetime() - m.skew)
		deadline = &d
	}
	return !m.clock.Now().Add(m.skew).Before(*deadline)
}

func (m *Manager) refresh(ctx context.Context, conn *social.Connection) (string, error) {
	log := logger.FromContext(ctx).With("provider", conn.Provider, "user_id", conn.UserID)

	if conn.OAuth2.RefreshToken == "" {
		return "", social.ErrRefreshUnavailable
	}
	p, err := m.registry.Provider(conn.Provider)
	if err != nil {
		return "", err
	}

	tok, err := p.RefreshToken(ctx, conn.OAuth2.RefreshToken)
	if err != nil {
		log.Warn("Token refresh failed", "error", err)
		if errors.Is(err, social.ErrRefreshFailed) || errors.Is(err, social.ErrRefreshUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", social.ErrRefreshFailed, err)
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = conn.OAuth2.RefreshToken
	}
	params := repository.UpdateTokensParams{
		AccessToken:  tok.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    oauth.ExpiresAt(m.clock.Now(), tok.ExpiresIn, m.skew),
	}
	if err := m.conns.UpdateTokens(ctx, conn.UserID, conn.Provider, params); err != nil {
		// The new token is valid even if it could not be saved.
		log.Error("Failed to store refreshed token", "error", err)
	} else {
		log.Info("Access token refreshed", "rotated", refreshToken != conn.OAuth2.RefreshToken)
	}
	return tok.AccessToken, nil
}
