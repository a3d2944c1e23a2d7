package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/auth"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/repository"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/statestore"
	"github.com/juju/clock"
)

// Stage is a step of one connection attempt.
type Stage string

const (
	StageInitiated        Stage = "INITIATED"
	StageCallbackReceived Stage = "CALLBACK_RECEIVED"
	StageStateVerified    Stage = "STATE_VERIFIED"
	StageTokenExchanged   Stage = "TOKEN_EXCHANGED"
	StageExchangeFailed   Stage = "EXCHANGE_FAILED"
	StageIdentityFetched  Stage = "IDENTITY_FETCHED"
	StagePersisted        Stage = "PERSISTED"
	StagePersistFailed    Stage = "PERSIST_FAILED"
)

// ConnectResult is the outcome of a callback. A PERSIST_FAILED result is
// still a successful authorization; PersistErr holds the storage error.
type ConnectResult struct {
	Stage      Stage
	Connection *social.Connection
	ReturnTo   string
	PersistErr error
}

// ConnectOptions wires a ConnectService.
type ConnectOptions struct {
	Registry    *Registry
	States      statestore.Store
	Connections repository.ConnectionRepository
	Clock       clock.Clock
	// PublicURL is the base of every redirect URI.
	PublicURL string
	StateTTL  time.Duration
	Skew      time.Duration
}

// ConnectService runs the authorize/callback handshake for every provider.
type ConnectService struct {
	registry  *Registry
	states    statestore.Store
	conns     repository.ConnectionRepository
	clock     clock.Clock
	publicURL string
	stateTTL  time.Duration
	skew      time.Duration
}

// NewConnectService creates a ConnectService.
func NewConnectService(opts ConnectOptions) *ConnectService {
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	if opts.StateTTL <= 0 {
		opts.StateTTL = 10 * time.Minute
	}
	return &ConnectService{
		registry:  opts.Registry,
		states:    opts.States,
		conns:     opts.Connections,
		clock:     opts.Clock,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		stateTTL:  opts.StateTTL,
		skew:      opts.Skew,
	}
}

// CallbackPath is the OAuth2 redirect path for provider.
func CallbackPath(provider social.Provider) string {
	return "/connect/" + string(provider) + "/callback"
}

// OAuth1CallbackPath is the OAuth 1.0a callback path for provider.
func OAuth1CallbackPath(provider social.Provider) string {
	return "/connect/" + string(provider) + "/oauth1/callback"
}

// ExpiresAt returns now + expiresIn - skew, or nil when the lifetime is unknown.
func ExpiresAt(now time.Time, expiresIn int64, skew time.Duration) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	t := now.Add(time.Duration(expiresIn)*time.Second - skew).UTC()
	return &t
}

// Initiate stores a fresh handshake and returns the provider consent URL.
func (s *ConnectService) Initiate(ctx context.Context, userID string, provider social.Provider, returnTo string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}
	p, err := s.registry.Provider(provider)
	if err != nil {
		return "", err
	}
	pkce, err := auth.GeneratePKCE()
	if err != nil {
		return "", err
	}

	h := &statestore.Handshake{
		Key:         pkce.State,
		Provider:    provider,
		UserID:      userID,
		RedirectURI: s.publicURL + CallbackPath(provider),
		ReturnTo:    returnTo,
		CreatedAt:   s.clock.Now().UTC(),
	}
	challenge := ""
	if p.UsesPKCE() {
		h.CodeVerifier = pkce.CodeVerifier
		challenge = pkce.CodeChallenge
	}

	authURL, err := p.AuthorizationURL(h.Key, h.RedirectURI, challenge)
	if err != nil {
		return "", err
	}
	if err := s.states.Put(ctx, h, s.stateTTL); err != nil {
		return "", fmt.Errorf("%w: %w", social.ErrStorage, err)
	}

	logger.FromContext(ctx).Info("Connect initiated",
		"provider", provider, "user_id", userID, "stage", StageInitiated)
	return authURL, nil
}

// Complete handles the OAuth2 callback. Unknown, expired, replayed or
// cross-provider state fails with social.ErrInvalidState before anything is
// written.
func (s *ConnectService) Complete(ctx context.Context, provider social.Provider, state, code string) (*ConnectResult, error) {
	log := logger.FromContext(ctx).With("provider", provider)
	if state == "" || code == "" {
		return nil, social.ErrMissingCodeOrState
	}
	p, err := s.registry.Provider(provider)
	if err != nil {
		return nil, err
	}
	log.Debug("Callback received", "stage", StageCallbackReceived)

	h, err := s.take(ctx, provider, state)
	if err != nil {
		return nil, err
	}
	result := &ConnectResult{Stage: StageStateVerified, ReturnTo: h.ReturnTo}
	log = log.With("user_id", h.UserID)

	tok, err := p.ExchangeCode(ctx, code, h.RedirectURI, h.CodeVerifier)
	if err != nil {
		result.Stage = StageExchangeFailed
		log.Warn("Token exchange failed", "stage", result.Stage, "error", err)
		return result, err
	}
	result.Stage = StageTokenExchanged
	now := s.clock.Now().UTC()

	conn := &social.Connection{
		UserID:   h.UserID,
		Provider: provider,
		OAuth2: &social.OAuth2Credentials{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			ExpiresAt:    ExpiresAt(now, tok.ExpiresIn, s.skew),
			Scope:        tok.Scope,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if id, err := p.FetchIdentity(ctx, tok.AccessToken); err != nil {
		log.Warn("Identity lookup failed, storing connection without it", "error", err)
	} else {
		conn.ProviderUserID = id.ProviderUserID
		conn.ProviderUsername = id.ProviderUsername
		result.Stage = StageIdentityFetched
	}
	result.Connection = conn

	if err := s.conns.Upsert(ctx, conn); err != nil {
		result.Stage = StagePersistFailed
		result.PersistErr = err
		log.Error("Failed to persist connection after successful authorization",
			"stage", result.Stage, "error", err)
		return result, nil
	}
	result.Stage = StagePersisted
	log.Info("Connection stored", "stage", result.Stage, "provider_user_id", conn.ProviderUserID)
	return result, nil
}

// Abort drops the handshake behind state, used when the provider redirects
// back with an error instead of a code.
func (s *ConnectService) Abort(ctx context.Context, state string) {
	if state == "" {
		return
	}
	if err := s.states.Delete(ctx, state); err != nil {
		logger.FromContext(ctx).Warn("Failed to delete handshake", "error", err)
	}
}

// InitiateOAuth1 starts the OAuth 1.0a flow that adds a user-context token
// pair to an existing connection.
func (s *ConnectService) InitiateOAuth1(ctx context.Context, userID string, provider social.Provider, returnTo string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}
	p, err := s.registry.OAuth1(provider)
	if err != nil {
		return "", err
	}
	if _, err := s.conns.Get(ctx, userID, provider); err != nil {
		if errors.Is(err, repository.ErrConnectionNotFound) {
			return "", social.ErrNotConnected
		}
		return "", fmt.Errorf("%w: %w", social.ErrStorage, err)
	}

	callback := s.publicURL + OAuth1CallbackPath(provider)
	rt, err := p.RequestToken(ctx, callback)
	if err != nil {
		return "", fmt.Errorf("%w: %w", social.ErrExchangeFailed, err)
	}

	h := &statestore.Handshake{
		Key:              rt.Token,
		Provider:         provider,
		UserID:           userID,
		OAuthTokenSecret: rt.TokenSecret,
		RedirectURI:      callback,
		ReturnTo:         returnTo,
		CreatedAt:        s.clock.Now().UTC(),
	}
	if err := s.states.Put(ctx, h, s.stateTTL); err != nil {
		return "", fmt.Errorf("%w: %w", social.ErrStorage, err)
	}

	logger.FromContext(ctx).Info("OAuth1 connect initiated",
		"provider", provider, "user_id", userID, "stage", StageInitiated)
	return p.AuthorizationURL(rt.Token), nil
}

// CompleteOAuth1 handles the OAuth 1.0a callback. The request token is the
// handshake key.
func (s *ConnectService) CompleteOAuth1(ctx context.Context, provider social.Provider, oauthToken, verifier string) (*ConnectResult, error) {
	log := logger.FromContext(ctx).With("provider", provider, "scheme", "oauth1")
	if oauthToken == "" || verifier == "" {
		return nil, social.ErrMissingCodeOrState
	}
	p, err := s.registry.OAuth1(provider)
	if err != nil {
		return nil, err
	}

	h, err := s.take(ctx, provider, oauthToken)
	if err != nil {
		return nil, err
	}
	result := &ConnectResult{Stage: StageStateVerified, ReturnTo: h.ReturnTo}
	log = log.With("user_id", h.UserID)

	at, err := p.AccessToken(ctx, oauthToken, h.OAuthTokenSecret, verifier)
	if err != nil {
		result.Stage = StageExchangeFailed
		log.Warn("OAuth1 access token exchange failed", "stage", result.Stage, "error", err)
		return result, err
	}
	result.Stage = StageIdentityFetched

	creds := social.OAuth1Credentials{Token: at.Token, TokenSecret: at.TokenSecret}
	result.Connection = &social.Connection{
		UserID:           h.UserID,
		Provider:         provider,
		OAuth1:           &creds,
		ProviderUserID:   at.Identity.ProviderUserID,
		ProviderUsername: at.Identity.ProviderUsername,
	}

	if err := s.conns.UpdateOAuth1(ctx, h.UserID, provider, creds, at.Identity); err != nil {
		if errors.Is(err, repository.ErrConnectionNotFound) {
			return result, social.ErrNotConnected
		}
		result.Stage = StagePersistFailed
		result.PersistErr = err
		log.Error("Failed to persist OAuth1 credentials after successful authorization",
			"stage", result.Stage, "error", err)
		return result, nil
	}
	result.Stage = StagePersisted
	log.Info("OAuth1 credentials stored", "stage", result.Stage)
	return result, nil
}

// Disconnect removes the stored connection.
func (s *ConnectService) Disconnect(ctx context.Context, userID string, provider social.Provider) error {
	if err := s.conns.Delete(ctx, userID, provider); err != nil {
		if errors.Is(err, repository.ErrConnectionNotFound) {
			return social.ErrNotConnected
		}
		return fmt.Errorf("%w: %w", social.ErrStorage, err)
	}
	logger.FromContext(ctx).Info("Connection removed", "provider", provider, "user_id", userID)
	return nil
}

// Connections lists every stored connection of userID.
func (s *ConnectService) Connections(ctx context.Context, userID string) ([]*social.Connection, error) {
	conns, err := s.conns.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", social.ErrStorage, err)
	}
	return conns, nil
}

// Providers lists the providers that can be connected.
func (s *ConnectService) Providers() []social.Provider {
	return s.registry.Names()
}

func (s *ConnectService) take(ctx context.Context, provider social.Provider, key string) (*statestore.Handshake, error) {
	h, err := s.states.Take(ctx, key)
	if err != nil {
		if errors.Is(err, statestore.ErrStateNotFound) {
			return nil, social.ErrInvalidState
		}
		return nil, fmt.Errorf("%w: %w", social.ErrStorage, err)
	}
	if h.Provider != provider {
		return nil, fmt.Errorf("%w: handshake belongs to %s", social.ErrInvalidState, h.Provider)
	}
	return h, nil
}
