package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/repository"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/statestore"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/testutil"
	"github.com/juju/clock/testclock"
)

type connectFixture struct {
	svc    *ConnectService
	repo   repository.ConnectionRepository
	states *statestore.MemoryStore
	clock  *testclock.Clock
	tokens []map[string]any
}

// newConnectFixture serves an X-like token endpoint that hands out the
// queued token responses in order.
func newConnectFixture(t *testing.T, repo repository.ConnectionRepository) *connectFixture {
	t.Helper()
	f := &connectFixture{clock: testutil.TestClock(t)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "xyz" || r.PostForm.Get("code_verifier") == "" {
				writeJSON(t, w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
				return
			}
			if len(f.tokens) == 0 {
				writeJSON(t, w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
				return
			}
			tok := f.tokens[0]
			f.tokens = f.tokens[1:]
			writeJSON(t, w, http.StatusOK, tok)
		case "/2/users/me":
			writeJSON(t, w, http.StatusOK, map[string]any{"data": map[string]string{"id": "42", "username": "gtm"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	if repo == nil {
		repo = repository.NewConnectionRepository(testutil.TestDatabase(t), f.clock)
	}
	f.repo = repo
	f.states = statestore.NewMemoryStore(f.clock)

	registry := NewEmptyRegistry()
	registry.Register(NewTwitterProvider("cid", "secret", testEndpoints(srv.URL), srv.Client()))

	f.svc = NewConnectService(ConnectOptions{
		Registry:    registry,
		States:      f.states,
		Connections: repo,
		Clock:       f.clock,
		PublicURL:   "https://app.example.com/",
		StateTTL:    10 * time.Minute,
		Skew:        5 * time.Minute,
	})
	return f
}

func (f *connectFixture) initiate(t *testing.T, userID string) string {
	t.Helper()
	raw, err := f.svc.Initiate(context.Background(), userID, social.ProviderTwitter, "/plans/1")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse authorize url: %v", err)
	}
	if got := u.Query().Get("redirect_uri"); got != "https://app.example.com/connect/twitter/callback" {
		t.Errorf("redirect_uri = %q", got)
	}
	if u.Query().Get("code_challenge") == "" {
		t.Error("authorize url has no code_challenge")
	}
	return u.Query().Get("state")
}

func TestCompleteStoresConnectionWithSkewedExpiry(t *testing.T) {
	f := newConnectFixture(t, nil)
	f.tokens = []map[string]any{{"access_token": "A1", "refresh_token": "R1", "expires_in": 7200, "token_type": "bearer"}}
	ctx := context.Background()

	state := f.initiate(t, "user-1")
	res, err := f.svc.Complete(ctx, social.ProviderTwitter, state, "xyz")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Stage != StagePersisted || res.ReturnTo != "/plans/1" {
		t.Errorf("unexpected result: %+v", res)
	}

	conn, err := f.repo.Get(ctx, "user-1", social.ProviderTwitter)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if conn.OAuth2.AccessToken != "A1" || conn.OAuth2.RefreshToken != "R1" {
		t.Errorf("unexpected tokens: %+v", conn.OAuth2)
	}
	want := testutil.Epoch.Add(6900 * time.Second)
	if conn.OAuth2.ExpiresAt == nil || !conn.OAuth2.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", conn.OAuth2.ExpiresAt, want)
	}
	if conn.ProviderUserID != "42" || conn.ProviderUsername != "gtm" {
		t.Errorf("identity not stored: %+v", conn)
	}
	if f.states.Len() != 0 {
		t.Errorf("handshake left behind: %d entries", f.states.Len())
	}
}

func TestCompleteRejectsWrongState(t *testing.T) {
	f := newConnectFixture(t, nil)
	f.tokens = []map[string]any{{"access_token": "A1", "expires_in": 7200}}
	ctx := context.Background()

	f.initiate(t, "user-1")
	_, err := f.svc.Complete(ctx, social.ProviderTwitter, "wrong", "xyz")
	if !errors.Is(err, social.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if social.ErrorCode(err) != social.CodeInvalidState {
		t.Errorf("ErrorCode = %q", social.ErrorCode(err))
	}
	if _, err := f.repo.Get(ctx, "user-1", social.ProviderTwitter); !errors.Is(err, repository.ErrConnectionNotFound) {
		t.Errorf("expected no stored row, got %v", err)
	}
}

func TestCompleteIsSingleUse(t *testing.T) {
	f := newConnectFixture(t, nil)
	f.tokens = []map[string]any{
		{"access_token": "A1", "expires_in": 7200},
		{"access_token": "A2", "expires_in": 7200},
	}
	ctx := context.Background()

	state := f.initiate(t, "user-1")
	if _, err := f.svc.Complete(ctx, social.ProviderTwitter, state, "xyz"); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	if _, err := f.svc.Complete(ctx, social.ProviderTwitter, state, "xyz"); !errors.Is(err, social.ErrInvalidState) {
		t.Fatalf("replayed callback: expected ErrInvalidState, got %v", err)
	}
}

func TestCompleteTwiceUpsertsOneRow(t *testing.T) {
	f := newConnectFixture(t, nil)
	f.tokens = []map[string]any{
		{"access_token": "A1", "refresh_token": "R1", "expires_in": 7200},
		{"access_token": "B1", "refresh_token": "S1", "expires_in": 3600},
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		state := f.initiate(t, "user-1")
		if _, err := f.svc.Complete(ctx, social.ProviderTwitter, state, "xyz"); err != nil {
			t.Fatalf("Complete #%d: %v", i+1, err)
		}
	}

	conns, err := f.svc.Connections(ctx, "user-1")
	if err != nil {
		t.Fatalf("Connections: %v", err)
	}
	if len(conns) != 1 {
		t.Fatalf("expected 1 row, got %d", len(conns))
	}
	if conns[0].OAuth2.AccessToken != "B1" || conns[0].OAuth2.RefreshToken != "S1" {
		t.Errorf("second completion did not overwrite: %+v", conns[0].OAuth2)
	}
}

func TestCompleteErrors(t *testing.T) {
	f := newConnectFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		provider social.Provider
		state    string
		code     string
		wantErr  error
	}{
		{"missing code", social.ProviderTwitter, "s", "", social.ErrMissingCodeOrState},
		{"missing state", social.ProviderTwitter, "", "c", social.ErrMissingCodeOrState},
		{"unconfigured provider", social.ProviderReddit, "s", "c", social.ErrUnsupportedProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Complete(ctx, tt.provider, tt.state, tt.code)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCompleteExchangeFailure(t *testing.T) {
	f := newConnectFixture(t, nil)
	ctx := context.Background()

	state := f.initiate(t, "user-1")
	res, err := f.svc.Complete(ctx, social.ProviderTwitter, state, "expired")
	if !errors.Is(err, social.ErrExchangeFailed) {
		t.Fatalf("expected ErrExchangeFailed, got %v", err)
	}
	if res == nil || res.Stage != StageExchangeFailed {
		t.Errorf("unexpected result: %+v", res)
	}
	if f.states.Len() != 0 {
		t.Error("handshake must be consumed after a failed exchange")
	}
}

func TestCompleteRejectsCrossProviderState(t *testing.T) {
	f := newConnectFixture(t, nil)
	ctx := context.Background()

	err := f.states.Put(ctx, &statestore.Handshake{
		Key: "abc123", Provider: social.ProviderReddit, UserID: "user-1",
	}, time.Minute)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := f.svc.Complete(ctx, social.ProviderTwitter, "abc123", "xyz"); !errors.Is(err, social.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

type failingUpsertRepo struct {
	repository.ConnectionRepository
}

func (failingUpsertRepo) Upsert(context.Context, *social.Connection) error {
	return errors.New("database is locked")
}

func TestCompletePersistFailureStillSucceeds(t *testing.T) {
	f := newConnectFixture(t, failingUpsertRepo{})
	f.tokens = []map[string]any{{"access_token": "A1", "expires_in": 7200}}

	state := f.initiate(t, "user-1")
	res, err := f.svc.Complete(context.Background(), social.ProviderTwitter, state, "xyz")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Stage != StagePersistFailed || res.PersistErr == nil {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Connection == nil || res.Connection.OAuth2.AccessToken != "A1" {
		t.Errorf("token must still be reported: %+v", res.Connection)
	}
}

func TestExpiresAt(t *testing.T) {
	now := testutil.Epoch
	if got := ExpiresAt(now, 0, 5*time.Minute); got != nil {
		t.Errorf("unknown lifetime must be nil, got %v", got)
	}
	got := ExpiresAt(now, 7200, 5*time.Minute)
	if got == nil || !got.Equal(now.Add(6900*time.Second)) {
		t.Errorf("ExpiresAt = %v", got)
	}
}

type stubOAuth1 struct{}

func (stubOAuth1) Name() social.Provider { return social.ProviderTwitter }

func (stubOAuth1) RequestToken(context.Context, string) (*RequestToken, error) {
	return &RequestToken{Token: "rt", TokenSecret: "rts"}, nil
}

func (stubOAuth1) AuthorizationURL(token string) string { return "https://x.test/authorize?oauth_token=" + token }

func (stubOAuth1) AccessToken(_ context.Context, token, secret, verifier string) (*AccessToken, error) {
	if token != "rt" || secret != "rts" || verifier != "v1" {
		return nil, social.ErrExchangeFailed
	}
	return &AccessToken{Token: "at", TokenSecret: "ats", Identity: social.Identity{ProviderUserID: "42"}}, nil
}

func (stubOAuth1) RefreshToken(context.Context, string) (*Token, error) {
	return nil, social.ErrRefreshUnsupported
}

func TestOAuth1ConnectAddsPairToExistingConnection(t *testing.T) {
	f := newConnectFixture(t, nil)
	f.svc.registry.RegisterOAuth1(stubOAuth1{})
	f.tokens = []map[string]any{{"access_token": "A1", "refresh_token": "R1", "expires_in": 7200}}
	ctx := context.Background()

	if _, err := f.svc.InitiateOAuth1(ctx, "user-1", social.ProviderTwitter, ""); !errors.Is(err, social.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected before an OAuth2 connection exists, got %v", err)
	}

	state := f.initiate(t, "user-1")
	if _, err := f.svc.Complete(ctx, social.ProviderTwitter, state, "xyz"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	authURL, err := f.svc.InitiateOAuth1(ctx, "user-1", social.ProviderTwitter, "")
	if err != nil {
		t.Fatalf("InitiateOAuth1: %v", err)
	}
	if authURL != "https://x.test/authorize?oauth_token=rt" {
		t.Errorf("authorize url = %q", authURL)
	}

	res, err := f.svc.CompleteOAuth1(ctx, social.ProviderTwitter, "rt", "v1")
	if err != nil {
		t.Fatalf("CompleteOAuth1: %v", err)
	}
	if res.Stage != StagePersisted {
		t.Errorf("stage = %s", res.Stage)
	}

	conn, err := f.repo.Get(ctx, "user-1", social.ProviderTwitter)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !conn.HasOAuth1() || conn.OAuth1.Token != "at" || conn.OAuth2.AccessToken != "A1" {
		t.Errorf("expected both credential pairs, got %+v / %+v", conn.OAuth1, conn.OAuth2)
	}

	if _, err := f.svc.CompleteOAuth1(ctx, social.ProviderTwitter, "rt", "v1"); !errors.Is(err, social.ErrInvalidState) {
		t.Errorf("replayed oauth1 callback: expected ErrInvalidState, got %v", err)
	}
}

func TestDisconnect(t *testing.T) {
	f := newConnectFixture(t, nil)
	f.tokens = []map[string]any{{"access_token": "A1", "expires_in": 7200}}
	ctx := context.Background()

	state := f.initiate(t, "user-1")
	if _, err := f.svc.Complete(ctx, social.ProviderTwitter, state, "xyz"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := f.svc.Disconnect(ctx, "user-1", social.ProviderTwitter); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := f.svc.Disconnect(ctx, "user-1", social.ProviderTwitter); !errors.Is(err, social.ErrNotConnected) {
		t.Errorf("second Disconnect: expected ErrNotConnected, got %v", err)
	}
}
