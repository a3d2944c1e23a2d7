package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/testutil"
)

func newTestRepo(t *testing.T) ConnectionRepository {
	t.Helper()
	return NewConnectionRepository(testutil.TestDatabase(t), testutil.TestClock(t))
}

func twitterConnection(access, refresh string, expiresAt *time.Time) *social.Connection {
	return &social.Connection{
		UserID:   "user-1",
		Provider: social.ProviderTwitter,
		OAuth2: &social.OAuth2Credentials{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    expiresAt,
			Scope:        "tweet.read tweet.write",
		},
		ProviderUserID:   "42",
		ProviderUsername: "gopher",
	}
}

func TestConnectionRepository_Get_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), "nobody", social.ProviderTwitter)
	if !errors.Is(err, ErrConnectionNotFound) {
		t.Errorf("expected ErrConnectionNotFound, got %v", err)
	}
}

func TestConnectionRepository_UpsertTwiceKeepsOneRow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	expires := testutil.Epoch.Add(6900 * time.Second)

	if err := repo.Upsert(ctx, twitterConnection("A1", "R1", &expires)); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	if err := repo.Upsert(ctx, twitterConnection("A2", "R2", nil)); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	conns, err := repo.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(conns) != 1 {
		t.Fatalf("expected 1 row, got %d", len(conns))
	}
	got := conns[0]
	if got.OAuth2.AccessToken != "A2" || got.OAuth2.RefreshToken != "R2" {
		t.Errorf("second upsert did not overwrite tokens: %+v", got.OAuth2)
	}
	if got.OAuth2.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", got.OAuth2.ExpiresAt)
	}
}

func TestConnectionRepository_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	expires := testutil.Epoch.Add(6900 * time.Second)

	if err := repo.Upsert(ctx, twitterConnection("A1", "R1", &expires)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.Get(ctx, "user-1", social.ProviderTwitter)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.OAuth2.ExpiresAt == nil || !got.OAuth2.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", got.OAuth2.ExpiresAt, expires)
	}
	if got.ProviderUsername != "gopher" || got.ProviderUserID != "42" {
		t.Errorf("identity = %q/%q", got.ProviderUserID, got.ProviderUsername)
	}
	if got.OAuth1 != nil {
		t.Errorf("OAuth1 = %+v, want nil", got.OAuth1)
	}
	if !got.UpdatedAt.Equal(testutil.Epoch) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, testutil.Epoch)
	}
}

func TestConnectionRepository_OAuth1IsIndependent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, twitterConnection("A1", "R1", nil)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	creds := social.OAuth1Credentials{Token: "o1", TokenSecret: "s1"}
	if err := repo.UpdateOAuth1(ctx, "user-1", social.ProviderTwitter, creds, social.Identity{}); err != nil {
		t.Fatalf("UpdateOAuth1() error = %v", err)
	}

	// A later OAuth2 reconnect must not clear the OAuth1 pair.
	if err := repo.Upsert(ctx, twitterConnection("A2", "R2", nil)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.Get(ctx, "user-1", social.ProviderTwitter)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.HasOAuth1() || got.OAuth1.Token != "o1" || got.OAuth1.TokenSecret != "s1" {
		t.Errorf("OAuth1 = %+v", got.OAuth1)
	}
	if got.OAuth2.AccessToken != "A2" {
		t.Errorf("AccessToken = %q, want A2", got.OAuth2.AccessToken)
	}
}

func TestConnectionRepository_UpdateOAuth1_KeepsTokenIssueTime(t *testing.T) {
	svc := testutil.TestDatabase(t)
	clk := testutil.TestClock(t)
	repo := NewConnectionRepository(svc, clk)
	ctx := context.Background()

	if err := repo.Upsert(ctx, twitterConnection("A1", "R1", nil)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	clk.Advance(3 * time.Hour)
	creds := social.OAuth1Credentials{Token: "o1", TokenSecret: "s1"}
	if err := repo.UpdateOAuth1(ctx, "user-1", social.ProviderTwitter, creds, social.Identity{}); err != nil {
		t.Fatalf("UpdateOAuth1() error = %v", err)
	}

	got, err := repo.Get(ctx, "user-1", social.ProviderTwitter)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.OAuth2.IssuedAt.Equal(testutil.Epoch) {
		t.Errorf("IssuedAt = %v, want %v", got.OAuth2.IssuedAt, testutil.Epoch)
	}
	if want := testutil.Epoch.Add(3 * time.Hour); !got.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, want)
	}

	if err := repo.UpdateTokens(ctx, "user-1", social.ProviderTwitter, UpdateTokensParams{AccessToken: "A2"}); err != nil {
		t.Fatalf("UpdateTokens() error = %v", err)
	}
	got, _ = repo.Get(ctx, "user-1", social.ProviderTwitter)
	if want := testutil.Epoch.Add(3 * time.Hour); !got.OAuth2.IssuedAt.Equal(want) {
		t.Errorf("IssuedAt after UpdateTokens = %v, want %v", got.OAuth2.IssuedAt, want)
	}
}

func TestConnectionRepository_UpdateOAuth1_RequiresConnection(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.UpdateOAuth1(context.Background(), "user-1", social.ProviderTwitter,
		social.OAuth1Credentials{Token: "o1", TokenSecret: "s1"}, social.Identity{})
	if !errors.Is(err, ErrConnectionNotFound) {
		t.Errorf("expected ErrConnectionNotFound, got %v", err)
	}
}

func TestConnectionRepository_UpdateTokens(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, twitterConnection("A1", "R1", nil)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	expires := testutil.Epoch.Add(time.Hour)
	err := repo.UpdateTokens(ctx, "user-1", social.ProviderTwitter, UpdateTokensParams{
		AccessToken:  "A2",
		RefreshToken: "R1",
		ExpiresAt:    &expires,
	})
	if err != nil {
		t.Fatalf("UpdateTokens() error = %v", err)
	}

	got, _ := repo.Get(ctx, "user-1", social.ProviderTwitter)
	if got.OAuth2.AccessToken != "A2" || got.OAuth2.RefreshToken != "R1" {
		t.Errorf("tokens = %+v", got.OAuth2)
	}
	if got.OAuth2.Scope != "tweet.read tweet.write" {
		t.Errorf("UpdateTokens must not touch scope, got %q", got.OAuth2.Scope)
	}

	err = repo.UpdateTokens(ctx, "user-2", social.ProviderTwitter, UpdateTokensParams{AccessToken: "x"})
	if !errors.Is(err, ErrConnectionNotFound) {
		t.Errorf("expected ErrConnectionNotFound, got %v", err)
	}
}

func TestConnectionRepository_Delete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_ = repo.Upsert(ctx, twitterConnection("A1", "", nil))

	if err := repo.Delete(ctx, "user-1", social.ProviderTwitter); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "user-1", social.ProviderTwitter); !errors.Is(err, ErrConnectionNotFound) {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestConnectionRepository_InvalidInput(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name string
		conn *social.Connection
	}{
		{"nil", nil},
		{"no user", &social.Connection{Provider: social.ProviderReddit, OAuth2: &social.OAuth2Credentials{AccessToken: "a"}}},
		{"no token", &social.Connection{UserID: "u", Provider: social.ProviderReddit, OAuth2: &social.OAuth2Credentials{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Upsert(ctx, tt.conn); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Upsert() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}
