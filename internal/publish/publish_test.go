package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/testutil"
)

type stubCreds struct {
	token    string
	tokenErr error
	oauth1   *social.OAuth1Credentials
	conn     *social.Connection
}

func (s *stubCreds) GetValidAccessToken(context.Context, string, social.Provider) (string, error) {
	if s.tokenErr != nil {
		return "", s.tokenErr
	}
	if s.token == "" {
		return "", social.ErrNotConnected
	}
	return s.token, nil
}

func (s *stubCreds) OAuth1Credentials(context.Context, string, social.Provider) (*social.OAuth1Credentials, error) {
	if s.oauth1 == nil {
		return nil, social.ErrNotConnected
	}
	return s.oauth1, nil
}

func (s *stubCreds) Connection(_ context.Context, userID string, provider social.Provider) (*social.Connection, error) {
	if s.conn == nil {
		return &social.Connection{UserID: userID, Provider: provider}, nil
	}
	return s.conn, nil
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

type fakePublisher struct {
	channel social.Provider
	calls   int
}

func (f *fakePublisher) Channel() social.Provider { return f.channel }

func (f *fakePublisher) Publish(_ context.Context, _ string, post *Post) (*Result, error) {
	f.calls++
	return &Result{Channel: f.channel, PostID: "p1", Scheme: SchemeOAuth2}, nil
}

func (f *fakePublisher) Metrics(_ context.Context, _ string, postID string) (*Metrics, error) {
	return &Metrics{PostID: postID, Likes: 3}, nil
}

func TestCallerPublishValidates(t *testing.T) {
	fake := &fakePublisher{channel: social.ProviderTwitter}
	c := NewCaller(testutil.TestClock(t), fake)
	ctx := context.Background()

	tests := []struct {
		name    string
		post    *Post
		wantErr error
	}{
		{"nil post", nil, social.ErrInvalidPost},
		{"unknown channel", &Post{Channel: "myspace", Text: "hi"}, social.ErrInvalidPost},
		{"bad link", &Post{Channel: social.ProviderTwitter, Text: "hi", Link: "not a url"}, social.ErrInvalidPost},
		{"too many media", &Post{Channel: social.ProviderTwitter, MediaURLs: []string{
			"https://a.test/1.png", "https://a.test/2.png", "https://a.test/3.png",
			"https://a.test/4.png", "https://a.test/5.png",
		}}, social.ErrInvalidPost},
		{"no publisher", &Post{Channel: social.ProviderReddit, Title: "t"}, social.ErrUnsupportedProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Publish(ctx, "user-1", tt.post); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
	if fake.calls != 0 {
		t.Errorf("publisher called %d times for invalid posts", fake.calls)
	}

	res, err := c.Publish(ctx, "user-1", &Post{Channel: social.ProviderTwitter, Text: "hello"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if res.PostID != "p1" || fake.calls != 1 {
		t.Errorf("unexpected result %+v after %d calls", res, fake.calls)
	}
}

func TestCallerMetricsStampsFetchTime(t *testing.T) {
	clk := testutil.TestClock(t)
	c := NewCaller(clk, &fakePublisher{channel: social.ProviderReddit})
	clk.Advance(time.Minute)

	m, err := c.Metrics(context.Background(), "user-1", social.ProviderReddit, "abc")
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if !m.FetchedAt.Equal(testutil.Epoch.Add(time.Minute)) || m.Likes != 3 {
		t.Errorf("unexpected metrics: %+v", m)
	}
	if _, err := c.Metrics(context.Background(), "user-1", social.ProviderReddit, ""); !errors.Is(err, social.ErrInvalidPost) {
		t.Errorf("expected ErrInvalidPost for an empty id, got %v", err)
	}
	if got := c.Channels(); len(got) != 1 || got[0] != social.ProviderReddit {
		t.Errorf("Channels = %v", got)
	}
}

func TestClassifyReadError(t *testing.T) {
	ctx := context.Background()
	unauthorized := social.NewProviderError(social.ProviderTwitter, "tweet_metrics", 401, []byte("Unauthorized"))
	ok := func(context.Context) error { return nil }
	dead := func(context.Context) error {
		return social.NewProviderError(social.ProviderTwitter, "users_me", 401, nil)
	}
	flaky := func(context.Context) error { return errors.New("connection reset") }

	t.Run("404 is not found", func(t *testing.T) {
		err := ClassifyReadError(ctx, social.ProviderTwitter,
			social.NewProviderError(social.ProviderTwitter, "tweet_metrics", 404, nil), dead)
		if !errors.Is(err, social.ErrPostNotFound) || errors.Is(err, social.ErrAmbiguousNotFound) {
			t.Errorf("unexpected classification: %v", err)
		}
	})

	t.Run("401 with valid token is ambiguous not found", func(t *testing.T) {
		err := ClassifyReadError(ctx, social.ProviderTwitter, unauthorized, ok)
		if !errors.Is(err, social.ErrPostNotFound) || !errors.Is(err, social.ErrAmbiguousNotFound) {
			t.Errorf("unexpected classification: %v", err)
		}
		if social.StatusCode(err) != 401 {
			t.Error("original provider error must stay reachable")
		}
	})

	t.Run("401 with invalid token is auth failure", func(t *testing.T) {
		err := ClassifyReadError(ctx, social.ProviderTwitter, unauthorized, dead)
		if !errors.Is(err, social.ErrAuthFailed) || errors.Is(err, social.ErrPostNotFound) {
			t.Errorf("unexpected classification: %v", err)
		}
		if social.ErrorCode(err) != social.CodeReconnectRequired {
			t.Errorf("ErrorCode = %q", social.ErrorCode(err))
		}
	})

	t.Run("probe failure keeps original", func(t *testing.T) {
		err := ClassifyReadError(ctx, social.ProviderTwitter, unauthorized, flaky)
		if err != unauthorized {
			t.Errorf("expected the original error, got %v", err)
		}
	})

	t.Run("other errors pass through", func(t *testing.T) {
		boom := social.NewProviderError(social.ProviderTwitter, "tweet_metrics", 503, nil)
		if err := ClassifyReadError(ctx, social.ProviderTwitter, boom, ok); err != boom {
			t.Errorf("expected passthrough, got %v", err)
		}
	})
}
