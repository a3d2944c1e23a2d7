package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/jwtutil"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/publish"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/testutil"
)

type fakePublisher struct {
	userID string
	err    error
}

func (f *fakePublisher) Channel() social.Provider { return social.ProviderTwitter }

func (f *fakePublisher) Publish(_ context.Context, userID string, post *publish.Post) (*publish.Result, error) {
	f.userID = userID
	if f.err != nil {
		return nil, f.err
	}
	return &publish.Result{Channel: post.Channel, PostID: "1789", URL: "https://x.com/i/web/status/1789", Scheme: publish.SchemeOAuth2}, nil
}

func (f *fakePublisher) Metrics(_ context.Context, _ string, postID string) (*publish.Metrics, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &publish.Metrics{PostID: postID, Likes: 12, Comments: 3}, nil
}

func newMux(t *testing.T, pub *fakePublisher) (*http.ServeMux, string) {
	t.Helper()
	cfg := testutil.TestConfig(t)
	clk := testutil.TestClock(t)
	sessions, err := jwtutil.NewSessions(cfg.SessionSecret, cfg.SessionIssuer, clk)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	token, err := sessions.Issue("user-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, "", cfg, publish.NewCaller(clk, pub), sessions)
	return mux, token
}

func serve(mux *http.ServeMux, token, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestPublishHandler(t *testing.T) {
	pub := &fakePublisher{}
	mux, token := newMux(t, pub)

	rec := serve(mux, token, http.MethodPost, "/api/publish", `{"channel":"x","text":"hello"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res publish.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.PostID != "1789" || res.Channel != social.ProviderTwitter || res.Scheme != publish.SchemeOAuth2 {
		t.Errorf("result = %+v", res)
	}
	if pub.userID != "user-1" {
		t.Errorf("published as %q", pub.userID)
	}
}

func TestPublishHandlerErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		pubErr     error
		token      bool
		wantStatus int
		wantCode   string
	}{
		{"no session", `{"channel":"twitter","text":"hi"}`, nil, false, http.StatusUnauthorized, ""},
		{"malformed json", `{"channel":`, nil, true, http.StatusBadRequest, social.CodeInvalidRequest},
		{"unknown field", `{"channel":"twitter","text":"hi","extra":1}`, nil, true, http.StatusBadRequest, social.CodeInvalidRequest},
		{"invalid channel", `{"channel":"myspace","text":"hi"}`, nil, true, http.StatusBadRequest, social.CodeInvalidRequest},
		{"not connected", `{"channel":"twitter","text":"hi"}`, social.ErrNotConnected, true, http.StatusNotFound, social.CodeNotConnected},
		{"reconnect", `{"channel":"twitter","text":"hi"}`, social.ErrAuthFailed, true, http.StatusUnauthorized, social.CodeReconnectRequired},
		{"unconfigured channel", `{"channel":"reddit","title":"t","subreddit":"golang","text":"hi"}`, nil, true, http.StatusNotFound, social.CodeUnsupportedProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, token := newMux(t, &fakePublisher{err: tt.pubErr})
			if !tt.token {
				token = ""
			}
			rec := serve(mux, token, http.MethodPost, "/api/publish", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" && !strings.Contains(rec.Body.String(), `"code":"`+tt.wantCode+`"`) {
				t.Errorf("body %s lacks code %s", rec.Body.String(), tt.wantCode)
			}
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	mux, token := newMux(t, &fakePublisher{})

	rec := serve(mux, token, http.MethodGet, "/api/posts/twitter/1789/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var m publish.Metrics
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.PostID != "1789" || m.Likes != 12 || !m.FetchedAt.Equal(testutil.Epoch) {
		t.Errorf("metrics = %+v", m)
	}
}

func TestMetricsHandlerNotFound(t *testing.T) {
	mux, token := newMux(t, &fakePublisher{err: social.NewAmbiguousNotFound(social.ErrAuthFailed)})

	rec := serve(mux, token, http.MethodGet, "/api/posts/twitter/1789/metrics", "")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), social.CodePostNotFound) {
		t.Errorf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}
