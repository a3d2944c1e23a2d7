package publish

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/apiclient"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
)

// plainMediaFetcher accepts http URLs and dials through srv's client, so
// tests can serve media from a local httptest server.
func plainMediaFetcher(srv *httptest.Server) *mediaFetcher {
	return &mediaFetcher{
		api:     apiclient.New(social.ProviderTwitter, srv.Client(), ""),
		schemes: []string{"http"},
	}
}

func TestPublicAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"8.8.8.8", true},
		{"2606:4700:4700::1111", true},
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"172.16.0.9", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"100.64.0.1", false},
		{"0.0.0.0", false},
		{"::ffff:127.0.0.1", false},
		{"224.0.0.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := publicAddr(netip.MustParseAddr(tt.addr)); got != tt.want {
				t.Errorf("publicAddr(%s) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}

func TestMediaFetcherRejectsNonHTTPS(t *testing.T) {
	f := newMediaFetcher(social.ProviderTwitter)
	for _, raw := range []string{"http://example.com/cat.png", "file:///etc/passwd", "gopher://x", "not a url"} {
		_, err := f.fetch(context.Background(), []string{raw})
		if !errors.Is(err, social.ErrInvalidPost) {
			t.Errorf("%s: expected ErrInvalidPost, got %v", raw, err)
		}
	}
}

func TestMediaFetcherRefusesLoopback(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("internal"))
	}))
	defer srv.Close()

	f := newMediaFetcher(social.ProviderTwitter)
	_, err := f.fetch(context.Background(), []string{srv.URL + "/cat.png"})
	if !errors.Is(err, social.ErrInvalidPost) {
		t.Fatalf("expected ErrInvalidPost, got %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("loopback server was reached %d times", hits.Load())
	}
}

func TestMediaFetcherHidesResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"AccessKeyId":"INTERNAL-SECRET-123"}`))
	}))
	defer srv.Close()

	_, err := plainMediaFetcher(srv).fetch(context.Background(), []string{srv.URL + "/cat.png"})
	if !errors.Is(err, social.ErrInvalidPost) {
		t.Fatalf("expected ErrInvalidPost, got %v", err)
	}
	if strings.Contains(err.Error(), "INTERNAL-SECRET") {
		t.Errorf("error leaks the fetched body: %v", err)
	}
	if !strings.Contains(err.Error(), "status 403") {
		t.Errorf("error = %v, want the status", err)
	}
}
