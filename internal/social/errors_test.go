package social

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid state", fmt.Errorf("callback: %w", ErrInvalidState), "invalid_state"},
		{"missing code", ErrMissingCodeOrState, "missing_code_or_state"},
		{"denied", ErrAccessDenied, "oauth_denied"},
		{"exchange", fmt.Errorf("twitter: %w", ErrExchangeFailed), "token_exchange_failed"},
		{"storage", fmt.Errorf("%w: disk full", ErrStorage), "storage_error"},
		{"not connected", ErrNotConnected, "not_connected"},
		{"refresh unavailable", ErrRefreshUnavailable, "refresh_unavailable"},
		{"refresh failed", ErrRefreshFailed, "refresh_failed"},
		{"auth failed", ErrAuthFailed, "reconnect_required"},
		{"post not found", ErrPostNotFound, "post_not_found"},
		{"ambiguous", NewAmbiguousNotFound(NewProviderError(ProviderTwitter, "metrics", 401, nil)), "post_not_found"},
		{"ambiguous over auth failure", NewAmbiguousNotFound(fmt.Errorf("%w: 401", ErrAuthFailed)), "post_not_found"},
		{"unsupported", ErrUnsupportedProvider, "unsupported_provider"},
		{"invalid post", fmt.Errorf("%w: text is required", ErrInvalidPost), "invalid_request"},
		{"rejected", fmt.Errorf("%w: SUBREDDIT_NOEXIST", ErrPublishRejected), "provider_error"},
		{"provider error", NewProviderError(ProviderReddit, "submit", 500, []byte("boom")), "provider_error"},
		{"unknown", errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAmbiguousNotFound(t *testing.T) {
	original := NewProviderError(ProviderTwitter, "metrics", 401, []byte("unauthorized"))
	err := NewAmbiguousNotFound(original)

	if !errors.Is(err, ErrPostNotFound) || !errors.Is(err, ErrAmbiguousNotFound) {
		t.Fatalf("expected both not-found kinds, got %v", err)
	}
	if StatusCode(err) != 401 {
		t.Fatalf("StatusCode() = %d, want 401", StatusCode(err))
	}
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{"twitter", ProviderTwitter, false},
		{"X", ProviderTwitter, false},
		{"Instagram", ProviderInstagram, false},
		{" reddit ", ProviderReddit, false},
		{"linkedin", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseProvider(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProvider(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProvider(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProviderErrorTruncatesBody(t *testing.T) {
	body := make([]byte, 2048)
	for i := range body {
		body[i] = 'a'
	}
	pe := NewProviderError(ProviderInstagram, "publish", 400, body)
	if len(pe.Body) != maxBodyInError {
		t.Fatalf("body length = %d, want %d", len(pe.Body), maxBodyInError)
	}
}
