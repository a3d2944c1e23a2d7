package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/validation"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not connected", fmt.Errorf("get: %w", social.ErrNotConnected), http.StatusNotFound, social.CodeNotConnected},
		{"invalid state", social.ErrInvalidState, http.StatusBadRequest, social.CodeInvalidState},
		{"refresh failed", social.ErrRefreshFailed, http.StatusUnauthorized, social.CodeRefreshFailed},
		{"auth failed", social.ErrAuthFailed, http.StatusUnauthorized, social.CodeReconnectRequired},
		{"provider error", social.NewProviderError(social.ProviderReddit, "submit", 500, nil), http.StatusBadGateway, social.CodeProviderError},
		{"rejected post", fmt.Errorf("%w: container c1: ERROR", social.ErrPublishRejected), http.StatusBadGateway, social.CodeProviderError},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, social.CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			WriteDomainError(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decode(t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestWriteDomainErrorOmitsProviderBody(t *testing.T) {
	pe := social.NewProviderError(social.ProviderTwitter, "create_tweet", 403, []byte(`{"AccessKeyId":"SECRET-123"}`))
	err := fmt.Errorf("%w: %w", social.ErrAuthFailed, pe)

	rec := httptest.NewRecorder()
	WriteDomainError(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)

	resp := decode(t, rec)
	if strings.Contains(resp.Message, "SECRET-123") {
		t.Errorf("message leaks provider body: %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "twitter create_tweet: status 403") {
		t.Errorf("message = %q, want the provider summary", resp.Message)
	}
}

func TestWriteDomainErrorValidationDetails(t *testing.T) {
	var ve validation.Errors
	ve.Add("text", "is required")
	err := fmt.Errorf("%w: %w", social.ErrInvalidPost, ve)

	rec := httptest.NewRecorder()
	WriteDomainError(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decode(t, rec)
	if resp.Code != social.CodeInvalidRequest {
		t.Errorf("code = %q", resp.Code)
	}
	if len(resp.Details) != 1 || resp.Details[0].Field != "text" {
		t.Errorf("details = %+v", resp.Details)
	}
}

func TestRedirectWithError(t *testing.T) {
	tests := []struct {
		base string
		want url.Values
	}{
		{"https://app.example.com/connections", url.Values{"error": {"invalid_state"}, "provider": {"twitter"}}},
		{"https://app.example.com/connections?tab=social", url.Values{"tab": {"social"}, "error": {"invalid_state"}, "provider": {"twitter"}}},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		RedirectWithError(rec, httptest.NewRequest(http.MethodGet, "/cb", nil), tt.base, social.CodeInvalidState, social.ProviderTwitter)

		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rec.Code)
		}
		loc, err := url.Parse(rec.Header().Get("Location"))
		if err != nil {
			t.Fatalf("bad location: %v", err)
		}
		for k := range tt.want {
			if got := loc.Query().Get(k); got != tt.want.Get(k) {
				t.Errorf("%s: %s = %q, want %q", tt.base, k, got, tt.want.Get(k))
			}
		}
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteCreated(rec, map[string]string{"post_id": "1"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
}
