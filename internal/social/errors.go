package social

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the connect, token and publish layers.
var (
	ErrNotConnected        = errors.New("no stored credentials for provider")
	ErrInvalidState        = errors.New("invalid or replayed oauth state")
	ErrMissingCodeOrState  = errors.New("callback missing code or state")
	ErrAccessDenied        = errors.New("authorization denied by user")
	ErrExchangeFailed      = errors.New("provider rejected authorization code")
	ErrRefreshUnavailable  = errors.New("token expired and no refresh token stored")
	ErrRefreshFailed       = errors.New("token refresh failed")
	ErrRefreshUnsupported  = errors.New("provider flow does not support refresh")
	ErrAuthFailed          = errors.New("provider rejected credentials")
	ErrPostNotFound        = errors.New("post not found")
	ErrAmbiguousNotFound   = errors.New("post not found (reclassified from 401)")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrStorage             = errors.New("storage error")
	ErrPublishRejected     = errors.New("provider rejected the post")
	ErrInvalidPost         = errors.New("invalid post")
)

// User-facing error codes carried in callback redirects and API responses.
const (
	CodeInvalidState        = "invalid_state"
	CodeMissingCodeOrState  = "missing_code_or_state"
	CodeOAuthDenied         = "oauth_denied"
	CodeTokenExchangeFailed = "token_exchange_failed"
	CodeStorageError        = "storage_error"
	CodeNotConnected        = "not_connected"
	CodeRefreshUnavailable  = "refresh_unavailable"
	CodeRefreshFailed       = "refresh_failed"
	CodeReconnectRequired   = "reconnect_required"
	CodePostNotFound        = "post_not_found"
	CodeUnsupportedProvider = "unsupported_provider"
	CodeProviderError       = "provider_error"
	CodeInvalidRequest      = "invalid_request"
	CodeInternalError       = "internal_error"
)

// ErrorCode maps err to its stable user-facing code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPostNotFound):
		return CodePostNotFound
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrMissingCodeOrState):
		return CodeMissingCodeOrState
	case errors.Is(err, ErrAccessDenied):
		return CodeOAuthDenied
	case errors.Is(err, ErrExchangeFailed):
		return CodeTokenExchangeFailed
	case errors.Is(err, ErrStorage):
		return CodeStorageError
	case errors.Is(err, ErrNotConnected):
		return CodeNotConnected
	case errors.Is(err, ErrRefreshUnavailable):
		return CodeRefreshUnavailable
	case errors.Is(err, ErrRefreshFailed):
		return CodeRefreshFailed
	case errors.Is(err, ErrAuthFailed), errors.Is(err, ErrRefreshUnsupported):
		return CodeReconnectRequired
	case errors.Is(err, ErrUnsupportedProvider):
		return CodeUnsupportedProvider
	case errors.Is(err, ErrInvalidPost):
		return CodeInvalidRequest
	case errors.Is(err, ErrPublishRejected):
		return CodeProviderError
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return CodeProviderError
	}
	return CodeInternalError
}

// maxBodyInError bounds how much of a provider response ends up in logs.
const maxBodyInError = 512

// ProviderError is a non-2xx response from a provider endpoint.
type ProviderError struct {
	Provider   Provider
	Operation  string
	StatusCode int
	Body       string
}

// NewProviderError builds a ProviderError, truncating the body.
func NewProviderError(p Provider, op string, status int, body []byte) *ProviderError {
	b := string(body)
	if len(b) > maxBodyInError {
		b = b[:maxBodyInError]
	}
	return &ProviderError{Provider: p, Operation: op, StatusCode: status, Body: b}
}

func (e *ProviderError) Error() string {
	if e.Body == "" {
		return e.Summary()
	}
	return e.Summary() + ": " + e.Body
}

// Summary is Error without the response body.
func (e *ProviderError) Summary() string {
	return fmt.Sprintf("%s %s: status %d", e.Provider, e.Operation, e.StatusCode)
}

// StatusCode returns the provider HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}

// ambiguousNotFound satisfies errors.Is for both ErrPostNotFound and
// ErrAmbiguousNotFound while keeping the original provider error.
type ambiguousNotFound struct {
	original error
}

// NewAmbiguousNotFound wraps the original 401 so callers can stop tracking
// the post.
func NewAmbiguousNotFound(original error) error {
	return &ambiguousNotFound{original: original}
}

func (e *ambiguousNotFound) Error() string {
	return fmt.Sprintf("%s: %v", ErrAmbiguousNotFound, e.original)
}

func (e *ambiguousNotFound) Is(target error) bool {
	return target == ErrPostNotFound || target == ErrAmbiguousNotFound
}

func (e *ambiguousNotFound) Unwrap() error {
	return e.original
}
