package oauth1

import (
	"fmt"
	"net/url"
)

// TokenResponse is the form-encoded body returned by the request-token and
// access-token endpoints.
type TokenResponse struct {
	Token             string
	TokenSecret       string
	CallbackConfirmed bool
	// Extra holds provider specific fields such as user_id or screen_name.
	Extra url.Values
}

// ParseTokenResponse decodes a form-encoded token response body.
func ParseTokenResponse(body []byte) (*TokenResponse, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	resp := &TokenResponse{
		Token:             values.Get("oauth_token"),
		TokenSecret:       values.Get("oauth_token_secret"),
		CallbackConfirmed: values.Get("oauth_callback_confirmed") == "true",
		Extra:             values,
	}
	if resp.Token == "" || resp.TokenSecret == "" {
		return nil, fmt.Errorf("%w: oauth_token and oauth_token_secret are required", ErrMalformedResponse)
	}
	return resp, nil
}
