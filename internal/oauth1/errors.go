package oauth1

import "errors"

var (
	// ErrMissingConsumerKey is returned when no consumer key is configured.
	ErrMissingConsumerKey = errors.New("oauth1: missing consumer key")
	// ErrMissingMethod is returned when the request has no HTTP method.
	ErrMissingMethod = errors.New("oauth1: missing http method")
	// ErrInvalidURL is returned when the request URL is not absolute.
	ErrInvalidURL = errors.New("oauth1: request url must be absolute")
	// ErrMalformedResponse is returned for token responses missing required fields.
	ErrMalformedResponse = errors.New("oauth1: malformed token response")
)
