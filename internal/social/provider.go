// Package social holds the connection model shared by the OAuth, token and
// publishing layers.
package social

import (
	"fmt"
	"strings"
)

// Provider identifies a remote identity/publishing platform.
type Provider string

const (
	ProviderTwitter   Provider = "twitter"
	ProviderInstagram Provider = "instagram"
	ProviderReddit    Provider = "reddit"
)

// Providers lists every provider the connector supports.
var Providers = []Provider{ProviderTwitter, ProviderInstagram, ProviderReddit}

// String returns the string representation of the provider.
func (p Provider) String() string {
	return string(p)
}

// ParseProvider converts a path or config value to a Provider. "x" is
// accepted as an alias for twitter.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "twitter", "x":
		return ProviderTwitter, nil
	case "instagram":
		return ProviderInstagram, nil
	case "reddit":
		return ProviderReddit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, s)
	}
}
