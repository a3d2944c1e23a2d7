package social

import "time"

// OAuth2Credentials is the bearer credential of a connection.
type OAuth2Credentials struct {
	AccessToken  string
	RefreshToken string
	// ExpiresAt is already reduced by the refresh skew. Nil means the
	// provider did not report a lifetime.
	ExpiresAt *time.Time
	Scope     string
	// IssuedAt is when this pair was last written. OAuth1 updates leave it
	// untouched.
	IssuedAt time.Time
}

// OAuth1Credentials is the user-context OAuth 1.0a token pair. It never
// expires and cannot be refreshed.
type OAuth1Credentials struct {
	Token       string
	TokenSecret string
}

// Connection is the single stored row per (UserID, Provider).
type Connection struct {
	UserID   string
	Provider Provider

	OAuth2 *OAuth2Credentials
	OAuth1 *OAuth1Credentials

	ProviderUserID   string
	ProviderUsername string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasOAuth2 reports whether the connection carries a usable OAuth2 access token.
func (c *Connection) HasOAuth2() bool {
	return c != nil && c.OAuth2 != nil && c.OAuth2.AccessToken != ""
}

// HasOAuth1 reports whether the connection carries an OAuth1 token pair.
func (c *Connection) HasOAuth1() bool {
	return c != nil && c.OAuth1 != nil && c.OAuth1.Token != "" && c.OAuth1.TokenSecret != ""
}

// Identity is the remote account a connection belongs to.
type Identity struct {
	ProviderUserID   string
	ProviderUsername string
}
