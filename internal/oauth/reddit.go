package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/apiclient"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"golang.org/x/oauth2"
)

// RedditEndpoints are the production Reddit endpoints. API calls go to the
// oauth subdomain.
var RedditEndpoints = Endpoints{
	AuthURL:  "https://www.reddit.com/api/v1/authorize",
	TokenURL: "https://www.reddit.com/api/v1/access_token",
	APIBase:  "https://oauth.reddit.com",
}

// RedditScopes covers identity, submission and reading post stats.
var RedditScopes = []string{"identity", "submit", "read"}

// userAgentTransport sets a fixed User-Agent; Reddit throttles requests
// without one, including token calls.
type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

// WithUserAgent returns a copy of client whose transport stamps userAgent
// on every request.
func WithUserAgent(client *http.Client, userAgent string) *http.Client {
	if client == nil {
		client = &http.Client{Timeout: apiclient.DefaultTimeout}
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c := *client
	c.Transport = &userAgentTransport{userAgent: userAgent, base: base}
	return &c
}

// RedditProvider is the Reddit OAuth2 client (confidential "web app",
// permanent duration, no PKCE).
type RedditProvider struct {
	exchanger *tokenExchanger
	api       *apiclient.Client
	endpoints Endpoints
}

// NewRedditProvider creates the Reddit client.
func NewRedditProvider(clientID, clientSecret, userAgent string, endpoints Endpoints, httpClient *http.Client) *RedditProvider {
	client := WithUserAgent(httpClient, userAgent)
	api := apiclient.New(social.ProviderReddit, client, userAgent)
	conf := oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       RedditScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   endpoints.AuthURL,
			TokenURL:  endpoints.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	return &RedditProvider{
		exchanger: newTokenExchanger(social.ProviderReddit, conf, client),
		api:       api,
		endpoints: endpoints,
	}
}

func (p *RedditProvider) Name() social.Provider { return social.ProviderReddit }

func (p *RedditProvider) UsesPKCE() bool { return false }

func (p *RedditProvider) DefaultTokenLifetime() time.Duration { return time.Hour }

func (p *RedditProvider) AuthorizationURL(state, redirectURI, _ string) (string, error) {
	return p.exchanger.authCodeURL(state, redirectURI,
		oauth2.SetAuthURLParam("duration", "permanent"),
	), nil
}

func (p *RedditProvider) ExchangeCode(ctx context.Context, code, redirectURI, _ string) (*Token, error) {
	return p.exchanger.exchange(ctx, code, redirectURI)
}

// RefreshToken keeps the stored refresh token; Reddit does not rotate it.
func (p *RedditProvider) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	return p.exchanger.refresh(ctx, refreshToken)
}

type redditMeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p *RedditProvider) FetchIdentity(ctx context.Context, accessToken string) (*social.Identity, error) {
	req, err := apiclient.NewGet(strings.TrimRight(p.endpoints.APIBase, "/")+"/api/v1/me", nil)
	if err != nil {
		return nil, err
	}
	apiclient.SetBearer(req, accessToken)

	var me redditMeResponse
	if err := p.api.DoJSON(ctx, "me", req, &me); err != nil {
		return nil, err
	}
	if me.ID == "" {
		return nil, fmt.Errorf("reddit: /api/v1/me returned no id")
	}
	return &social.Identity{ProviderUserID: me.ID, ProviderUsername: me.Name}, nil
}
