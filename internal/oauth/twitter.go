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

// TwitterEndpoints are the X OAuth 2.0 endpoints.
var TwitterEndpoints = Endpoints{
	AuthURL:  "https://twitter.com/i/oauth2/authorize",
	TokenURL: "https://api.twitter.com/2/oauth2/token",
	APIBase:  "https://api.twitter.com",
}

// TwitterScopes are requested on every X OAuth 2.0 connect. offline.access
// is what makes X issue a refresh token.
var TwitterScopes = []string{"tweet.read", "tweet.write", "users.read", "offline.access", "media.write"}

// TwitterProvider is the X OAuth 2.0 + PKCE client (confidential client,
// HTTP Basic client authentication).
type TwitterProvider struct {
	exchanger *tokenExchanger
	api       *apiclient.Client
	endpoints Endpoints
}

// NewTwitterProvider creates the X OAuth 2.0 client.
func NewTwitterProvider(clientID, clientSecret string, endpoints Endpoints, httpClient *http.Client) *TwitterProvider {
	api := apiclient.New(social.ProviderTwitter, httpClient, "")
	conf := oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       TwitterScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   endpoints.AuthURL,
			TokenURL:  endpoints.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	return &TwitterProvider{
		exchanger: newTokenExchanger(social.ProviderTwitter, conf, api.HTTPClient),
		api:       api,
		endpoints: endpoints,
	}
}

func (p *TwitterProvider) Name() social.Provider { return social.ProviderTwitter }

func (p *TwitterProvider) UsesPKCE() bool { return true }

// DefaultTokenLifetime matches the two hour lifetime X gives user tokens.
func (p *TwitterProvider) DefaultTokenLifetime() time.Duration { return 2 * time.Hour }

func (p *TwitterProvider) AuthorizationURL(state, redirectURI, codeChallenge string) (string, error) {
	if codeChallenge == "" {
		return "", fmt.Errorf("twitter: code challenge is required")
	}
	return p.exchanger.authCodeURL(state, redirectURI,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	), nil
}

func (p *TwitterProvider) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*Token, error) {
	return p.exchanger.exchange(ctx, code, redirectURI, oauth2.VerifierOption(codeVerifier))
}

// RefreshToken exchanges a rotating X refresh token; the old one is dead
// after this call succeeds.
func (p *TwitterProvider) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	return p.exchanger.refresh(ctx, refreshToken)
}

type twitterUserResponse struct {
	Data struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"data"`
}

func (p *TwitterProvider) FetchIdentity(ctx context.Context, accessToken string) (*social.Identity, error) {
	req, err := apiclient.NewGet(strings.TrimRight(p.endpoints.APIBase, "/")+"/2/users/me", nil)
	if err != nil {
		return nil, err
	}
	apiclient.SetBearer(req, accessToken)

	var resp twitterUserResponse
	if err := p.api.DoJSON(ctx, "users_me", req, &resp); err != nil {
		return nil, err
	}
	if resp.Data.ID == "" {
		return nil, fmt.Errorf("twitter: users/me returned no id")
	}
	return &social.Identity{ProviderUserID: resp.Data.ID, ProviderUsername: resp.Data.Username}, nil
}
