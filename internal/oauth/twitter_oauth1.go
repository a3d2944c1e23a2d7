package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/apiclient"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/oauth1"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
)

// TwitterOAuth1Endpoints are the X OAuth 1.0a endpoints.
type TwitterOAuth1Endpoints struct {
	RequestTokenURL string
	AuthorizeURL    string
	AccessTokenURL  string
}

// DefaultTwitterOAuth1Endpoints are the production X OAuth 1.0a endpoints.
var DefaultTwitterOAuth1Endpoints = TwitterOAuth1Endpoints{
	RequestTokenURL: "https://api.twitter.com/oauth/request_token",
	AuthorizeURL:    "https://api.twitter.com/oauth/authorize",
	AccessTokenURL:  "https://api.twitter.com/oauth/access_token",
}

// TwitterOAuth1Provider runs the three-legged OAuth 1.0a flow X requires for
// media upload.
type TwitterOAuth1Provider struct {
	consumerKey    string
	consumerSecret string
	endpoints      TwitterOAuth1Endpoints
	signer         *oauth1.Signer
	api            *apiclient.Client
}

// NewTwitterOAuth1Provider creates the X OAuth 1.0a client. A nil signer
// uses the default one.
func NewTwitterOAuth1Provider(consumerKey, consumerSecret string, endpoints TwitterOAuth1Endpoints, signer *oauth1.Signer, httpClient *http.Client) *TwitterOAuth1Provider {
	if signer == nil {
		signer = oauth1.NewSigner()
	}
	return &TwitterOAuth1Provider{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		endpoints:      endpoints,
		signer:         signer,
		api:            apiclient.New(social.ProviderTwitter, httpClient, ""),
	}
}

func (p *TwitterOAuth1Provider) Name() social.Provider { return social.ProviderTwitter }

// Consumer returns the app credentials for signing user-context calls.
func (p *TwitterOAuth1Provider) Consumer() oauth1.Credentials {
	return oauth1.Credentials{ConsumerKey: p.consumerKey, ConsumerSecret: p.consumerSecret}
}

func (p *TwitterOAuth1Provider) RequestToken(ctx context.Context, callbackURL string) (*RequestToken, error) {
	resp, err := p.post(ctx, "request_token", p.endpoints.RequestTokenURL, p.Consumer(),
		map[string]string{"oauth_callback": callbackURL})
	if err != nil {
		return nil, err
	}
	if !resp.CallbackConfirmed {
		return nil, fmt.Errorf("twitter: request token without oauth_callback_confirmed")
	}
	return &RequestToken{Token: resp.Token, TokenSecret: resp.TokenSecret}, nil
}

func (p *TwitterOAuth1Provider) AuthorizationURL(oauthToken string) string {
	return p.endpoints.AuthorizeURL + "?" + url.Values{"oauth_token": {oauthToken}}.Encode()
}

func (p *TwitterOAuth1Provider) AccessToken(ctx context.Context, oauthToken, oauthTokenSecret, verifier string) (*AccessToken, error) {
	creds := p.Consumer()
	creds.Token = oauthToken
	creds.TokenSecret = oauthTokenSecret

	resp, err := p.post(ctx, "access_token", p.endpoints.AccessTokenURL, creds,
		map[string]string{"oauth_verifier": verifier})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", social.ErrExchangeFailed, err)
	}
	return &AccessToken{
		Token:       resp.Token,
		TokenSecret: resp.TokenSecret,
		Identity: social.Identity{
			ProviderUserID:   resp.Extra.Get("user_id"),
			ProviderUsername: resp.Extra.Get("screen_name"),
		},
	}, nil
}

// RefreshToken is not part of OAuth 1.0a; the token pair never expires.
func (p *TwitterOAuth1Provider) RefreshToken(context.Context, string) (*Token, error) {
	return nil, social.ErrRefreshUnsupported
}

func (p *TwitterOAuth1Provider) post(ctx context.Context, op, endpoint string, creds oauth1.Credentials, extra map[string]string) (*oauth1.TokenResponse, error) {
	signed, err := p.signer.Sign(creds, oauth1.Request{
		Method:      http.MethodPost,
		URL:         endpoint,
		OAuthParams: extra,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(""))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", signed.AuthorizationHeader)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "*/*")

	resp, err := p.api.Do(ctx, op, req)
	if err != nil {
		return nil, err
	}
	return oauth1.ParseTokenResponse(resp.Body)
}
