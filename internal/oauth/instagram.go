package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/apiclient"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"golang.org/x/oauth2"
)

// InstagramScopes grant publishing on Instagram business accounts linked to
// a Facebook page.
var InstagramScopes = []string{
	"instagram_basic",
	"instagram_content_publish",
	"instagram_manage_insights",
	"pages_show_list",
	"pages_read_engagement",
	"business_management",
}

// InstagramEndpoints returns the Facebook Graph endpoints for a Graph API
// version such as "v19.0".
func InstagramEndpoints(graphVersion string) Endpoints {
	return Endpoints{
		AuthURL:  "https://www.facebook.com/" + graphVersion + "/dialog/oauth",
		TokenURL: "https://graph.facebook.com/" + graphVersion + "/oauth/access_token",
		APIBase:  "https://graph.facebook.com/" + graphVersion,
	}
}

// InstagramProvider connects Instagram business accounts through Facebook
// Login. The short-lived code token is immediately swapped for a long-lived
// one, which also serves as its own refresh token.
type InstagramProvider struct {
	appID     string
	appSecret string
	exchanger *tokenExchanger
	api       *apiclient.Client
	endpoints Endpoints
}

// NewInstagramProvider creates the Instagram client.
func NewInstagramProvider(appID, appSecret string, endpoints Endpoints, httpClient *http.Client) *InstagramProvider {
	api := apiclient.New(social.ProviderInstagram, httpClient, "")
	conf := oauth2.Config{
		ClientID:     appID,
		ClientSecret: appSecret,
		Scopes:       InstagramScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   endpoints.AuthURL,
			TokenURL:  endpoints.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return &InstagramProvider{
		appID:     appID,
		appSecret: appSecret,
		exchanger: newTokenExchanger(social.ProviderInstagram, conf, api.HTTPClient),
		api:       api,
		endpoints: endpoints,
	}
}

func (p *InstagramProvider) Name() social.Provider { return social.ProviderInstagram }

func (p *InstagramProvider) UsesPKCE() bool { return false }

// DefaultTokenLifetime is the documented 60 day lifetime of long-lived tokens.
func (p *InstagramProvider) DefaultTokenLifetime() time.Duration { return 60 * 24 * time.Hour }

func (p *InstagramProvider) AuthorizationURL(state, redirectURI, _ string) (string, error) {
	return p.exchanger.authCodeURL(state, redirectURI), nil
}

func (p *InstagramProvider) ExchangeCode(ctx context.Context, code, redirectURI, _ string) (*Token, error) {
	short, err := p.exchanger.exchange(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}
	long, err := p.longLived(ctx, "exchange_long_lived", short.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", social.ErrExchangeFailed, err)
	}
	long.Scope = short.Scope
	return long, nil
}

// RefreshToken re-exchanges the current long-lived token for a new one.
func (p *InstagramProvider) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, social.ErrRefreshUnavailable
	}
	tok, err := p.longLived(ctx, "refresh_token", refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", social.ErrRefreshFailed, err)
	}
	return tok, nil
}

type graphTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (p *InstagramProvider) longLived(ctx context.Context, op, token string) (*Token, error) {
	req, err := apiclient.NewGet(p.endpoints.TokenURL, url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {p.appID},
		"client_secret":     {p.appSecret},
		"fb_exchange_token": {token},
	})
	if err != nil {
		return nil, err
	}
	var resp graphTokenResponse
	if err := p.api.DoJSON(ctx, op, req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("instagram: %s returned no access token", op)
	}
	return &Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.AccessToken,
		ExpiresIn:    resp.ExpiresIn,
		TokenType:    resp.TokenType,
	}, nil
}

type graphAccountsResponse struct {
	Data []struct {
		ID                       string `json:"id"`
		InstagramBusinessAccount *struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"instagram_business_account"`
	} `json:"data"`
}

type graphMeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ErrNoBusinessAccount means none of the user's Facebook pages has an
// Instagram business account, so there is nothing to publish to.
var ErrNoBusinessAccount = fmt.Errorf("%w: no instagram business account linked", social.ErrNotConnected)

// FetchIdentity returns the first Instagram business account linked to one
// of the user's pages. Without one the Facebook name is kept for display and
// ProviderUserID stays empty.
func (p *InstagramProvider) FetchIdentity(ctx context.Context, accessToken string) (*social.Identity, error) {
	id, err := p.businessAccount(ctx, accessToken)
	if err != nil || id != nil {
		return id, err
	}

	req, err := apiclient.NewGet(p.apiBase()+"/me", url.Values{"fields": {"id,name"}})
	if err != nil {
		return nil, err
	}
	apiclient.SetBearer(req, accessToken)

	var me graphMeResponse
	if err := p.api.DoJSON(ctx, "me", req, &me); err != nil {
		return nil, err
	}
	if me.ID == "" {
		return nil, fmt.Errorf("instagram: /me returned no id")
	}
	return &social.Identity{ProviderUsername: me.Name}, nil
}

// BusinessAccountID resolves the Instagram business account used for
// publishing.
func (p *InstagramProvider) BusinessAccountID(ctx context.Context, accessToken string) (string, error) {
	id, err := p.businessAccount(ctx, accessToken)
	if err != nil {
		return "", err
	}
	if id == nil {
		return "", ErrNoBusinessAccount
	}
	return id.ProviderUserID, nil
}

// businessAccount returns nil when no page has a linked business account.
func (p *InstagramProvider) businessAccount(ctx context.Context, accessToken string) (*social.Identity, error) {
	req, err := apiclient.NewGet(p.apiBase()+"/me/accounts", url.Values{
		"fields": {"id,instagram_business_account{id,username}"},
	})
	if err != nil {
		return nil, err
	}
	apiclient.SetBearer(req, accessToken)

	var accounts graphAccountsResponse
	if err := p.api.DoJSON(ctx, "me_accounts", req, &accounts); err != nil {
		return nil, err
	}
	for _, page := range accounts.Data {
		if iba := page.InstagramBusinessAccount; iba != nil && iba.ID != "" {
			return &social.Identity{ProviderUserID: iba.ID, ProviderUsername: iba.Username}, nil
		}
	}
	return nil, nil
}

func (p *InstagramProvider) apiBase() string {
	return strings.TrimRight(p.endpoints.APIBase, "/")
}
