package oauth

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/config"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
)

// Registry holds the providers that have credentials configured.
type Registry struct {
	oauth2 map[social.Provider]Provider
	oauth1 map[social.Provider]OAuth1Provider
}

// NewEmptyRegistry returns a registry with no providers; tests register
// their own.
func NewEmptyRegistry() *Registry {
	return &Registry{
		oauth2: make(map[social.Provider]Provider),
		oauth1: make(map[social.Provider]OAuth1Provider),
	}
}

// NewRegistry builds every provider whose credentials are present in cfg.
func NewRegistry(cfg *config.Config, httpClient *http.Client) *Registry {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	r := NewEmptyRegistry()
	if cfg.TwitterOAuth2Enabled() {
		r.Register(NewTwitterProvider(cfg.TwitterClientID, cfg.TwitterClientSecret, TwitterEndpoints, httpClient))
	}
	if cfg.TwitterOAuth1Enabled() {
		r.RegisterOAuth1(NewTwitterOAuth1Provider(cfg.TwitterConsumerKey, cfg.TwitterConsumerSecret,
			DefaultTwitterOAuth1Endpoints, nil, httpClient))
	}
	if cfg.InstagramEnabled() {
		r.Register(NewInstagramProvider(cfg.FacebookAppID, cfg.FacebookAppSecret,
			InstagramEndpoints(cfg.FacebookGraphVersion), httpClient))
	}
	if cfg.RedditEnabled() {
		r.Register(NewRedditProvider(cfg.RedditClientID, cfg.RedditClientSecret, cfg.RedditUserAgent,
			RedditEndpoints, httpClient))
	}
	return r
}

// Register adds or replaces an OAuth2 provider.
func (r *Registry) Register(p Provider) {
	r.oauth2[p.Name()] = p
}

// RegisterOAuth1 adds or replaces an OAuth1 provider.
func (r *Registry) RegisterOAuth1(p OAuth1Provider) {
	r.oauth1[p.Name()] = p
}

// Provider returns the OAuth2 client for name.
func (r *Registry) Provider(name social.Provider) (Provider, error) {
	p, ok := r.oauth2[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", social.ErrUnsupportedProvider, name)
	}
	return p, nil
}

// OAuth1 returns the OAuth 1.0a client for name.
func (r *Registry) OAuth1(name social.Provider) (OAuth1Provider, error) {
	p, ok := r.oauth1[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s oauth1", social.ErrUnsupportedProvider, name)
	}
	return p, nil
}

// Names lists the registered OAuth2 providers in a stable order.
func (r *Registry) Names() []social.Provider {
	names := make([]social.Provider, 0, len(r.oauth2))
	for name := range r.oauth2 {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
