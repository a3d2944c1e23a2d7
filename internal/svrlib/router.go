// Package svrlib provides common server routing utilities
package svrlib

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/config"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
)

// Router wraps HTTP routing functionality with configuration
type Router struct {
	Config    *config.Config
	Mux       *http.ServeMux
	BaseRoute string
}

// NewRouter creates a new Router with the given mux, base route, and configuration
func NewRouter(mux *http.ServeMux, baseRoute string, cfg *config.Config) *Router {
	return &Router{cfg, mux, strings.TrimRight(baseRoute, "/")}
}

// Path joins the base route and p.
func (rt *Router) Path(p string) string {
	return rt.BaseRoute + p
}

// FrontendURL resolves a path against the configured frontend. Anything that
// is not a local absolute path falls back to fallback.
func (rt *Router) FrontendURL(p, fallback string) string {
	if !IsLocalPath(p) {
		p = fallback
	}
	return strings.TrimRight(rt.Config.FrontendURL, "/") + p
}

// IsLocalPath reports whether p is a path on the frontend origin rather than
// an absolute or protocol-relative URL.
func IsLocalPath(p string) bool {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}

// ProviderParam reads the {provider} path value.
func ProviderParam(r *http.Request) (social.Provider, error) {
	return social.ParseProvider(r.PathValue("provider"))
}
