// Package connect serves the browser side of the connect flows and the
// connection management API.
package connect

import (
	"net/http"
	"net/url"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/config"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/httputil"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/middleware"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/oauth"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/svrlib"
)

// connectionsPage is where the frontend lists a user's connections.
const connectionsPage = "/connections"

// ConnectRouter handles /connect/* and /api/connections*.
type ConnectRouter struct {
	*svrlib.Router
	service *oauth.ConnectService
}

// RegisterRoutes registers the connect routes on mux.
func RegisterRoutes(mux *http.ServeMux, prefix string, cfg *config.Config, service *oauth.ConnectService, verifier middleware.SessionVerifier) *ConnectRouter {
	router := &ConnectRouter{
		Router:  svrlib.NewRouter(mux, prefix, cfg),
		service: service,
	}

	public := middleware.PublicGroup(mux)
	protected := middleware.ProtectedGroup(mux, verifier)

	protected.HandleFunc("GET "+router.Path("/connect/{provider}"), router.InitiateHandler)
	public.HandleFunc("GET "+router.Path("/connect/{provider}/callback"), router.CallbackHandler)
	protected.HandleFunc("GET "+router.Path("/connect/{provider}/oauth1"), router.InitiateOAuth1Handler)
	public.HandleFunc("GET "+router.Path("/connect/{provider}/oauth1/callback"), router.OAuth1CallbackHandler)

	protected.HandleFunc("GET "+router.Path("/api/connections"), router.ListHandler)
	protected.HandleFunc("DELETE "+router.Path("/api/connections/{provider}"), router.DeleteHandler)

	return router
}

func (rt *ConnectRouter) errorRedirect(w http.ResponseWriter, r *http.Request, err error, provider social.Provider) {
	httputil.RedirectWithError(w, r, rt.FrontendURL(connectionsPage, connectionsPage), social.ErrorCode(err), provider)
}

func (rt *ConnectRouter) successRedirect(w http.ResponseWriter, r *http.Request, result *oauth.ConnectResult, provider social.Provider, scheme string) {
	q := url.Values{}
	q.Set("connected", string(provider))
	if scheme != "" {
		q.Set("scheme", scheme)
	}
	httputil.RedirectWithParams(w, r, rt.FrontendURL(result.ReturnTo, connectionsPage), q)
}

// InitiateHandler handles GET /connect/{provider}
func (rt *ConnectRouter) InitiateHandler(w http.ResponseWriter, r *http.Request) {
	userCtx, _ := middleware.GetUserContext(r)
	provider, err := svrlib.ProviderParam(r)
	if err != nil {
		rt.errorRedirect(w, r, err, "")
		return
	}

	authURL, err := rt.service.Initiate(r.Context(), userCtx.UserID, provider, returnTo(r))
	if err != nil {
		rt.errorRedirect(w, r, err, provider)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// CallbackHandler handles GET /connect/{provider}/callback
func (rt *ConnectRouter) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	provider, err := svrlib.ProviderParam(r)
	if err != nil {
		rt.errorRedirect(w, r, err, "")
		return
	}
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		rt.service.Abort(r.Context(), q.Get("state"))
		logger.FromContext(r.Context()).Info("Provider returned an error on callback",
			"provider", provider, "error", providerErr, "description", q.Get("error_description"))
		code := social.CodeProviderError
		if providerErr == "access_denied" {
			code = social.CodeOAuthDenied
		}
		httputil.RedirectWithError(w, r, rt.FrontendURL(connectionsPage, connectionsPage), code, provider)
		return
	}

	result, err := rt.service.Complete(r.Context(), provider, q.Get("state"), q.Get("code"))
	if err != nil {
		rt.errorRedirect(w, r, err, provider)
		return
	}
	rt.successRedirect(w, r, result, provider, "")
}

// InitiateOAuth1Handler handles GET /connect/{provider}/oauth1
func (rt *ConnectRouter) InitiateOAuth1Handler(w http.ResponseWriter, r *http.Request) {
	userCtx, _ := middleware.GetUserContext(r)
	provider, err := svrlib.ProviderParam(r)
	if err != nil {
		rt.errorRedirect(w, r, err, "")
		return
	}

	authURL, err := rt.service.InitiateOAuth1(r.Context(), userCtx.UserID, provider, returnTo(r))
	if err != nil {
		rt.errorRedirect(w, r, err, provider)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// OAuth1CallbackHandler handles GET /connect/{provider}/oauth1/callback
func (rt *ConnectRouter) OAuth1CallbackHandler(w http.ResponseWriter, r *http.Request) {
	provider, err := svrlib.ProviderParam(r)
	if err != nil {
		rt.errorRedirect(w, r, err, "")
		return
	}
	q := r.URL.Query()

	if denied := q.Get("denied"); denied != "" {
		rt.service.Abort(r.Context(), denied)
		rt.errorRedirect(w, r, social.ErrAccessDenied, provider)
		return
	}

	result, err := rt.service.CompleteOAuth1(r.Context(), provider, q.Get("oauth_token"), q.Get("oauth_verifier"))
	if err != nil {
		rt.errorRedirect(w, r, err, provider)
		return
	}
	rt.successRedirect(w, r, result, provider, "oauth1")
}

func returnTo(r *http.Request) string {
	if p := r.URL.Query().Get("return_to"); svrlib.IsLocalPath(p) {
		return p
	}
	return ""
}

// ConnectionView is the public shape of a stored connection. Tokens never
// leave the service.
type ConnectionView struct {
	Provider         social.Provider `json:"provider"`
	ProviderUserID   string          `json:"provider_user_id,omitempty"`
	ProviderUsername string          `json:"provider_username,omitempty"`
	OAuth2           bool            `json:"oauth2"`
	OAuth1           bool            `json:"oauth1"`
	Scope            string          `json:"scope,omitempty"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	CanRefresh       bool            `json:"can_refresh"`
	ConnectedAt      time.Time       `json:"connected_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ListResponse is the body of GET /api/connections.
type ListResponse struct {
	Connections []ConnectionView  `json:"connections"`
	Available   []social.Provider `json:"available"`
}

func newConnectionView(c *social.Connection) ConnectionView {
	v := ConnectionView{
		Provider:         c.Provider,
		ProviderUserID:   c.ProviderUserID,
		ProviderUsername: c.ProviderUsername,
		OAuth2:           c.HasOAuth2(),
		OAuth1:           c.HasOAuth1(),
		ConnectedAt:      c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	if c.OAuth2 != nil {
		v.Scope = c.OAuth2.Scope
		v.ExpiresAt = c.OAuth2.ExpiresAt
		v.CanRefresh = c.OAuth2.RefreshToken != ""
	}
	return v
}

// ListHandler handles GET /api/connections
func (rt *ConnectRouter) ListHandler(w http.ResponseWriter, r *http.Request) {
	userCtx, _ := middleware.GetUserContext(r)

	conns, err := rt.service.Connections(r.Context(), userCtx.UserID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	resp := ListResponse{
		Connections: make([]ConnectionView, 0, len(conns)),
		Available:   rt.service.Providers(),
	}
	for _, c := range conns {
		resp.Connections = append(resp.Connections, newConnectionView(c))
	}
	httputil.WriteSuccess(w, resp)
}

// DeleteHandler handles DELETE /api/connections/{provider}
func (rt *ConnectRouter) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	userCtx, _ := middleware.GetUserContext(r)
	provider, err := svrlib.ProviderParam(r)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	if err := rt.service.Disconnect(r.Context(), userCtx.UserID, provider); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
