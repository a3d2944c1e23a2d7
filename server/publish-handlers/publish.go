// Package publish exposes the signed API caller over HTTP.
package publish

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/config"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/httputil"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/middleware"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/publish"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/svrlib"
)

// maxRequestBody bounds a publish request.
const maxRequestBody = 1 << 20

// PublishRouter handles /api/publish and /api/posts/*.
type PublishRouter struct {
	*svrlib.Router
	caller *publish.Caller
}

// RegisterRoutes registers the publish routes on mux.
func RegisterRoutes(mux *http.ServeMux, prefix string, cfg *config.Config, caller *publish.Caller, verifier middleware.SessionVerifier) *PublishRouter {
	router := &PublishRouter{
		Router: svrlib.NewRouter(mux, prefix, cfg),
		caller: caller,
	}

	protected := middleware.ProtectedGroup(mux, verifier)
	protected.HandleFunc("POST "+router.Path("/api/publish"), router.PublishHandler)
	protected.HandleFunc("GET "+router.Path("/api/posts/{provider}/{postID}/metrics"), router.MetricsHandler)

	return router
}

// PublishHandler handles POST /api/publish
func (rt *PublishRouter) PublishHandler(w http.ResponseWriter, r *http.Request) {
	userCtx, _ := middleware.GetUserContext(r)

	var post publish.Post
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&post); err != nil {
		httputil.WriteDomainError(w, r, fmt.Errorf("%w: %w", social.ErrInvalidPost, err))
		return
	}
	if channel, err := social.ParseProvider(string(post.Channel)); err == nil {
		post.Channel = channel
	}

	result, err := rt.caller.Publish(r.Context(), userCtx.UserID, &post)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("Post published",
		"channel", result.Channel, "post_id", result.PostID, "scheme", result.Scheme, "user_id", userCtx.UserID)
	httputil.WriteCreated(w, result)
}

// MetricsHandler handles GET /api/posts/{provider}/{postID}/metrics
func (rt *PublishRouter) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	userCtx, _ := middleware.GetUserContext(r)
	provider, err := svrlib.ProviderParam(r)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	metrics, err := rt.caller.Metrics(r.Context(), userCtx.UserID, provider, r.PathValue("postID"))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, metrics)
}
