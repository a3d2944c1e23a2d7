// Package session manages the local session cookie. Accounts live in the
// product's main app; the dev login exists so the connector can be driven on
// its own.
package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/auth"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/config"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/httputil"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/jwtutil"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/middleware"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/svrlib"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/validation"
)

// DevSessionTTL is the lifetime of tokens minted by the dev login.
const DevSessionTTL = 24 * time.Hour

type SessionRouter struct {
	*svrlib.Router
	sessions *jwtutil.Sessions
}

// DevSessionResponse is returned by the dev login.
type DevSessionResponse struct {
	UserID    string `json:"user_id"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// RegisterRoutes registers /session/logout and, in development, /dev/session.
func RegisterRoutes(mux *http.ServeMux, prefix string, cfg *config.Config, sessions *jwtutil.Sessions) {
	router := &SessionRouter{svrlib.NewRouter(mux, prefix, cfg), sessions}
	group := middleware.PublicGroup(mux)
	group.HandleFunc("POST "+router.Path("/session/logout"), router.LogoutHandler)
	if cfg.IsDev() {
		group.HandleFunc("POST "+router.Path("/dev/session"), router.DevLoginHandler)
	}
}

// DevLoginHandler handles POST /dev/session?user_id=...
func (rt *SessionRouter) DevLoginHandler(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	var errs validation.Errors
	if err := validation.ValidateRequired(userID, "user_id"); err != nil {
		errs = append(errs, *err)
	}
	if err := validation.ValidateMaxLength(userID, 128, "user_id"); err != nil {
		errs = append(errs, *err)
	}
	if errs.HasErrors() {
		httputil.WriteValidationError(w, errs)
		return
	}

	token, err := rt.sessions.Issue(userID, DevSessionTTL)
	if err != nil {
		httputil.WriteInternalError(w, err, "Failed to issue session token")
		return
	}
	auth.SetSessionCookieWithEnv(w, token, rt.Config.IsDev())
	logger.FromContext(r.Context()).Info("Dev session issued", "user_id", userID)

	httputil.WriteCreated(w, DevSessionResponse{
		UserID:    userID,
		Token:     token,
		ExpiresIn: int64(DevSessionTTL.Seconds()),
	})
}

// LogoutHandler handles POST /session/logout
func (rt *SessionRouter) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookieWithEnv(w, rt.Config.IsDev())
	w.WriteHeader(http.StatusNoContent)
}
