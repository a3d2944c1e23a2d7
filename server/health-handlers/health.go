package health

import (
	"context"
	"net/http"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/config"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/httputil"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/middleware"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/svrlib"
)

const checkTimeout = 2 * time.Second

// Pinger is a dependency the readiness check must reach.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a plain ping function to Pinger.
type PingFunc func(ctx context.Context) error

// PingContext calls f.
func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type HealthRouter struct {
	*svrlib.Router
	deps      map[string]Pinger
	providers func() []social.Provider
}

// Status is the body of /healthz and /readyz.
type Status struct {
	Status    string            `json:"status"`
	Env       string            `json:"env"`
	Providers []social.Provider `json:"providers,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// RegisterRoutes registers all health check routes on the given mux
func RegisterRoutes(mux *http.ServeMux, baseRoute string, cfg *config.Config, providers func() []social.Provider, deps map[string]Pinger) {
	router := &HealthRouter{svrlib.NewRouter(mux, baseRoute, cfg), deps, providers}
	group := middleware.PublicGroup(mux)
	group.HandleFunc("GET "+router.Path("/healthz"), router.HealthzHandler)
	group.HandleFunc("GET "+router.Path("/readyz"), router.ReadyzHandler)
}

// HealthzHandler responds to /healthz requests for liveness checks
func (rt *HealthRouter) HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	status := Status{Status: "ok", Env: rt.Config.AppEnv}
	if rt.providers != nil {
		status.Providers = rt.providers()
	}
	httputil.WriteSuccess(w, status)
}

// ReadyzHandler pings every dependency and answers 503 when one fails
func (rt *HealthRouter) ReadyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	status := Status{Status: "ok", Env: rt.Config.AppEnv, Checks: make(map[string]string, len(rt.deps))}
	code := http.StatusOK
	for name, dep := range rt.deps {
		if err := dep.PingContext(ctx); err != nil {
			logger.FromContext(ctx).Warn("Readiness check failed", "dependency", name, "error", err)
			status.Checks[name] = "unavailable"
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status.Checks[name] = "ok"
	}
	httputil.WriteJSON(w, code, status)
}
