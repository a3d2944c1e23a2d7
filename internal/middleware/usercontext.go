package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/auth"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/httputil"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/jwtutil"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
)

// UserContext holds the local account behind a request.
type UserContext struct {
	UserID string
}

// SessionVerifier checks a local session token.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (*jwtutil.Claims, error)
}

type contextKey string

const userContextKey contextKey = "user"

// UserContextMiddleware verifies the session token from the Authorization
// header or the session cookie and adds the user to the request context.
// Requests without a valid token continue anonymously.
func UserContextMiddleware(verifier SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.FromContext(r.Context()).Warn("Rejected session token", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithUserContext(r.Context(), &UserContext{UserID: claims.Sub})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	token, err := auth.GetSessionCookie(r)
	if err != nil {
		return ""
	}
	return token
}

// WithUserContext returns ctx carrying userCtx.
func WithUserContext(ctx context.Context, userCtx *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, userCtx)
}

// GetUserContext extracts user context from request context
func GetUserContext(r *http.Request) (*UserContext, bool) {
	userCtx, ok := r.Context().Value(userContextKey).(*UserContext)
	return userCtx, ok && userCtx != nil && userCtx.UserID != ""
}

// RequireUserContext answers 401 when no user is attached to the request.
func RequireUserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUserContext(r); !ok {
			httputil.WriteError(w, http.StatusUnauthorized, "Authentication required", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}
