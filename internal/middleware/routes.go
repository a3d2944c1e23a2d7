package middleware

import (
	"net/http"
)

// RouteGroup represents a group of routes with common middleware
type RouteGroup struct {
	mux         *http.ServeMux
	middlewares []Middleware
}

// NewRouteGroup creates a new route group with optional middleware
func NewRouteGroup(mux *http.ServeMux, middlewares ...Middleware) *RouteGroup {
	return &RouteGroup{
		mux:         mux,
		middlewares: middlewares,
	}
}

// Handle registers a handler with the group's middleware stack
func (rg *RouteGroup) Handle(pattern string, handler http.Handler) {
	rg.mux.Handle(pattern, ApplyFunc(handler.ServeHTTP, rg.middlewares...))
}

// HandleFunc registers a handler function with the group's middleware stack
func (rg *RouteGroup) HandleFunc(pattern string, handlerFunc http.HandlerFunc) {
	rg.mux.Handle(pattern, ApplyFunc(handlerFunc, rg.middlewares...))
}

// Group creates a sub-group with additional middleware
func (rg *RouteGroup) Group(middlewares ...Middleware) *RouteGroup {
	return &RouteGroup{
		mux:         rg.mux,
		middlewares: join(rg.middlewares, middlewares),
	}
}

// PublicGroup creates a route group for unauthenticated routes (callbacks, health)
func PublicGroup(mux *http.ServeMux) *RouteGroup {
	return NewRouteGroup(mux, RecoverMiddleware, RequestIDMiddleware)
}

// ProtectedGroup creates a route group whose handlers always see a user
func ProtectedGroup(mux *http.ServeMux, verifier SessionVerifier) *RouteGroup {
	return PublicGroup(mux).Group(
		UserContextMiddleware(verifier),
		RequireUserContext,
	)
}
