// Package middleware provides the HTTP middleware used by the handlers:
// request ids, panic recovery and the local user context.
package middleware

import (
	"net/http"
)

// Middleware wraps a handler.
type Middleware = func(http.Handler) http.Handler

// Chain represents a middleware chain that can be applied to handlers
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: join(nil, middlewares)}
}

// Then applies the chain to handler; the first middleware runs outermost.
func (c *Chain) Then(handler http.Handler) http.Handler {
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}
	return handler
}

// ThenFunc applies the middleware chain to a handler function
func (c *Chain) ThenFunc(handlerFunc http.HandlerFunc) http.Handler {
	return c.Then(handlerFunc)
}

// Append returns a new chain with middlewares added at the end
func (c *Chain) Append(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: join(c.middlewares, middlewares)}
}

// Prepend returns a new chain with middlewares added at the front
func (c *Chain) Prepend(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: join(middlewares, c.middlewares)}
}

// ApplyFunc is a shorthand for creating a chain and applying it to a handler function
func ApplyFunc(handlerFunc http.HandlerFunc, middlewares ...Middleware) http.Handler {
	return NewChain(middlewares...).ThenFunc(handlerFunc)
}

func join(a, b []Middleware) []Middleware {
	out := make([]Middleware, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
