package middleware

import (
	"net/http"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
)

// RequestIDHeader carries the request id in and out of the service.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// RequestIDMiddleware stores the incoming X-Request-ID, or a fresh one, in the
// request context and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if len(id) > maxRequestIDLength {
			id = ""
		}
		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(RequestIDHeader, logger.RequestID(ctx))

		logger.FromContext(ctx).Debug("Request received", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RecoverMiddleware turns a handler panic into a 500.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.FromContext(r.Context()).Error("Handler panic", "panic", rec, "path", r.URL.Path)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
