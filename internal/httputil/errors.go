// Package httputil provides JSON response helpers shared by the handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/validation"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string             `json:"error"`
	Code    string             `json:"code,omitempty"`
	Message string             `json:"message,omitempty"`
	Details []validation.Error `json:"details,omitempty"`
}

// WriteError writes a standardized error response
func WriteError(w http.ResponseWriter, status int, message string, logFields ...any) {
	writeError(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})

	logFields = append([]any{"status", status, "message", message}, logFields...)
	logger.Error("HTTP error response", logFields...)
}

// WriteValidationError writes a validation error response
func WriteValidationError(w http.ResponseWriter, validationErr validation.Errors) {
	writeError(w, http.StatusBadRequest, ErrorResponse{
		Error:   "Validation Failed",
		Code:    social.CodeInvalidRequest,
		Message: validationErr.Error(),
		Details: validationErr,
	})

	logger.Warn("Validation error", "errors", validationErr.Error())
}

// WriteInternalError writes a generic internal server error
func WriteInternalError(w http.ResponseWriter, err error, message string, logFields ...any) {
	writeError(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "Internal Server Error",
		Code:    social.CodeInternalError,
		Message: message,
	})

	logFields = append([]any{"error", err, "message", message}, logFields...)
	logger.Error("Internal server error", logFields...)
}

// WriteDomainError maps err to its error code and HTTP status and writes it.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ve validation.Errors
	if errors.As(err, &ve) {
		WriteValidationError(w, ve)
		return
	}

	code := social.ErrorCode(err)
	status := StatusForCode(code)
	writeError(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Message: clientMessage(err),
	})

	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "code", code, "status", status, "error", err)
	} else {
		log.Warn("Request rejected", "code", code, "status", status, "error", err)
	}
}

// clientMessage is err's text with any provider response body removed.
// The full error is only logged.
func clientMessage(err error) string {
	msg := err.Error()
	var pe *social.ProviderError
	if errors.As(err, &pe) && pe.Body != "" {
		msg = strings.ReplaceAll(msg, pe.Error(), pe.Summary())
	}
	return msg
}

// StatusForCode returns the HTTP status used for a user-facing error code.
func StatusForCode(code string) int {
	switch code {
	case social.CodeInvalidState, social.CodeMissingCodeOrState, social.CodeInvalidRequest:
		return http.StatusBadRequest
	case social.CodeOAuthDenied:
		return http.StatusForbidden
	case social.CodeNotConnected, social.CodePostNotFound, social.CodeUnsupportedProvider:
		return http.StatusNotFound
	case social.CodeRefreshUnavailable, social.CodeRefreshFailed, social.CodeReconnectRequired:
		return http.StatusUnauthorized
	case social.CodeTokenExchangeFailed, social.CodeProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RedirectWithError sends the browser back to base with ?error=<code>&provider=<name>.
func RedirectWithError(w http.ResponseWriter, r *http.Request, base, code string, provider social.Provider) {
	q := url.Values{}
	q.Set("error", code)
	if provider != "" {
		q.Set("provider", string(provider))
	}
	logger.FromContext(r.Context()).Warn("Connect flow failed", "code", code, "provider", provider)
	http.Redirect(w, r, appendQuery(base, q), http.StatusFound)
}

// RedirectWithParams sends the browser to base with q appended.
func RedirectWithParams(w http.ResponseWriter, r *http.Request, base string, q url.Values) {
	http.Redirect(w, r, appendQuery(base, q), http.StatusFound)
}

func appendQuery(base string, q url.Values) string {
	if len(q) == 0 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}

func writeError(w http.ResponseWriter, status int, response ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("Failed to encode error response", "error", err)
	}
}

// WriteJSON writes a JSON response with proper error handling
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
		// Can't write another response at this point, but log it
	}
}

// WriteCreated writes a 201 Created response with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a 200 OK response with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, data)
}
