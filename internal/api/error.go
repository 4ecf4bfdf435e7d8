// Package api holds the HTTP plumbing shared by the domain handlers.
package api

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"carrental/internal/apperr"

	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError maps err to its status and code. Internal causes are logged and
// replaced by a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		Logger(r.Context()).Error("request failed", zap.Error(err))
	}

	WriteJSON(w, status, ErrorResponse{
		Error: apperr.PublicMessage(err),
		Code:  apperr.CodeOf(err),
	})
}

// Recoverer turns a panic into a 500 response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				Logger(r.Context()).Error("panic recovered",
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
					Error: "internal server error",
					Code:  apperr.CodeInternal,
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
