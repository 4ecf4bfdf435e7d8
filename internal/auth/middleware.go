package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"carrental/internal/api"
	"carrental/internal/apperr"
)

type identityKey struct{}

// WithIdentity attaches the caller to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the caller set by Authenticate.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Authenticate requires a valid Bearer token and stores the caller's
// identity in the request context.
func (m *TokenManager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			api.WriteError(w, r, apperr.Unauthorized(apperr.CodeUnauthorized, "missing bearer token"))
			return
		}

		id, err := m.Validate(strings.TrimSpace(token))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, ErrExpiredToken) {
				msg = "token has expired"
			}
			api.WriteError(w, r, apperr.Unauthorized(apperr.CodeUnauthorized, msg))
			return
		}

		if m.lookup != nil {
			fresh, err := m.lookup(r.Context(), id.CustomerID)
			if err != nil {
				if apperr.KindOf(err) == apperr.KindNotFound {
					err = apperr.Unauthorized(apperr.CodeUnauthorized, "account no longer exists")
				}
				api.WriteError(w, r, err)
				return
			}
			id = fresh
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireAdmin rejects callers without the admin flag. It must run after
// Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok {
			api.WriteError(w, r, apperr.Unauthorized(apperr.CodeUnauthorized, "authentication required"))
			return
		}
		if !id.IsAdmin {
			api.WriteError(w, r, apperr.Forbidden("admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Caller returns the identity from the request or an unauthorized error.
func Caller(r *http.Request) (Identity, error) {
	id, ok := FromContext(r.Context())
	if !ok {
		return Identity{}, apperr.Unauthorized(apperr.CodeUnauthorized, "authentication required")
	}
	return id, nil
}
