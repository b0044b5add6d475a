package client

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shambasecure/shamba-auth/pkg/identity"
)

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "auth context value " + k.name
}

var authContextKey = &contextKey{"AuthContext"}

// AuthContext carries the outcome of token verification for one request.
type AuthContext struct {
	IsAuthenticated bool
	User            *identity.AuthUser
}

// GetAuthContext returns the request's auth context. Requests that never
// passed through AuthMiddleware read as unauthenticated.
func GetAuthContext(r *http.Request) AuthContext {
	if authCtx, ok := r.Context().Value(authContextKey).(AuthContext); ok {
		return authCtx
	}
	return AuthContext{}
}

// AuthUser returns the authenticated principal for the request, or nil.
func AuthUser(r *http.Request) *identity.AuthUser {
	return GetAuthContext(r).User
}

// AuthMiddleware verifies a Bearer token against the identity provider and
// stores the result in the request context. It never rejects by itself;
// pair it with RequireAuth on protected routes.
func AuthMiddleware(provider identity.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			authUser, err := provider.VerifySessionToken(r.Context(), token)
			if err != nil {
				slog.Debug("Session token verification failed", "err", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), authContextKey, AuthContext{
				IsAuthenticated: true,
				User:            authUser,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
