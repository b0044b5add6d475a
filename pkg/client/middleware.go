package client

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// RequireAuth is an authorization middleware that requires valid
// authentication. Returns 401 Unauthorized if the request is not
// authenticated. Must be used after AuthMiddleware. The response message is
// deliberately generic.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r)

		if !authCtx.IsAuthenticated {
			slog.Debug("Unauthenticated request to protected resource", "path", r.URL.Path)
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]interface{}{
				"success": false,
				"error":   "Unauthorized",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
