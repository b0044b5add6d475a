// Package profile serves the authenticated user's own record.
package profile

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shambasecure/shamba-auth/pkg/client"
	"github.com/shambasecure/shamba-auth/pkg/user"
)

type ProfileResponse struct {
	Success bool      `json:"success"`
	User    user.User `json:"user"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type Handle struct {
	users user.Repository
}

func NewHandle(users user.Repository) *Handle {
	return &Handle{users: users}
}

func (h *Handle) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(client.RequireAuth)
	r.Get("/profile", h.GetProfile)
	return r
}

// GetProfile handles GET /profile for the authenticated user.
func (h *Handle) GetProfile(w http.ResponseWriter, r *http.Request) {
	authUser := client.AuthUser(r)

	u, err := h.users.Get(r.Context(), authUser.UID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, ErrorResponse{Error: "Profile not found"})
			return
		}
		slog.Error("Failed to load profile", "uid", authUser.UID, "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "An unexpected error occurred"})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ProfileResponse{
		Success: true,
		User:    u,
	})
}
