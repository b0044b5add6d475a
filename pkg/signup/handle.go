package signup

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type RegisterRequest struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	FarmName     string `json:"farmName,omitempty"`
	FarmLocation string `json:"farmLocation,omitempty"`
	FarmSize     string `json:"farmSize,omitempty"`
}

type RegisterResponse struct {
	Success bool           `json:"success"`
	User    RegisteredUser `json:"user"`
}

type RegisteredUser struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Handle serves the registration endpoint.
type Handle struct {
	service *Service
}

func NewHandle(service *Service) *Handle {
	return &Handle{service: service}
}

func (h *Handle) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	return r
}

// Register handles POST /register
func (h *Handle) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	u, err := h.service.Register(r.Context(), RegisterParams{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		FarmName:     req.FarmName,
		FarmLocation: req.FarmLocation,
		FarmSize:     req.FarmSize,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidParams):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{Error: "Full name, email and phone are required"})
		case errors.Is(err, ErrEmailTaken):
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, ErrorResponse{Error: "Email already registered. Try logging in instead."})
		default:
			slog.Error("Failed to register user", "err", err)
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, ErrorResponse{Error: "An unexpected error occurred"})
		}
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, RegisterResponse{
		Success: true,
		User: RegisteredUser{
			UID:      u.UID,
			Email:    u.Email,
			FullName: u.FullName,
		},
	})
}
