package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shambasecure/shamba-auth/pkg/client"
	"github.com/shambasecure/shamba-auth/pkg/device"
	"github.com/shambasecure/shamba-auth/pkg/login"
	"github.com/shambasecure/shamba-auth/pkg/trusteddevice"
	"github.com/shambasecure/shamba-auth/pkg/user"
)

// Handle serves the /api/auth route group.
type Handle struct {
	loginService   *login.LoginService
	trustedDevices *trusteddevice.Service
}

func NewHandle(loginService *login.LoginService, trustedDevices *trusteddevice.Service) *Handle {
	return &Handle{
		loginService:   loginService,
		trustedDevices: trustedDevices,
	}
}

// Routes mounts the auth endpoints on a fresh router.
func (h *Handle) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/send-magic-link", h.SendMagicLink)
	r.Post("/verify-device", h.VerifyDevice)
	r.Post("/verify-token", h.VerifyToken)
	r.Post("/check-email", h.CheckEmail)
	r.Post("/remove-device", h.RemoveDevice)
	r.Group(func(r chi.Router) {
		r.Use(client.RequireAuth)
		r.Get("/trusted-devices", h.TrustedDevices)
	})
	return r
}

func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message})
}

// SendMagicLink handles POST /send-magic-link
func (h *Handle) SendMagicLink(w http.ResponseWriter, r *http.Request) {
	var req SendMagicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" {
		renderError(w, r, http.StatusBadRequest, "Email is required")
		return
	}

	dev := device.FromRequest(r, time.Now())
	result, err := h.loginService.RequestLogin(r.Context(), req.Email, dev)
	if err != nil {
		switch {
		case errors.Is(err, login.ErrInvalidEmail):
			renderError(w, r, http.StatusBadRequest, "Invalid email address")
		case errors.Is(err, login.ErrNotRegistered):
			renderError(w, r, http.StatusNotFound, "Email not registered. Please sign up first.")
		case errors.Is(err, login.ErrRegistrationIncomplete):
			renderError(w, r, http.StatusForbidden, "Registration incomplete. Please finish signing up.")
		case errors.Is(err, login.ErrDeliveryFailed):
			renderError(w, r, http.StatusInternalServerError, "Failed to send email. Please try again later.")
		default:
			slog.Error("Failed to process login request", "err", err)
			renderError(w, r, http.StatusInternalServerError, "An unexpected error occurred")
		}
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, SendMagicLinkResponse{
		Success:                    true,
		RequiresDeviceVerification: result.RequiresDeviceVerification,
		Message:                    result.Message,
	})
}

// VerifyDevice handles POST /verify-device
func (h *Handle) VerifyDevice(w http.ResponseWriter, r *http.Request) {
	var req VerifyDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Token == "" {
		renderError(w, r, http.StatusBadRequest, "Token is required")
		return
	}

	email, err := h.loginService.ConfirmDeviceVerification(r.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, login.ErrInvalidOrExpiredLink):
			renderError(w, r, http.StatusUnauthorized, "Invalid or expired verification link")
		case errors.Is(err, login.ErrDeliveryFailed):
			renderError(w, r, http.StatusInternalServerError, "Failed to send email. Please try again later.")
		default:
			slog.Error("Failed to verify device", "err", err)
			renderError(w, r, http.StatusInternalServerError, "An unexpected error occurred")
		}
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, VerifyDeviceResponse{
		Success: true,
		Message: "Device verified. A login link has been sent to your email.",
		Email:   email,
	})
}

// VerifyToken handles POST /verify-token
func (h *Handle) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req VerifyTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Token == "" {
		renderError(w, r, http.StatusBadRequest, "Token is required")
		return
	}

	dev := device.FromRequest(r, time.Now())
	result, err := h.loginService.RedeemLoginToken(r.Context(), req.Token, dev)
	if err != nil {
		switch {
		case errors.Is(err, login.ErrInvalidOrExpiredToken):
			renderError(w, r, http.StatusUnauthorized, "Invalid or expired token")
		case errors.Is(err, login.ErrDeviceMismatch):
			renderError(w, r, http.StatusForbidden, "This login link was issued to a different device. Please request a new one.")
		default:
			slog.Error("Failed to redeem login token", "err", err)
			renderError(w, r, http.StatusInternalServerError, "An unexpected error occurred")
		}
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, VerifyTokenResponse{
		Success:     true,
		CustomToken: result.SessionToken,
		User:        result.User,
	})
}

// TrustedDevices handles GET /trusted-devices
func (h *Handle) TrustedDevices(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		renderError(w, r, http.StatusBadRequest, "uid is required")
		return
	}

	// A caller may only list their own devices.
	authUser := client.AuthUser(r)
	if authUser == nil || authUser.UID != uid {
		renderError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	devices, err := h.trustedDevices.ListTrustedDevices(r.Context(), uid)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			renderError(w, r, http.StatusNotFound, "User not found")
			return
		}
		slog.Error("Failed to list trusted devices", "uid", uid, "err", err)
		renderError(w, r, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, TrustedDevicesResponse{
		Success: true,
		Devices: devices,
	})
}

// RemoveDevice handles POST /remove-device
func (h *Handle) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	var req RemoveDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UID == "" || req.Fingerprint == "" {
		renderError(w, r, http.StatusBadRequest, "uid and deviceFingerprint are required")
		return
	}

	if err := h.trustedDevices.RemoveTrustedDevice(r.Context(), req.UID, req.Fingerprint); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			renderError(w, r, http.StatusNotFound, "User not found")
			return
		}
		slog.Error("Failed to remove trusted device", "uid", req.UID, "err", err)
		renderError(w, r, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, RemoveDeviceResponse{
		Success: true,
		Message: "Device removed",
	})
}

// CheckEmail handles POST /check-email
func (h *Handle) CheckEmail(w http.ResponseWriter, r *http.Request) {
	var req CheckEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" {
		renderError(w, r, http.StatusBadRequest, "Email is required")
		return
	}

	result, err := h.loginService.CheckEmail(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, login.ErrInvalidEmail):
			renderError(w, r, http.StatusBadRequest, "Invalid email address")
		default:
			slog.Error("Failed to check email", "err", err)
			renderError(w, r, http.StatusInternalServerError, "An unexpected error occurred")
		}
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, CheckEmailResponse{
		Success:      true,
		Exists:       result.Exists,
		IsRegistered: result.IsRegistered,
	})
}
