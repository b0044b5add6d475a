package api

import (
	"github.com/shambasecure/shamba-auth/pkg/login"
	"github.com/shambasecure/shamba-auth/pkg/user"
)

// All responses share the success/error envelope: success responses set
// Success true and omit Error; failures carry only Success false and Error.

type SendMagicLinkRequest struct {
	Email string `json:"email"`
}

type SendMagicLinkResponse struct {
	Success                    bool   `json:"success"`
	RequiresDeviceVerification bool   `json:"requiresDeviceVerification,omitempty"`
	Message                    string `json:"message"`
}

type VerifyDeviceRequest struct {
	Token string `json:"token"`
}

type VerifyDeviceResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Email   string `json:"email"`
}

type VerifyTokenRequest struct {
	Token string `json:"token"`
}

type VerifyTokenResponse struct {
	Success     bool          `json:"success"`
	CustomToken string        `json:"customToken"`
	User        login.Profile `json:"user"`
}

type TrustedDevicesResponse struct {
	Success bool                 `json:"success"`
	Devices []user.TrustedDevice `json:"devices"`
}

type RemoveDeviceRequest struct {
	UID         string `json:"uid"`
	Fingerprint string `json:"deviceFingerprint"`
}

type RemoveDeviceResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CheckEmailRequest struct {
	Email string `json:"email"`
}

type CheckEmailResponse struct {
	Success      bool `json:"success"`
	Exists       bool `json:"exists"`
	IsRegistered bool `json:"isRegistered"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
