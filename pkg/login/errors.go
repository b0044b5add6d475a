package login

import "errors"

var (
	// ErrInvalidEmail is returned when the submitted email fails shape
	// validation after normalization.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrNotRegistered is returned when no account exists for the email.
	ErrNotRegistered = errors.New("email not registered")

	// ErrRegistrationIncomplete is returned when an identity exists but the
	// profile record never finished registration.
	ErrRegistrationIncomplete = errors.New("registration incomplete")

	// ErrInvalidOrExpiredToken is returned on login token redemption
	// failure. Not-found and expired share one error so responses cannot
	// distinguish a guessed token from a stale one.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrInvalidOrExpiredLink is the verification-link counterpart of
	// ErrInvalidOrExpiredToken.
	ErrInvalidOrExpiredLink = errors.New("invalid or expired verification link")

	// ErrDeviceMismatch is returned when a login token is redeemed from a
	// device other than the one it was issued to. The token is already
	// consumed when this error is returned.
	ErrDeviceMismatch = errors.New("device mismatch")

	// ErrDeliveryFailed is returned when a critical-path email could not be
	// sent.
	ErrDeliveryFailed = errors.New("failed to send email")
)
