package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shambasecure/shamba-auth/pkg/device"
	"github.com/shambasecure/shamba-auth/pkg/identity"
	"github.com/shambasecure/shamba-auth/pkg/notification"
	"github.com/shambasecure/shamba-auth/pkg/tokenstore"
	"github.com/shambasecure/shamba-auth/pkg/trusteddevice"
	"github.com/shambasecure/shamba-auth/pkg/user"
)

const (
	// DefaultLoginTokenTTL bounds how long a magic link stays valid.
	DefaultLoginTokenTTL = 15 * time.Minute

	// DefaultVerificationTokenTTL bounds how long a device verification
	// link stays valid.
	DefaultVerificationTokenTTL = 30 * time.Minute

	maxLoginHistory = 10
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail lowercases and trims an address for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LoginService orchestrates the passwordless login flow: device checks,
// token issuance, email delivery and session creation.
type LoginService struct {
	identityProvider     identity.Provider
	users                user.Repository
	trustedDevices       *trusteddevice.Service
	notificationManager  *notification.NotificationManager
	loginTokens          tokenstore.Store
	verificationTokens   tokenstore.Store
	frontendURL          string
	loginTokenTTL        time.Duration
	verificationTokenTTL time.Duration
	now                  func() time.Time
}

// LoginRequestResult reports how a login request was advanced.
type LoginRequestResult struct {
	RequiresDeviceVerification bool
	Message                    string
}

// Profile is the user projection returned with a fresh session.
type Profile struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// SessionResult carries the session credential minted on successful token
// redemption.
type SessionResult struct {
	SessionToken string
	User         Profile
}

// CheckEmailResult reports account status for a pre-login email check.
type CheckEmailResult struct {
	Exists       bool
	IsRegistered bool
}

// NewLoginService wires the orchestrator. Token stores default to in-memory
// stores with the standard TTLs; override them with options.
func NewLoginService(identityProvider identity.Provider, users user.Repository, trustedDevices *trusteddevice.Service, notificationManager *notification.NotificationManager, opts ...Option) *LoginService {
	s := &LoginService{
		identityProvider:     identityProvider,
		users:                users,
		trustedDevices:       trustedDevices,
		notificationManager:  notificationManager,
		frontendURL:          notificationManager.BaseUrl(),
		loginTokenTTL:        DefaultLoginTokenTTL,
		verificationTokenTTL: DefaultVerificationTokenTTL,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loginTokens == nil {
		s.loginTokens = tokenstore.NewInMemStore(s.loginTokenTTL)
	}
	if s.verificationTokens == nil {
		s.verificationTokens = tokenstore.NewInMemStore(s.verificationTokenTTL)
	}
	return s
}

// RequestLogin starts a login for email from the given device. A trusted
// device gets a magic link straight away; an unknown device gets a
// verification link instead and no login token is created.
func (s *LoginService) RequestLogin(ctx context.Context, email string, dev device.Info) (LoginRequestResult, error) {
	email = NormalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return LoginRequestResult{}, ErrInvalidEmail
	}

	id, err := s.identityProvider.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) {
			return LoginRequestResult{}, ErrNotRegistered
		}
		return LoginRequestResult{}, fmt.Errorf("looking up identity: %w", err)
	}

	u, err := s.users.Get(ctx, id.UID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return LoginRequestResult{}, ErrNotRegistered
		}
		return LoginRequestResult{}, fmt.Errorf("loading user %s: %w", id.UID, err)
	}
	if !u.IsRegistered {
		return LoginRequestResult{}, ErrRegistrationIncomplete
	}

	if !s.trustedDevices.IsTrusted(ctx, id.UID, dev.Fingerprint) {
		if err := s.issueVerificationLink(ctx, id.UID, email, u.FullName, dev); err != nil {
			return LoginRequestResult{}, err
		}
		slog.Info("Device verification required", "uid", id.UID, "deviceType", dev.DeviceType)
		return LoginRequestResult{
			RequiresDeviceVerification: true,
			Message:                    "New device detected. Please check your email to verify this device.",
		}, nil
	}

	if err := s.issueMagicLink(ctx, id.UID, email, u.FullName, dev); err != nil {
		return LoginRequestResult{}, err
	}
	slog.Info("Magic link sent", "uid", id.UID)
	return LoginRequestResult{
		Message: "Login link sent. Please check your email.",
	}, nil
}

// ConfirmDeviceVerification redeems a device verification token, promotes
// the device to the trusted list and hands off to a fresh magic link bound
// to the same account and device.
func (s *LoginService) ConfirmDeviceVerification(ctx context.Context, token string) (string, error) {
	data, err := s.verificationTokens.Redeem(ctx, token)
	if err != nil {
		return "", ErrInvalidOrExpiredLink
	}

	if !s.trustedDevices.AddTrustedDevice(ctx, data.UID, data.Device) {
		return "", ErrInvalidOrExpiredLink
	}

	fullName := ""
	if u, err := s.users.Get(ctx, data.UID); err == nil {
		fullName = u.FullName
	}

	if err := s.issueMagicLink(ctx, data.UID, data.Email, fullName, data.Device); err != nil {
		return "", err
	}
	s.sendNewDeviceAlert(data.Email, fullName, data.Device)

	slog.Info("Device verified", "uid", data.UID, "deviceType", data.Device.DeviceType)
	return data.Email, nil
}

// RedeemLoginToken exchanges a magic link token for a session. The token is
// consumed regardless of outcome; redeeming from a device other than the one
// the token was issued to burns it and returns ErrDeviceMismatch.
func (s *LoginService) RedeemLoginToken(ctx context.Context, token string, dev device.Info) (SessionResult, error) {
	data, err := s.loginTokens.Redeem(ctx, token)
	if err != nil {
		return SessionResult{}, ErrInvalidOrExpiredToken
	}

	if data.Device.Fingerprint != dev.Fingerprint {
		slog.Warn("Login token redeemed from wrong device", "uid", data.UID)
		return SessionResult{}, ErrDeviceMismatch
	}

	sessionToken, err := s.identityProvider.CreateSessionToken(ctx, data.UID)
	if err != nil {
		return SessionResult{}, fmt.Errorf("creating session token: %w", err)
	}

	u, err := s.users.Get(ctx, data.UID)
	if err != nil {
		return SessionResult{}, fmt.Errorf("loading user %s: %w", data.UID, err)
	}
	s.recordLogin(ctx, &u, dev)

	return SessionResult{
		SessionToken: sessionToken,
		User: Profile{
			UID:      u.UID,
			Email:    u.Email,
			FullName: u.FullName,
			Role:     u.Role,
		},
	}, nil
}

// CheckEmail reports whether an account exists for email and whether its
// registration completed.
func (s *LoginService) CheckEmail(ctx context.Context, email string) (CheckEmailResult, error) {
	email = NormalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return CheckEmailResult{}, ErrInvalidEmail
	}

	id, err := s.identityProvider.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) {
			return CheckEmailResult{}, nil
		}
		return CheckEmailResult{}, fmt.Errorf("looking up identity: %w", err)
	}

	result := CheckEmailResult{Exists: true}
	if u, err := s.users.Get(ctx, id.UID); err == nil {
		result.IsRegistered = u.IsRegistered
	}
	return result, nil
}

func (s *LoginService) issueMagicLink(ctx context.Context, uid, email, fullName string, dev device.Info) error {
	token, err := s.loginTokens.Issue(ctx, tokenstore.Data{
		UID:    uid,
		Email:  email,
		Device: dev,
	})
	if err != nil {
		return fmt.Errorf("issuing login token: %w", err)
	}
	s.sweep(ctx)

	err = s.notificationManager.Send(notification.MagicLinkNotice, notification.EmailSystem, notification.NotificationData{
		To: email,
		Data: map[string]string{
			"FullName":      fullName,
			"MagicLink":     s.frontendURL + "/auth/verify?token=" + token,
			"ExpiryMinutes": strconv.Itoa(int(s.loginTokenTTL.Minutes())),
		},
	})
	if err != nil {
		slog.Error("Failed to send magic link email", "uid", uid, "err", err)
		return ErrDeliveryFailed
	}
	return nil
}

func (s *LoginService) issueVerificationLink(ctx context.Context, uid, email, fullName string, dev device.Info) error {
	token, err := s.verificationTokens.Issue(ctx, tokenstore.Data{
		UID:    uid,
		Email:  email,
		Device: dev,
	})
	if err != nil {
		return fmt.Errorf("issuing verification token: %w", err)
	}
	s.sweep(ctx)

	err = s.notificationManager.Send(notification.DeviceVerificationNotice, notification.EmailSystem, notification.NotificationData{
		To: email,
		Data: map[string]string{
			"FullName":         fullName,
			"VerificationLink": s.frontendURL + "/auth/verify-device?token=" + token,
			"ExpiryMinutes":    strconv.Itoa(int(s.verificationTokenTTL.Minutes())),
			"DeviceType":       dev.DeviceType,
			"Browser":          dev.Browser,
			"OS":               dev.OS,
			"IPAddress":        dev.IPAddress,
			"Time":             dev.ObservedAt.Format(time.RFC1123),
		},
	})
	if err != nil {
		slog.Error("Failed to send device verification email", "uid", uid, "err", err)
		return ErrDeliveryFailed
	}
	return nil
}

// sendNewDeviceAlert is best effort; a failed alert never blocks the login
// hand-off.
func (s *LoginService) sendNewDeviceAlert(email, fullName string, dev device.Info) {
	err := s.notificationManager.Send(notification.NewDeviceAlertNotice, notification.EmailSystem, notification.NotificationData{
		To: email,
		Data: map[string]string{
			"FullName":   fullName,
			"DeviceType": dev.DeviceType,
			"Browser":    dev.Browser,
			"OS":         dev.OS,
			"Time":       s.now().UTC().Format(time.RFC1123),
		},
	})
	if err != nil {
		slog.Warn("Failed to send new device alert", "err", err)
	}
}

// recordLogin appends a history record and stamps last login. History and
// timestamp updates are best effort; the session is already minted.
func (s *LoginService) recordLogin(ctx context.Context, u *user.User, dev device.Info) {
	now := s.now().UTC()
	u.LoginHistory = append(u.LoginHistory, user.LoginRecord{
		Timestamp: now,
		Device:    dev,
		Status:    "success",
	})
	if len(u.LoginHistory) > maxLoginHistory {
		u.LoginHistory = u.LoginHistory[len(u.LoginHistory)-maxLoginHistory:]
	}
	u.LastLoginAt = &now
	u.UpdatedAt = now

	if err := s.users.Update(ctx, *u); err != nil {
		slog.Error("Failed to record login", "uid", u.UID, "err", err)
	}
}

// sweep opportunistically drops expired entries from both token stores.
func (s *LoginService) sweep(ctx context.Context) {
	now := s.now().UTC()
	s.loginTokens.Sweep(ctx, now)
	s.verificationTokens.Sweep(ctx, now)
}
