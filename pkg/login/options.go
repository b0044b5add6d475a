package login

import (
	"time"

	"github.com/shambasecure/shamba-auth/pkg/tokenstore"
)

// Option configures a LoginService.
type Option func(*LoginService)

// WithLoginTokenStore replaces the default in-memory magic link token store.
func WithLoginTokenStore(store tokenstore.Store) Option {
	return func(s *LoginService) {
		s.loginTokens = store
	}
}

// WithVerificationTokenStore replaces the default in-memory device
// verification token store.
func WithVerificationTokenStore(store tokenstore.Store) Option {
	return func(s *LoginService) {
		s.verificationTokens = store
	}
}

// WithFrontendURL overrides the base URL used to build emailed links.
// Defaults to the notification manager's base URL.
func WithFrontendURL(url string) Option {
	return func(s *LoginService) {
		s.frontendURL = url
	}
}

// WithTokenTTLs sets the lifetimes used for the default token stores and
// for the expiry minutes shown in emails.
func WithTokenTTLs(loginTTL, verificationTTL time.Duration) Option {
	return func(s *LoginService) {
		s.loginTokenTTL = loginTTL
		s.verificationTokenTTL = verificationTTL
	}
}

// WithClock overrides the service's time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *LoginService) {
		s.now = now
	}
}
