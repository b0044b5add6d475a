package identity

import (
	"context"
	"errors"
)

// ErrIdentityNotFound is returned when no identity exists for an email
// address or uid.
var ErrIdentityNotFound = errors.New("identity not found")

// Identity is an account in the identity backend, separate from the profile
// record the user repository holds.
type Identity struct {
	UID           string
	Email         string
	DisplayName   string
	EmailVerified bool
}

// AuthUser is the authenticated principal extracted from a session token.
type AuthUser struct {
	UID           string
	Email         string
	EmailVerified bool
}

// Provider abstracts the identity backend. The login orchestrator only
// needs lookup, creation and session credentials, so any backend that can
// answer those calls can be plugged in.
type Provider interface {
	// GetUserByEmail returns the identity for a normalized email address,
	// or ErrIdentityNotFound.
	GetUserByEmail(ctx context.Context, email string) (Identity, error)

	// CreateIdentity registers a new identity and returns it with its uid
	// assigned.
	CreateIdentity(ctx context.Context, email, displayName string) (Identity, error)

	// CreateSessionToken mints a session credential for uid. The client
	// exchanges it for an authenticated session.
	CreateSessionToken(ctx context.Context, uid string) (string, error)

	// VerifySessionToken validates a session credential and returns the
	// principal it was minted for.
	VerifySessionToken(ctx context.Context, token string) (*AuthUser, error)
}
