package tokenstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/shambasecure/shamba-auth/pkg/device"
)

var (
	// ErrTokenNotFound is returned when a token does not exist, which
	// includes tokens that were already redeemed.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenExpired is returned when a token exists but its expiry has
	// passed. The entry is deleted as part of the failed lookup.
	ErrTokenExpired = errors.New("token expired")
)

// Data is the payload bound to a single-use token. Login tokens compare only
// Device.Fingerprint on redemption; device-verification tokens carry the full
// device info so it can be promoted to the trusted list.
type Data struct {
	UID       string
	Email     string
	Device    device.Info
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store holds short-lived single-use tokens. Redemption is exactly-once: of
// any number of concurrent Redeem calls for the same token, one receives the
// payload and the rest receive ErrTokenNotFound.
type Store interface {
	// Issue generates a random token, stores the payload under it with the
	// store's TTL, and returns the token.
	Issue(ctx context.Context, data Data) (string, error)

	// Redeem looks up and deletes the token in one step, returning the
	// payload. Returns ErrTokenNotFound or ErrTokenExpired on failure;
	// expired entries are removed on access.
	Redeem(ctx context.Context, token string) (Data, error)

	// Sweep deletes every entry expired as of now and reports how many were
	// removed. Callers invoke it opportunistically; lookups are
	// self-cleaning, so sweeping only bounds growth from abandoned tokens.
	Sweep(ctx context.Context, now time.Time) int
}

// generateToken returns a cryptographically random URL-safe token string.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
