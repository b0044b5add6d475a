package user

import (
	"context"
	"errors"
	"time"

	"github.com/shambasecure/shamba-auth/pkg/device"
)

// ErrUserNotFound is returned when no record exists for the given uid.
var ErrUserNotFound = errors.New("user not found")

// TrustedDevice is a device the user has confirmed through a verification
// link. The embedded info is a snapshot from the confirming request.
type TrustedDevice struct {
	device.Info
	AddedAt    time.Time `json:"added_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// LoginRecord captures one completed login for the user's history view.
type LoginRecord struct {
	Timestamp time.Time   `json:"timestamp"`
	Device    device.Info `json:"device"`
	Status    string      `json:"status"`
}

// User is the profile record stored per account. Trusted devices and login
// history live inside the record so both can be updated with the profile in
// a single write.
type User struct {
	UID            string          `json:"uid"`
	FullName       string          `json:"full_name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	FarmName       string          `json:"farm_name,omitempty"`
	FarmLocation   string          `json:"farm_location,omitempty"`
	FarmSize       string          `json:"farm_size,omitempty"`
	Role           string          `json:"role"`
	IsRegistered   bool            `json:"is_registered"`
	TrustedDevices []TrustedDevice `json:"trusted_devices"`
	LoginHistory   []LoginRecord   `json:"login_history"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	LastLoginAt    *time.Time      `json:"last_login_at,omitempty"`
}

// Repository stores user records keyed by uid.
type Repository interface {
	// Get returns the record for uid, or ErrUserNotFound.
	Get(ctx context.Context, uid string) (User, error)

	// Create writes a new record. Overwrites silently if uid already
	// exists; callers check for existing identities before creating.
	Create(ctx context.Context, u User) error

	// Update replaces the record for uid, or returns ErrUserNotFound.
	Update(ctx context.Context, u User) error
}
