package trusteddevice

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/shambasecure/shamba-auth/pkg/device"
	"github.com/shambasecure/shamba-auth/pkg/user"
)

// MaxTrustedDevices caps the trusted list per user. Adding beyond the cap
// evicts the least recently used entry.
const MaxTrustedDevices = 5

// Service maintains each user's trusted-device list through the user
// repository. Mutations are read-modify-write on the whole record; the last
// writer wins when two requests race, which for this list means at worst a
// dropped timestamp touch.
type Service struct {
	repo user.Repository
	now  func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service's time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a trusted-device service over the given repository.
func NewService(repo user.Repository, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsTrusted reports whether fingerprint is on the user's trusted list. A
// match refreshes the entry's last-used timestamp. A missing user or any
// repository failure reads as not trusted rather than an error, since the
// caller's fallback is simply to require device verification.
func (s *Service) IsTrusted(ctx context.Context, uid, fingerprint string) bool {
	u, err := s.repo.Get(ctx, uid)
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			slog.Error("Failed to load user for trust check", "uid", uid, "err", err)
		}
		return false
	}

	for i := range u.TrustedDevices {
		if u.TrustedDevices[i].Fingerprint != fingerprint {
			continue
		}

		// Touch a copy; the fetched slice aliases the repository's stored
		// record, which must only change through Update.
		devices := make([]user.TrustedDevice, len(u.TrustedDevices))
		copy(devices, u.TrustedDevices)
		devices[i].LastUsedAt = s.now().UTC()
		u.TrustedDevices = devices
		u.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, u); err != nil {
			// The device still counts as trusted; only the touch is lost.
			slog.Error("Failed to touch trusted device", "uid", uid, "err", err)
		}
		return true
	}
	return false
}

// AddTrustedDevice appends info to the user's trusted list, evicting the
// least recently used entries beyond the cap. Returns false only when the
// user record does not exist or cannot be written.
func (s *Service) AddTrustedDevice(ctx context.Context, uid string, info device.Info) bool {
	u, err := s.repo.Get(ctx, uid)
	if err != nil {
		slog.Error("Failed to load user for device add", "uid", uid, "err", err)
		return false
	}

	now := s.now().UTC()

	// Re-adding a known device refreshes it instead of duplicating. Filter
	// into a fresh slice; the fetched one aliases the stored record.
	kept := make([]user.TrustedDevice, 0, len(u.TrustedDevices)+1)
	for _, td := range u.TrustedDevices {
		if td.Fingerprint != info.Fingerprint {
			kept = append(kept, td)
		}
	}
	u.TrustedDevices = append(kept, user.TrustedDevice{
		Info:       info,
		AddedAt:    now,
		LastUsedAt: now,
	})

	if len(u.TrustedDevices) > MaxTrustedDevices {
		sort.SliceStable(u.TrustedDevices, func(i, j int) bool {
			return u.TrustedDevices[i].LastUsedAt.After(u.TrustedDevices[j].LastUsedAt)
		})
		u.TrustedDevices = u.TrustedDevices[:MaxTrustedDevices]
	}

	u.UpdatedAt = now
	if err := s.repo.Update(ctx, u); err != nil {
		slog.Error("Failed to save trusted device", "uid", uid, "err", err)
		return false
	}

	slog.Info("Trusted device added", "uid", uid, "deviceType", info.DeviceType)
	return true
}

// RemoveTrustedDevice deletes fingerprint from the user's trusted list.
// Removing a fingerprint that is not on the list succeeds without effect.
func (s *Service) RemoveTrustedDevice(ctx context.Context, uid, fingerprint string) error {
	u, err := s.repo.Get(ctx, uid)
	if err != nil {
		return err
	}

	kept := make([]user.TrustedDevice, 0, len(u.TrustedDevices))
	for _, td := range u.TrustedDevices {
		if td.Fingerprint != fingerprint {
			kept = append(kept, td)
		}
	}
	if len(kept) == len(u.TrustedDevices) {
		return nil
	}

	u.TrustedDevices = kept
	u.UpdatedAt = s.now().UTC()
	return s.repo.Update(ctx, u)
}

// ListTrustedDevices returns the user's trusted devices, most recently used
// first.
func (s *Service) ListTrustedDevices(ctx context.Context, uid string) ([]user.TrustedDevice, error) {
	u, err := s.repo.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	devices := make([]user.TrustedDevice, len(u.TrustedDevices))
	copy(devices, u.TrustedDevices)
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].LastUsedAt.After(devices[j].LastUsedAt)
	})
	return devices, nil
}
