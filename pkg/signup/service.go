package signup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/shambasecure/shamba-auth/pkg/identity"
	"github.com/shambasecure/shamba-auth/pkg/notification"
	"github.com/shambasecure/shamba-auth/pkg/user"
)

var (
	// ErrEmailTaken is returned when an identity already exists for the
	// email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidParams is returned when required fields are missing or the
	// email fails shape validation.
	ErrInvalidParams = errors.New("invalid registration parameters")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RegisterParams are the fields collected by the signup form. Farm fields
// are optional.
type RegisterParams struct {
	FullName     string
	Email        string
	Phone        string
	FarmName     string
	FarmLocation string
	FarmSize     string
}

// Service creates accounts: an identity in the identity backend plus a
// completed profile record.
type Service struct {
	identityProvider    identity.Provider
	users               user.Repository
	notificationManager *notification.NotificationManager
	now                 func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service's time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(identityProvider identity.Provider, users user.Repository, notificationManager *notification.NotificationManager, opts ...Option) *Service {
	s := &Service{
		identityProvider:    identityProvider,
		users:               users,
		notificationManager: notificationManager,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates the params, creates the identity and writes the
// profile record. The welcome email is best effort; registration succeeds
// even when it cannot be delivered.
func (s *Service) Register(ctx context.Context, params RegisterParams) (user.User, error) {
	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.FullName = strings.TrimSpace(params.FullName)
	params.Phone = strings.TrimSpace(params.Phone)

	if params.FullName == "" || params.Phone == "" || !emailPattern.MatchString(params.Email) {
		return user.User{}, ErrInvalidParams
	}

	if _, err := s.identityProvider.GetUserByEmail(ctx, params.Email); err == nil {
		return user.User{}, ErrEmailTaken
	} else if !errors.Is(err, identity.ErrIdentityNotFound) {
		return user.User{}, fmt.Errorf("looking up identity: %w", err)
	}

	id, err := s.identityProvider.CreateIdentity(ctx, params.Email, params.FullName)
	if err != nil {
		return user.User{}, fmt.Errorf("creating identity: %w", err)
	}

	now := s.now().UTC()
	u := user.User{
		UID:          id.UID,
		Role:         "farmer",
		IsRegistered: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := copier.Copy(&u, &params); err != nil {
		return user.User{}, fmt.Errorf("mapping registration params: %w", err)
	}

	if err := s.users.Create(ctx, u); err != nil {
		return user.User{}, fmt.Errorf("saving user %s: %w", id.UID, err)
	}

	s.sendWelcome(u)
	slog.Info("User registered", "uid", id.UID)
	return u, nil
}

func (s *Service) sendWelcome(u user.User) {
	err := s.notificationManager.Send(notification.WelcomeNotice, notification.EmailSystem, notification.NotificationData{
		To: u.Email,
		Data: map[string]string{
			"FullName":      u.FullName,
			"DashboardLink": s.notificationManager.BaseUrl() + "/dashboard",
		},
	})
	if err != nil {
		slog.Warn("Failed to send welcome email", "uid", u.UID, "err", err)
	}
}
