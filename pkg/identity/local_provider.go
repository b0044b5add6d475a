package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultSessionTTL = time.Hour

// sessionClaims are the JWT claims carried by a session token.
type sessionClaims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	jwt.RegisteredClaims
}

// LocalProvider is an identity backend backed by process memory and HS256
// session tokens. It keeps the Provider seam honest without requiring an
// external service; a hosted identity platform can replace it behind the
// same interface.
type LocalProvider struct {
	mu         sync.RWMutex
	byEmail    map[string]Identity
	byUID      map[string]Identity
	secret     []byte
	issuer     string
	sessionTTL time.Duration
	now        func() time.Time
}

// LocalProviderOption configures a LocalProvider.
type LocalProviderOption func(*LocalProvider)

// WithSessionTTL overrides the default one hour session token lifetime.
func WithSessionTTL(ttl time.Duration) LocalProviderOption {
	return func(p *LocalProvider) {
		p.sessionTTL = ttl
	}
}

// WithIssuer sets the iss claim on minted session tokens.
func WithIssuer(issuer string) LocalProviderOption {
	return func(p *LocalProvider) {
		p.issuer = issuer
	}
}

// WithNow overrides the provider's time source for tests.
func WithNow(now func() time.Time) LocalProviderOption {
	return func(p *LocalProvider) {
		p.now = now
	}
}

// NewLocalProvider creates a provider signing session tokens with secret.
func NewLocalProvider(secret string, opts ...LocalProviderOption) *LocalProvider {
	p := &LocalProvider{
		byEmail:    make(map[string]Identity),
		byUID:      make(map[string]Identity),
		secret:     []byte(secret),
		issuer:     "shamba-auth",
		sessionTTL: defaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *LocalProvider) GetUserByEmail(ctx context.Context, email string) (Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, exists := p.byEmail[email]
	if !exists {
		return Identity{}, ErrIdentityNotFound
	}
	return id, nil
}

func (p *LocalProvider) CreateIdentity(ctx context.Context, email, displayName string) (Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byEmail[email]; exists {
		return Identity{}, fmt.Errorf("identity already exists for %s", email)
	}

	id := Identity{
		UID:         uuid.New().String(),
		Email:       email,
		DisplayName: displayName,
		// Reaching this point requires a link delivered to the address,
		// so the email is considered verified.
		EmailVerified: true,
	}
	p.byEmail[email] = id
	p.byUID[id.UID] = id

	slog.Info("Identity created", "uid", id.UID)
	return id, nil
}

func (p *LocalProvider) CreateSessionToken(ctx context.Context, uid string) (string, error) {
	p.mu.RLock()
	id, exists := p.byUID[uid]
	p.mu.RUnlock()
	if !exists {
		return "", ErrIdentityNotFound
	}

	now := p.now().UTC()
	claims := sessionClaims{
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.sessionTTL)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

func (p *LocalProvider) VerifySessionToken(ctx context.Context, tokenStr string) (*AuthUser, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return p.now().UTC() }))
	if err != nil {
		return nil, fmt.Errorf("parsing session token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}

	return &AuthUser{
		UID:           claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, nil
}
