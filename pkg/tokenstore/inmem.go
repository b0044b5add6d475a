package tokenstore

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// InMemStore implements Store with a mutex-guarded map. Entries live in
// process memory only; a restart drops all outstanding tokens. The mutex
// makes Redeem an atomic read-and-delete, which is what gives the
// exactly-once guarantee.
type InMemStore struct {
	mu      sync.Mutex
	entries map[string]Data
	ttl     time.Duration
	now     func() time.Time
}

// InMemStoreOption configures an InMemStore.
type InMemStoreOption func(*InMemStore)

// WithClock overrides the store's time source. Used by tests to exercise
// expiry boundaries deterministically.
func WithClock(now func() time.Time) InMemStoreOption {
	return func(s *InMemStore) {
		s.now = now
	}
}

// NewInMemStore creates an in-memory token store whose tokens expire ttl
// after issuance.
func NewInMemStore(ttl time.Duration, opts ...InMemStoreOption) *InMemStore {
	s := &InMemStore{
		entries: make(map[string]Data),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates a token and stores the payload under it. Collisions in a
// 32-byte random keyspace are treated as negligible; no pre-existing key
// check is made.
func (s *InMemStore) Issue(ctx context.Context, data Data) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	data.CreatedAt = now
	data.ExpiresAt = now.Add(s.ttl)

	s.mu.Lock()
	s.entries[token] = data
	s.mu.Unlock()

	slog.Debug("Token issued", "uid", data.UID, "expiresAt", data.ExpiresAt)
	return token, nil
}

// Redeem removes the token and returns its payload. An expired entry is
// deleted and reported as ErrTokenExpired; an unknown or already-redeemed
// token reports ErrTokenNotFound.
func (s *InMemStore) Redeem(ctx context.Context, token string) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, exists := s.entries[token]
	if !exists {
		return Data{}, ErrTokenNotFound
	}

	delete(s.entries, token)

	if s.now().UTC().After(data.ExpiresAt) {
		slog.Debug("Token expired at redemption", "uid", data.UID, "expiresAt", data.ExpiresAt)
		return Data{}, ErrTokenExpired
	}

	return data, nil
}

// Sweep deletes all entries expired as of now.
func (s *InMemStore) Sweep(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, data := range s.entries {
		if now.UTC().After(data.ExpiresAt) {
			delete(s.entries, token)
			removed++
		}
	}

	if removed > 0 {
		slog.Debug("Swept expired tokens", "removed", removed)
	}
	return removed
}

// Len reports the number of live entries. Intended for tests and metrics.
func (s *InMemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
