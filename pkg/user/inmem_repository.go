package user

import (
	"context"
	"sync"
)

// InMemRepository keeps user records in a mutex-guarded map. Suitable for
// tests and single-process deployments.
type InMemRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewInMemRepository creates an empty in-memory repository.
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		users: make(map[string]User),
	}
}

func (r *InMemRepository) Get(ctx context.Context, uid string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, exists := r.users[uid]
	if !exists {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *InMemRepository) Create(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[u.UID] = u
	return nil
}

func (r *InMemRepository) Update(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[u.UID]; !exists {
		return ErrUserNotFound
	}
	r.users[u.UID] = u
	return nil
}
