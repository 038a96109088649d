package store

import (
	"context"
	"sync"
	"time"

	"github.com/citizone/authserver/types"
)

// MemoryUserRepository is an in-memory credential store with the same
// uniqueness and error semantics as the Postgres repository. It backs the
// service and handler tests so they run without a database.
type MemoryUserRepository struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]types.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{nextID: 1, users: make(map[int64]types.User)}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int64) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email != "" && user.Email == email {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) GetByPhone(_ context.Context, phone string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Phone != "" && user.Phone == phone {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts(user, 0) {
		return types.User{}, ErrConflict
	}
	user.ID = r.nextID
	r.nextID++
	user.RegisteredAt = time.Now()
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok {
		return types.User{}, ErrNotFound
	}
	if r.conflicts(user, user.ID) {
		return types.User{}, ErrConflict
	}
	// RegisteredAt is immutable after creation.
	user.RegisteredAt = existing.RegisteredAt
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepository) conflicts(user types.User, selfID int64) bool {
	for id, other := range r.users {
		if id == selfID {
			continue
		}
		if user.Email != "" && other.Email == user.Email {
			return true
		}
		if user.Phone != "" && other.Phone == user.Phone {
			return true
		}
	}
	return false
}
