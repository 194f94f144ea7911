package repo

import (
	"context"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/account/entity"
)

// MemoryRepo is an in-process credential store used by STORE_BACKEND=memory
// and by tests. Records are copied in and out so callers never share state.
type MemoryRepo struct {
	mu       sync.RWMutex
	accounts map[string]entity.Account
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{accounts: make(map[string]entity.Account)}
}

func (r *MemoryRepo) Create(_ context.Context, a *entity.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[a.Identifier]; ok {
		return ErrAlreadyExists
	}
	r.accounts[a.Identifier] = *a
	return nil
}

func (r *MemoryRepo) FindByIdentifier(_ context.Context, identifier string) (*entity.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[identifier]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *MemoryRepo) UpdatePasswordHash(_ context.Context, identifier, hash, algo string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[identifier]
	if !ok {
		return ErrNotFound
	}
	a.PasswordHash = hash
	a.PasswordAlgo = algo
	a.PasswordUpdatedAt = &at
	a.UpdatedAt = at
	r.accounts[identifier] = a
	return nil
}

func (r *MemoryRepo) UpgradePasswordHash(_ context.Context, identifier, oldHash, newHash, algo string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[identifier]
	if !ok || a.PasswordHash != oldHash {
		return ErrNotFound
	}
	a.PasswordHash = newHash
	a.PasswordAlgo = algo
	a.PasswordUpdatedAt = &at
	a.UpdatedAt = at
	r.accounts[identifier] = a
	return nil
}

func (r *MemoryRepo) TouchLastLogin(_ context.Context, identifier string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[identifier]
	if !ok {
		return ErrNotFound
	}
	a.LastLoginAt = &at
	a.UpdatedAt = at
	r.accounts[identifier] = a
	return nil
}

// Len reports how many accounts are stored.
func (r *MemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}
