package repo

import (
	"context"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/reset/entity"
)

// MemoryRepo keeps reset tokens in process, keyed by token hash.
type MemoryRepo struct {
	mu     sync.Mutex
	tokens map[string]entity.ResetToken
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{tokens: make(map[string]entity.ResetToken)}
}

func (r *MemoryRepo) Insert(_ context.Context, t *entity.ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	cp.Token = ""
	r.tokens[t.TokenHash] = cp
	return nil
}

func (r *MemoryRepo) GetByHash(_ context.Context, hash string) (*entity.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *MemoryRepo) DeleteByHash(_ context.Context, hash string) (*entity.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[hash]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.tokens, hash)
	return &t, nil
}

func (r *MemoryRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for h, t := range r.tokens {
		if !t.Valid(now) {
			delete(r.tokens, h)
			n++
		}
	}
	return n, nil
}

// Len reports how many records are physically present, expired or not.
func (r *MemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
