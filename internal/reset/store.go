package reset

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/reset/entity"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/reset/repo"
)

var (
	// ErrNotFound covers unknown, consumed and expired tokens alike.
	ErrNotFound   = repo.ErrNotFound
	ErrInvalidTTL = errors.New("reset token ttl must be positive")
)

// Repository is the persistence contract shared by the Postgres, Redis and
// in-memory backends. DeleteByHash must be atomic.
type Repository interface {
	Insert(ctx context.Context, t *entity.ResetToken) error
	GetByHash(ctx context.Context, hash string) (*entity.ResetToken, error)
	DeleteByHash(ctx context.Context, hash string) (*entity.ResetToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store enforces token validity (now < expiresAt) on top of a Repository,
// independent of when the backend physically drops expired rows.
type Store struct {
	repo  Repository
	clock clockwork.Clock
}

func NewStore(r Repository, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{repo: r, clock: clock}
}

// Issue mints a fresh token for identifier. The returned record is the only
// place the plaintext token ever appears.
func (s *Store) Issue(ctx context.Context, identifier string, ttl time.Duration) (*entity.ResetToken, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	token, err := entity.GenerateToken()
	if err != nil {
		return nil, oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	now := s.clock.Now().UTC()
	t := &entity.ResetToken{
		ID:         ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Identifier: identifier,
		Token:      token,
		TokenHash:  entity.HashToken(token),
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
	if err := s.repo.Insert(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// FindByToken returns the live record for token or ErrNotFound.
func (s *Store) FindByToken(ctx context.Context, token string) (*entity.ResetToken, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	t, err := s.repo.GetByHash(ctx, entity.HashToken(token))
	if err != nil {
		return nil, err
	}
	if !t.Valid(s.clock.Now()) {
		return nil, ErrNotFound
	}
	return t, nil
}

// Consume atomically deletes the record for token and returns it. An expired
// record is still deleted but reported as ErrNotFound.
func (s *Store) Consume(ctx context.Context, token string) (*entity.ResetToken, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	t, err := s.repo.DeleteByHash(ctx, entity.HashToken(token))
	if err != nil {
		return nil, err
	}
	if !t.Valid(s.clock.Now()) {
		return nil, ErrNotFound
	}
	return t, nil
}

// Restore puts back a record removed by Consume when the follow-up write
// failed. Records that expired in the meantime are not restored.
func (s *Store) Restore(ctx context.Context, t *entity.ResetToken) error {
	if !t.Valid(s.clock.Now()) {
		return ErrNotFound
	}
	return s.repo.Insert(ctx, t)
}

// Purge drops physically present expired records.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock.Now())
}
