package repo

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/reset/entity"
)

func newRedisRepo(t *testing.T, clock clockwork.Clock) (*RedisTokenRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTokenRepo(client, clock), mr
}

func TestRedisTokenRepo_InsertSetsTTL(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r, mr := newRedisRepo(t, clockwork.NewFakeClockAt(now))
	ctx := context.Background()

	tok := &entity.ResetToken{ID: "01J1", Identifier: "a@x.com", Token: "secret", TokenHash: "h1",
		ExpiresAt: now.Add(15 * time.Minute), CreatedAt: now}
	require.NoError(t, r.Insert(ctx, tok))

	assert.True(t, mr.Exists("reset:token:h1"))
	assert.Equal(t, 15*time.Minute, mr.TTL("reset:token:h1"))

	got, err := r.GetByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "01J1", got.ID)
	assert.True(t, got.ExpiresAt.Equal(tok.ExpiresAt))
	// plaintext never leaves the process
	assert.Empty(t, got.Token)
	raw, err := mr.Get("reset:token:h1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret")

	mr.FastForward(16 * time.Minute)
	_, err = r.GetByHash(ctx, "h1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisTokenRepo_InsertExpiredIsDropped(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r, mr := newRedisRepo(t, clockwork.NewFakeClockAt(now))

	tok := &entity.ResetToken{ID: "01J2", TokenHash: "h2", ExpiresAt: now.Add(-time.Second)}
	require.NoError(t, r.Insert(context.Background(), tok))
	assert.False(t, mr.Exists("reset:token:h2"))
}

func TestRedisTokenRepo_DeleteByHashSingleWinner(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r, _ := newRedisRepo(t, clockwork.NewFakeClockAt(now))
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, &entity.ResetToken{ID: "01J3", TokenHash: "h3", ExpiresAt: now.Add(time.Hour)}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.DeleteByHash(ctx, "h3"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	n, err := r.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}
