package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/reset/entity"
)

const redisKeyPrefix = "reset:token:"

// RedisTokenRepo keeps each token under its own key with a TTL equal to the
// token's remaining lifetime, so Redis reclaims expired tokens on its own.
type RedisTokenRepo struct {
	client *redis.Client
	clock  clockwork.Clock
}

func NewRedisTokenRepo(client *redis.Client, clock clockwork.Clock) *RedisTokenRepo {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RedisTokenRepo{client: client, clock: clock}
}

func redisKey(hash string) string { return redisKeyPrefix + hash }

func (r *RedisTokenRepo) Insert(ctx context.Context, t *entity.ResetToken) error {
	ttl := t.ExpiresAt.Sub(r.clock.Now())
	if ttl <= 0 {
		// already expired, nothing worth keeping
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return oops.Code("RESET_ENCODE_FAILED").With("id", t.ID).Wrap(err)
	}
	if err := r.client.Set(ctx, redisKey(t.TokenHash), data, ttl).Err(); err != nil {
		return oops.Code("RESET_INSERT_FAILED").With("operation", "redis set").With("id", t.ID).Wrap(err)
	}
	return nil
}

func (r *RedisTokenRepo) GetByHash(ctx context.Context, hash string) (*entity.ResetToken, error) {
	data, err := r.client.Get(ctx, redisKey(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("RESET_QUERY_FAILED").With("operation", "redis get").Wrap(err)
	}
	return decodeToken(data)
}

// DeleteByHash uses GETDEL so exactly one caller receives the value.
func (r *RedisTokenRepo) DeleteByHash(ctx context.Context, hash string) (*entity.ResetToken, error) {
	data, err := r.client.GetDel(ctx, redisKey(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("RESET_DELETE_FAILED").With("operation", "redis getdel").Wrap(err)
	}
	return decodeToken(data)
}

// DeleteExpired is a no-op: keys carry their own expiry.
func (r *RedisTokenRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func decodeToken(data []byte) (*entity.ResetToken, error) {
	var t entity.ResetToken
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, oops.Code("RESET_DECODE_FAILED").Wrap(err)
	}
	return &t, nil
}
