package ratelimit

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

type Config struct {
	Limit     int
	Window    time.Duration
	KeyPrefix string
}

// ConfigFromEnv reads RATE_LIMIT_MAX and RATE_LIMIT_WINDOW. A limit of zero
// or less disables limiting.
func ConfigFromEnv() Config {
	return Config{
		Limit:     utilities.EnvInt("RATE_LIMIT_MAX", 10),
		Window:    utilities.EnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		KeyPrefix: "ratelimit",
	}
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a sliding-window limiter over Redis sorted sets: one member per
// accepted request, scored by its time in milliseconds.
type Limiter struct {
	client *redis.Client
	cfg    Config
	clock  clockwork.Clock
	logger *zap.SugaredLogger
}

func NewLimiter(client *redis.Client, cfg Config, clock clockwork.Clock, logger *zap.SugaredLogger) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{client: client, cfg: cfg, clock: clock, logger: logger}
}

func (l *Limiter) key(k string) string {
	if l.cfg.KeyPrefix == "" {
		return k
	}
	return l.cfg.KeyPrefix + ":" + k
}

// Allow records a request for key if it fits in the window. On a Redis error
// the returned Decision allows the request.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	d := Decision{Allowed: true, Limit: l.cfg.Limit, Remaining: l.cfg.Limit}
	if l.cfg.Limit <= 0 {
		return d, nil
	}

	k := l.key(key)
	nowMs := l.clock.Now().UnixMilli()
	windowMs := l.cfg.Window.Milliseconds()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(nowMs-windowMs, 10))
	card := pipe.ZCard(ctx, k)
	oldest := pipe.ZRangeWithScores(ctx, k, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return d, oops.Code("RATE_LIMIT_UNAVAILABLE").With("operation", "trim window").Wrap(err)
	}

	count := int(card.Val())
	if count >= l.cfg.Limit {
		retry := l.cfg.Window
		if zs := oldest.Val(); len(zs) > 0 {
			retry = time.Duration(int64(zs[0].Score)+windowMs-nowMs) * time.Millisecond
		}
		if retry <= 0 {
			retry = time.Millisecond
		}
		return Decision{Allowed: false, Limit: l.cfg.Limit, Remaining: 0, RetryAfter: retry}, nil
	}

	pipe = l.client.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(nowMs), Member: utilities.NewKSUID()})
	pipe.PExpire(ctx, k, l.cfg.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return d, oops.Code("RATE_LIMIT_UNAVAILABLE").With("operation", "record attempt").Wrap(err)
	}
	d.Remaining = l.cfg.Limit - count - 1
	return d, nil
}

// Middleware limits requests per client IP within scope.
func (l *Limiter) Middleware(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), scope+":"+clientIP(r))
			if err != nil {
				l.logger.Warnw("rate limiter unavailable, allowing request", "scope", scope, "err", err)
			}
			if l.cfg.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   "rate_limited",
					"message": "too many requests",
				})
				l.logger.Infow("rate limited", "scope", scope, "remote", r.RemoteAddr, "retry_after_s", secs)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
