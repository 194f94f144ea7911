package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	accountrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/account/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/ratelimit"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/reset"
	resetrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/reset/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// app is the fully wired service. close releases the connections it opened.
type app struct {
	handler http.Handler
	auth    *auth.Handler
	sweeper *reset.Sweeper
	db      *sqlx.DB
	redis   *redis.Client
}

func (a *app) close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context, cfg appConfig, logger *zap.SugaredLogger) (_ *app, err error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()
	clock := clockwork.NewRealClock()

	if cfg.needsPostgres() {
		a.db, err = database.Connect(ctx, database.ConfigFromEnv())
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := database.Migrate(ctx, a.db.DB); err != nil {
				return nil, err
			}
		}
		logger.Infow("postgres connected")
	}

	redisCfg := database.RedisConfigFromEnv()
	if cfg.TokenStore == backendRedis && !redisCfg.Enabled() {
		return nil, errors.New("TOKEN_STORE=redis requires REDIS_ADDR")
	}
	if redisCfg.Enabled() {
		a.redis, err = database.ConnectRedis(ctx, redisCfg)
		if err != nil {
			return nil, err
		}
		logger.Infow("redis connected", "addr", redisCfg.Addr)
	}

	var accounts auth.AccountStore
	switch cfg.StoreBackend {
	case backendPostgres:
		accounts = accountrepo.NewAccountRepo(a.db)
	default:
		accounts = accountrepo.NewMemoryRepo()
	}

	var tokens reset.Repository
	switch cfg.TokenStore {
	case backendPostgres:
		tokens = resetrepo.NewTokenRepo(a.db)
	case backendRedis:
		tokens = resetrepo.NewRedisTokenRepo(a.redis, clock)
	default:
		tokens = resetrepo.NewMemoryRepo()
	}
	logger.Infow("stores selected", "accounts", cfg.StoreBackend, "tokens", cfg.TokenStore)

	hasher, err := auth.NewHasher(auth.HasherConfigFromEnv())
	if err != nil {
		return nil, err
	}

	var notifier reset.Notifier
	if smtpCfg := notify.ConfigFromEnv(); smtpCfg.Enabled() {
		notifier = notify.NewMailer(smtpCfg)
	} else {
		logger.Warnw("SMTP_HOST not set; reset emails will only be logged")
		notifier = notify.NewLogMailer(logger)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	resetCfg := reset.ConfigFromEnv()
	store := reset.NewStore(tokens, clock)
	a.sweeper = reset.NewSweeper(store, resetCfg.SweepInterval, clock, logger, reg)
	issuer, err := reset.NewIssuer(store, notifier, resetCfg, logger)
	if err != nil {
		return nil, err
	}

	ids, err := utilities.NewIDGenerator(cfg.SnowflakeID)
	if err != nil {
		return nil, err
	}
	svc, err := auth.NewService(accounts, store, issuer, hasher,
		auth.WithClock(clock), auth.WithLogger(logger), auth.WithIDGenerator(ids))
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	var limiter *ratelimit.Limiter
	if a.redis != nil {
		limiter = ratelimit.NewLimiter(a.redis, ratelimit.ConfigFromEnv(), clock, logger)
	} else {
		logger.Infow("REDIS_ADDR not set; rate limiting disabled")
	}

	a.auth = auth.NewHandler(svc, logger)
	a.handler = router.RegisterRoutes(router.Deps{
		Logger:   logger,
		Auth:     a.auth,
		Limiter:  limiter,
		Registry: reg,
	})
	return a, nil
}
