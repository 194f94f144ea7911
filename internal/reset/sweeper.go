package reset

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Sweeper periodically purges expired reset tokens until its context ends.
type Sweeper struct {
	store    *Store
	interval time.Duration
	clock    clockwork.Clock
	logger   *zap.SugaredLogger
	purged   prometheus.Counter
}

// NewSweeper registers the purge counter on reg when reg is non-nil.
func NewSweeper(store *Store, interval time.Duration, clock clockwork.Clock, logger *zap.SugaredLogger, reg prometheus.Registerer) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	var purged prometheus.Counter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_reset_tokens_purged_total",
		Help: "Expired password reset tokens removed by the sweeper.",
	})
	if reg != nil {
		if err := reg.Register(purged); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				purged = are.ExistingCollector.(prometheus.Counter)
			} else {
				logger.Warnw("register sweeper metrics", "err", err)
			}
		}
	}
	return &Sweeper{store: store, interval: interval, clock: clock, logger: logger, purged: purged}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Debugw("reset sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debugw("reset sweeper stopped")
			return
		case <-ticker.Chan():
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.store.Purge(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warnw("purge expired reset tokens failed", "err", err)
		}
		return
	}
	if n > 0 {
		s.purged.Add(float64(n))
		s.logger.Infow("purged expired reset tokens", "count", n)
	}
}
