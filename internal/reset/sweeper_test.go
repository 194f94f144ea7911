package reset

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestSweeper_PurgesOnTick(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, r, clock := newTestStore()
	bg := context.Background()
	_, err := s.Issue(bg, "old", time.Minute)
	require.NoError(t, err)
	_, err = s.Issue(bg, "live", time.Hour)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	sw := NewSweeper(s, 30*time.Second, clock, zap.NewNop().Sugar(), reg)

	ctx, cancel := context.WithCancel(bg)
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	waitCtx, waitCancel := context.WithTimeout(bg, 2*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))

	clock.Advance(2 * time.Minute)
	assert.Eventually(t, func() bool { return r.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return testutil.ToFloat64(sw.purged) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestNewSweeper_ReusesRegisteredCounter(t *testing.T) {
	s, _, clock := newTestStore()
	reg := prometheus.NewRegistry()

	a := NewSweeper(s, time.Second, clock, nil, reg)
	b := NewSweeper(s, time.Second, clock, nil, reg)
	a.purged.Add(2)
	assert.Equal(t, float64(2), testutil.ToFloat64(b.purged))
}
