package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidateSpec(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSpec(DefaultSpec))
	require.NoError(t, ValidateSpec("0 0 * * * *"))
	require.NoError(t, ValidateSpec("*/5 * * * *"))
	require.NoError(t, ValidateSpec("@hourly"))
	require.Error(t, ValidateSpec("every thirty seconds"))
	require.Error(t, ValidateSpec("61 * * * * *"))
}

func TestAddRejectsDuplicatesAndBadSpecs(t *testing.T) {
	t.Parallel()

	s := New(nil, zap.NewNop())
	require.NoError(t, s.Add("check", DefaultSpec, func(context.Context) {}))
	require.Error(t, s.Add("check", DefaultSpec, func(context.Context) {}))
	require.Error(t, s.Add("other", "nope", func(context.Context) {}))
}

func TestNextUsesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("MSK", 3*60*60)
	s := New(loc, nil)
	require.NoError(t, s.Add("daily", "0 0 9 * * *", func(context.Context) {}))

	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		_, ok := s.Next("daily")
		return ok
	}, time.Second, 10*time.Millisecond)
	next, _ := s.Next("daily")
	require.Equal(t, 9, next.In(loc).Hour())
	_, ok := s.Next("missing")
	require.False(t, ok)

	cancel()
	<-done
}

func TestRunExecutesAndRecoversPanics(t *testing.T) {
	t.Parallel()

	s := New(time.UTC, zap.NewNop())
	var runs, canceled atomic.Int32
	require.NoError(t, s.Add("tick", "* * * * * *", func(ctx context.Context) {
		if ctx.Err() != nil {
			canceled.Add(1)
		}
		if runs.Add(1) == 1 {
			panic("first run explodes")
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	require.Zero(t, canceled.Load())
	require.Error(t, s.Run(context.Background()))
}
