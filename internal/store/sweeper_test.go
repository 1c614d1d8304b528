package store

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSweeperRemovesExpiredQuotes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewMemory()
	now := time.Now()
	require.NoError(t, s.Put(ctx, newRecord("stale", "c1", now.Add(-time.Minute))))
	require.NoError(t, s.Put(ctx, newRecord("live", "c1", now.Add(time.Hour))))

	var notified atomic.Int64
	sw := NewSweeper(s, zap.NewNop(), 10*time.Millisecond)
	sw.Notify = func(_ context.Context, removed int) {
		notified.Add(int64(removed))
	}

	done := make(chan struct{})
	go func() {
		sw.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok, err := s.Get(ctx, "stale")
		return err == nil && !ok
	}, time.Second, 5*time.Millisecond, "expired quote should be swept")

	_, ok, err := s.Get(ctx, "live")
	require.NoError(t, err)
	assert.True(t, ok, "live quote must survive sweeps")
	assert.Equal(t, int64(1), notified.Load())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancellation")
	}
}

func TestSweeperStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sw := NewSweeper(NewMemory(), zap.NewNop(), time.Hour)

	done := make(chan struct{})
	go func() {
		sw.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancellation")
	}
}
