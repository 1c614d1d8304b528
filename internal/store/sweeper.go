package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/x402-adapter/internal/metrics"
)

// Sweeper periodically purges expired quotes from the store. The resolver
// already treats expired records as absent, so the sweeper exists to bound
// memory, not to enforce expiry.
type Sweeper struct {
	store    Store
	logger   *zap.Logger
	interval time.Duration

	// Notify, when set, is called after a sweep that removed records.
	Notify func(ctx context.Context, removed int)
}

// NewSweeper creates a new background job for sweeping expired quotes.
func NewSweeper(st Store, logger *zap.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    st,
		logger:   logger,
		interval: interval,
	}
}

// Start runs the sweep loop until context cancellation.
func (j *Sweeper) Start(ctx context.Context) {
	j.logger.Info("store.sweeper.start",
		zap.Duration("interval", j.interval),
	)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep(ctx)
		case <-ctx.Done():
			j.logger.Info("store.sweeper.stopped")
			return
		}
	}
}

func (j *Sweeper) sweep(ctx context.Context) {
	now := time.Now()
	removed, err := j.store.EvictExpired(ctx, now)
	if err != nil {
		j.logger.Warn("store.sweeper.sweep_failed", zap.Error(err))
		metrics.IncError("sweeper", "evict_failed")
		return
	}

	j.logger.Info("store.sweeper.sweep_complete",
		zap.Int("expired_quotes", removed),
	)
	if removed > 0 {
		metrics.QuotesSweptTotal.Add(float64(removed))
		if j.Notify != nil {
			j.Notify(ctx, removed)
		}
	}
}
