// Package quote issues time-bounded, single-use price offers.
package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/x402-adapter/internal/events"
	"github.com/Checker-Finance/x402-adapter/internal/metrics"
	"github.com/Checker-Finance/x402-adapter/internal/store"
	"github.com/Checker-Finance/x402-adapter/pkg/model"
)

// Issuer creates quote records and hands the id plus amount back to callers.
type Issuer struct {
	store  store.Store
	logger *zap.Logger
	events *events.Publisher
	ttl    time.Duration
	nowFn  func() time.Time
}

// NewIssuer creates an Issuer. pub may be nil (events disabled).
func NewIssuer(st store.Store, logger *zap.Logger, pub *events.Publisher, ttl time.Duration) *Issuer {
	return &Issuer{
		store:  st,
		logger: logger,
		events: pub,
		ttl:    ttl,
		nowFn:  time.Now,
	}
}

// Issue stores a fresh unconsumed quote for ownerID and returns it. A
// duplicate id from the store means the generator misbehaved; one regenerate
// is attempted before giving up.
func (i *Issuer) Issue(ctx context.Context, amount model.MoneyAmount, ownerID string) (model.QuoteRecord, error) {
	now := i.nowFn()
	rec := model.QuoteRecord{
		QuoteID:   uuid.NewString(),
		Amount:    amount.String(),
		OwnerID:   ownerID,
		ExpiresAt: now.Add(i.ttl),
	}

	err := i.store.Put(ctx, rec)
	if errors.Is(err, store.ErrDuplicateID) {
		rec.QuoteID = uuid.NewString()
		err = i.store.Put(ctx, rec)
	}
	if err != nil {
		metrics.IncError("issuer", "put_failed")
		return model.QuoteRecord{}, fmt.Errorf("issue quote: %w", err)
	}

	i.logger.Info("quote.issued",
		zap.String("quote_id", rec.QuoteID),
		zap.String("client", ownerID),
		zap.String("amount", rec.Amount),
		zap.Time("expires_at", rec.ExpiresAt),
	)
	metrics.QuotesIssuedTotal.Inc()
	_ = i.events.Publish(ctx, events.TypeQuoteIssued, ownerID, model.QuoteIssuedEvent{
		QuoteID:   rec.QuoteID,
		Amount:    rec.Amount,
		ExpiresAt: rec.ExpiresAt,
	})

	return rec, nil
}
