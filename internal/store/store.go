// Package store owns the quote records: a concurrency-safe mapping from
// quote id to QuoteRecord with insert, atomic conditional-consume and
// time-based eviction. All other components interact with quotes only
// through a Store so consumption and expiry checks always see the latest
// state.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Checker-Finance/x402-adapter/pkg/model"
)

// ErrDuplicateID is returned by Put when the quote id is already present.
// With v4 UUID identifiers this indicates a generation bug, not a normal
// runtime condition; issuers retry once and then fail hard.
var ErrDuplicateID = errors.New("quote id already present")

// RejectReason classifies why a quote could not be consumed.
type RejectReason string

const (
	ReasonNotFound        RejectReason = "not_found"
	ReasonExpired         RejectReason = "expired"
	ReasonOwnerMismatch   RejectReason = "owner_mismatch"
	ReasonAlreadyConsumed RejectReason = "already_consumed"
)

// RejectionError reports why TryConsume refused a quote. It is internal to
// the service: the resolver collapses every reason into one uniform
// payment-required result and must never leak the reason to the network.
type RejectionError struct {
	QuoteID string
	Reason  RejectReason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("quote %s rejected: %s", e.QuoteID, e.Reason)
}

// Store is the contract every quote store backend satisfies.
//
// TryConsume is the linearization point of the whole service: the
// exists / not-expired / owner-match / not-consumed checks and the consumed
// flip happen as one atomic unit per quote id, so two racing attempts to
// redeem the same quote can never both succeed.
type Store interface {
	// Put inserts a new unconsumed record; ErrDuplicateID if the id exists.
	Put(ctx context.Context, rec model.QuoteRecord) error

	// Get returns a read-only snapshot of the record, if present. It never
	// mutates state, including for expired records.
	Get(ctx context.Context, quoteID string) (model.QuoteRecord, bool, error)

	// TryConsume atomically validates and consumes the quote. The checks run
	// in order: record exists, now is before expiry, ownerID matches, record
	// not yet consumed. Failures return *RejectionError; backend faults
	// return other errors. On success the returned record carries the
	// pre-consumption amount.
	TryConsume(ctx context.Context, quoteID, ownerID string, now time.Time) (model.QuoteRecord, error)

	// EvictExpired removes every record with expires_at <= now, consumed or
	// not, and returns how many were removed.
	EvictExpired(ctx context.Context, now time.Time) (int, error)

	HealthCheck(ctx context.Context) error
	Close() error
}
