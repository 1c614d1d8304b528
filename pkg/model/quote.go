package model

import "time"

// QuoteRecord is one priced offer issued to one caller. The record is owned
// by the quote store; components never hold mutable references to it.
type QuoteRecord struct {
	QuoteID string `json:"quote_id"`

	// Amount is the human-readable money amount as issued, e.g. "0.05".
	// Conversion to token base units happens at requirement finalization.
	Amount string `json:"amount"`

	// OwnerID is the opaque, untrusted identifier of the caller the quote
	// was issued to. There is no caller authentication behind it.
	OwnerID string `json:"owner_id"`

	ExpiresAt time.Time `json:"expires_at"`

	// Consumed flips to true exactly once, when the quote backs a finalized
	// payment requirement. The transition is one-way.
	Consumed bool `json:"consumed"`
}

// Expired reports whether the record is past its expiry at the given instant.
func (q QuoteRecord) Expired(now time.Time) bool {
	return !q.ExpiresAt.After(now)
}
