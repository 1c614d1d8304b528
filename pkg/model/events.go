package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical event envelope published to NATS.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	ClientID      string          `json:"client_id"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// QuoteIssuedEvent is published when a new quote is handed to a caller.
type QuoteIssuedEvent struct {
	QuoteID   string    `json:"quote_id"`
	Amount    string    `json:"amount"`
	ExpiresAt time.Time `json:"expires_at"`
}

// QuoteConsumedEvent is published when a quote backs a finalized requirement.
type QuoteConsumedEvent struct {
	QuoteID  string `json:"quote_id"`
	Amount   string `json:"amount"`
	Resource string `json:"resource"`
}

// QuoteSweptEvent is published after a sweep that removed expired quotes.
type QuoteSweptEvent struct {
	Removed int       `json:"removed"`
	SweptAt time.Time `json:"swept_at"`
}
