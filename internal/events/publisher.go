// Package events publishes quote lifecycle events to NATS JetStream.
// Publishing is best-effort observability: a nil *Publisher is a valid
// no-op, and publish failures never affect the request path outcome.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/x402-adapter/internal/metrics"
	"github.com/Checker-Finance/x402-adapter/pkg/model"
)

const (
	TypeQuoteIssued   = "quote.issued"
	TypeQuoteConsumed = "quote.consumed"
	TypeQuoteSwept    = "quote.swept"
)

// Publisher wraps a NATS connection and publishes canonical event envelopes.
type Publisher struct {
	js      nats.JetStreamContext
	logger  *zap.Logger
	subject string
	service string
}

// New creates a Publisher. subject is the subject prefix, e.g. "evt.x402";
// event types are appended to it.
func New(nc *nats.Conn, subject, service string, logger *zap.Logger) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		js:      js,
		logger:  logger,
		subject: subject,
		service: service,
	}, nil
}

// Publish serializes payload into a canonical envelope and publishes it.
// Safe to call on a nil Publisher.
func (p *Publisher) Publish(_ context.Context, eventType, clientID string, payload any) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("events.marshal_failed",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		metrics.IncError("events", "marshal_failed")
		return err
	}

	env := model.Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		ClientID:      clientID,
		EventType:     eventType,
		Version:       "v1",
		Timestamp:     time.Now().UTC(),
		Payload:       body,
	}
	data, err := json.Marshal(env)
	if err != nil {
		metrics.IncError("events", "marshal_failed")
		return err
	}

	subject := p.subject + "." + eventType
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
			"client_id":      []string{env.ClientID},
		},
	}

	if _, err := p.js.PublishMsg(msg); err != nil {
		p.logger.Error("events.publish_failed",
			zap.String("subject", subject),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	p.logger.Debug("events.publish_success",
		zap.String("subject", subject),
		zap.String("event_type", eventType),
	)
	metrics.IncNATSMessage(subject, "ok")
	return nil
}
