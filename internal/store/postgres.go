package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Checker-Finance/x402-adapter/pkg/model"
)

// PostgresStore keeps quotes in Postgres. Consumption is a single
// conditional UPDATE, so the at-most-once guarantee comes from row-level
// locking rather than an application mutex.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

const createQuoteTable = `
	CREATE TABLE IF NOT EXISTS x402_quote (
		quote_id   TEXT PRIMARY KEY,
		amount     TEXT NOT NULL,
		owner_id   TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		consumed   BOOLEAN NOT NULL DEFAULT FALSE
	);
`

// NewPostgres connects to Postgres and ensures the quote table exists.
func NewPostgres(ctx context.Context, databaseURL string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createQuoteTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create quote table: %w", err)
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec model.QuoteRecord) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO x402_quote (quote_id, amount, owner_id, expires_at, consumed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (quote_id) DO NOTHING;
	`, rec.QuoteID, rec.Amount, rec.OwnerID, rec.ExpiresAt, rec.Consumed)
	if err != nil {
		s.logger.Error("store.pg.insert_quote_failed", zap.Error(err))
		return fmt.Errorf("pg put: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateID
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, quoteID string) (model.QuoteRecord, bool, error) {
	var rec model.QuoteRecord
	err := s.pool.QueryRow(ctx, `
		SELECT quote_id, amount, owner_id, expires_at, consumed
		FROM x402_quote
		WHERE quote_id = $1;
	`, quoteID).Scan(&rec.QuoteID, &rec.Amount, &rec.OwnerID, &rec.ExpiresAt, &rec.Consumed)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.QuoteRecord{}, false, nil
	}
	if err != nil {
		return model.QuoteRecord{}, false, fmt.Errorf("pg get: %w", err)
	}
	return rec, true, nil
}

func (s *PostgresStore) TryConsume(ctx context.Context, quoteID, ownerID string, now time.Time) (model.QuoteRecord, error) {
	var rec model.QuoteRecord
	err := s.pool.QueryRow(ctx, `
		UPDATE x402_quote
		SET consumed = TRUE
		WHERE quote_id = $1
		  AND owner_id = $2
		  AND expires_at > $3
		  AND NOT consumed
		RETURNING quote_id, amount, owner_id, expires_at, consumed;
	`, quoteID, ownerID, now).Scan(&rec.QuoteID, &rec.Amount, &rec.OwnerID, &rec.ExpiresAt, &rec.Consumed)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.QuoteRecord{}, fmt.Errorf("pg consume: %w", err)
	}
	return model.QuoteRecord{}, s.classifyRejection(ctx, quoteID, ownerID, now)
}

// classifyRejection decides which check the conditional UPDATE missed on.
// The read runs after the UPDATE, so the reason is best-effort under
// concurrency; the UPDATE itself is the authority on whether consumption
// happened.
func (s *PostgresStore) classifyRejection(ctx context.Context, quoteID, ownerID string, now time.Time) error {
	var rec model.QuoteRecord
	err := s.pool.QueryRow(ctx, `
		SELECT owner_id, expires_at, consumed
		FROM x402_quote
		WHERE quote_id = $1;
	`, quoteID).Scan(&rec.OwnerID, &rec.ExpiresAt, &rec.Consumed)
	if errors.Is(err, pgx.ErrNoRows) {
		return &RejectionError{QuoteID: quoteID, Reason: ReasonNotFound}
	}
	if err != nil {
		return fmt.Errorf("pg classify: %w", err)
	}
	switch {
	case rec.Expired(now):
		return &RejectionError{QuoteID: quoteID, Reason: ReasonExpired}
	case rec.OwnerID != ownerID:
		return &RejectionError{QuoteID: quoteID, Reason: ReasonOwnerMismatch}
	default:
		return &RejectionError{QuoteID: quoteID, Reason: ReasonAlreadyConsumed}
	}
}

func (s *PostgresStore) EvictExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM x402_quote
		WHERE expires_at <= $1;
	`, now)
	if err != nil {
		s.logger.Error("store.pg.evict_failed", zap.Error(err))
		return 0, fmt.Errorf("pg evict: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
