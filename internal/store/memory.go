package store

import (
	"context"
	"sync"
	"time"

	"github.com/Checker-Finance/x402-adapter/pkg/model"
)

// MemoryStore is the default quote store: a mutex-guarded map. The critical
// sections are map lookups and mutations only, never I/O or user code, so a
// single coarse lock is cheap enough at quote volumes.
type MemoryStore struct {
	mu     sync.Mutex
	quotes map[string]model.QuoteRecord
}

// NewMemory creates an empty in-memory quote store.
func NewMemory() *MemoryStore {
	return &MemoryStore{quotes: make(map[string]model.QuoteRecord)}
}

func (s *MemoryStore) Put(_ context.Context, rec model.QuoteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.quotes[rec.QuoteID]; exists {
		return ErrDuplicateID
	}
	s.quotes[rec.QuoteID] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, quoteID string) (model.QuoteRecord, bool, error) {
	s.mu.Lock()
	rec, ok := s.quotes[quoteID]
	s.mu.Unlock()
	return rec, ok, nil
}

func (s *MemoryStore) TryConsume(_ context.Context, quoteID, ownerID string, now time.Time) (model.QuoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.quotes[quoteID]
	if !ok {
		return model.QuoteRecord{}, &RejectionError{QuoteID: quoteID, Reason: ReasonNotFound}
	}
	if rec.Expired(now) {
		return model.QuoteRecord{}, &RejectionError{QuoteID: quoteID, Reason: ReasonExpired}
	}
	if rec.OwnerID != ownerID {
		return model.QuoteRecord{}, &RejectionError{QuoteID: quoteID, Reason: ReasonOwnerMismatch}
	}
	if rec.Consumed {
		return model.QuoteRecord{}, &RejectionError{QuoteID: quoteID, Reason: ReasonAlreadyConsumed}
	}

	rec.Consumed = true
	s.quotes[quoteID] = rec
	return rec, nil
}

func (s *MemoryStore) EvictExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.quotes {
		if rec.Expired(now) {
			delete(s.quotes, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) HealthCheck(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
