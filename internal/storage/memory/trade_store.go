package memory

import (
	"context"
	"sort"
	"sync"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeFill // keyed by fill_id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.TradeFill),
	}
}

// Insert adds a new fill. Returns ErrDuplicateKey if fill_id exists.
func (s *TradeStore) Insert(_ context.Context, f *domain.TradeFill) error {
	if f == nil || f.FillID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[f.FillID]; exists {
		return storage.ErrDuplicateKey
	}

	fillCopy := *f
	s.data[f.FillID] = &fillCopy
	return nil
}

// ListByUser retrieves all fills for a user, ordered by execution time ASC.
func (s *TradeStore) ListByUser(_ context.Context, userID string) ([]*domain.TradeFill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeFill
	for _, f := range s.data {
		if f.UserID == userID {
			fillCopy := *f
			result = append(result, &fillCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ExecutedAt < result[j].ExecutedAt
	})

	return result, nil
}

// ListByPosition retrieves all fills for a position, ordered by execution time ASC.
func (s *TradeStore) ListByPosition(_ context.Context, positionID string) ([]*domain.TradeFill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeFill
	for _, f := range s.data {
		if f.PositionID == positionID {
			fillCopy := *f
			result = append(result, &fillCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ExecutedAt < result[j].ExecutedAt
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TradeStore = (*TradeStore)(nil)
