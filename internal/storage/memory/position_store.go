package memory

import (
	"context"
	"sort"
	"sync"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/storage"
)

type positionKey struct {
	userID string
	mint   string
}

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[positionKey]*domain.Position
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[positionKey]*domain.Position),
	}
}

// Put inserts or replaces a position record.
func (s *PositionStore) Put(_ context.Context, p *domain.Position) error {
	if p == nil || p.UserID == "" || p.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutation
	positionCopy := *p
	s.data[positionKey{p.UserID, p.Mint}] = &positionCopy
	return nil
}

// Get retrieves the position for (user_id, mint).
func (s *PositionStore) Get(_ context.Context, userID, mint string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[positionKey{userID, mint}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	positionCopy := *p
	return &positionCopy, nil
}

// Delete removes the position for (user_id, mint).
func (s *PositionStore) Delete(_ context.Context, userID, mint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, positionKey{userID, mint})
	return nil
}

// List retrieves all positions for a user, ordered by entry time ASC.
func (s *PositionStore) List(_ context.Context, userID string) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for k, p := range s.data {
		if k.userID == userID {
			positionCopy := *p
			result = append(result, &positionCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EntryTimeMs < result[j].EntryTimeMs
	})

	return result, nil
}

// ListActive retrieves the user's Open and PartiallyClosed positions.
func (s *PositionStore) ListActive(_ context.Context, userID string) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for k, p := range s.data {
		if k.userID == userID && p.Status.Active() {
			positionCopy := *p
			result = append(result, &positionCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EntryTimeMs < result[j].EntryTimeMs
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.PositionStore = (*PositionStore)(nil)
