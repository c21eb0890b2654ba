package memory

import (
	"context"
	"sort"
	"sync"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/storage"
)

// BotConfigStore is an in-memory implementation of storage.BotConfigStore.
type BotConfigStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BotConfig // keyed by user_id
}

// NewBotConfigStore creates a new in-memory bot config store.
func NewBotConfigStore() *BotConfigStore {
	return &BotConfigStore{
		data: make(map[string]*domain.BotConfig),
	}
}

// Put inserts or replaces a bot config.
func (s *BotConfigStore) Put(_ context.Context, c *domain.BotConfig) error {
	if c == nil || c.UserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	configCopy := *c
	s.data[c.UserID] = &configCopy
	return nil
}

// Get retrieves the config for a user.
func (s *BotConfigStore) Get(_ context.Context, userID string) (*domain.BotConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[userID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	configCopy := *c
	return &configCopy, nil
}

// Delete removes the config for a user.
func (s *BotConfigStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, userID)
	return nil
}

// List retrieves all registered configs, ordered by user_id ASC.
func (s *BotConfigStore) List(_ context.Context) ([]*domain.BotConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.BotConfig, 0, len(s.data))
	for _, c := range s.data {
		configCopy := *c
		result = append(result, &configCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UserID < result[j].UserID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.BotConfigStore = (*BotConfigStore)(nil)
