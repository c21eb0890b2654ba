package storage

import (
	"context"

	"solana-pump-swarm/internal/domain"
)

// PositionStore provides key-value access to positions. The key is
// (user_id, mint); at most one active position exists per key, enforced
// by the PositionManager, not the store.
type PositionStore interface {
	// Put inserts or replaces a position record.
	Put(ctx context.Context, p *domain.Position) error

	// Get retrieves the position for (user_id, mint).
	// Returns ErrNotFound if not exists.
	Get(ctx context.Context, userID, mint string) (*domain.Position, error)

	// Delete removes the position for (user_id, mint).
	// Deleting a missing key is a no-op.
	Delete(ctx context.Context, userID, mint string) error

	// List retrieves all positions for a user, ordered by entry time ASC.
	List(ctx context.Context, userID string) ([]*domain.Position, error)

	// ListActive retrieves the user's Open and PartiallyClosed positions,
	// ordered by entry time ASC.
	ListActive(ctx context.Context, userID string) ([]*domain.Position, error)
}

// TradeStore provides access to executed fill records.
type TradeStore interface {
	// Insert adds a new fill. Returns ErrDuplicateKey if fill_id exists.
	Insert(ctx context.Context, f *domain.TradeFill) error

	// ListByUser retrieves all fills for a user, ordered by execution time ASC.
	ListByUser(ctx context.Context, userID string) ([]*domain.TradeFill, error)

	// ListByPosition retrieves all fills for a position, ordered by execution time ASC.
	ListByPosition(ctx context.Context, positionID string) ([]*domain.TradeFill, error)
}

// BotConfigStore provides key-value access to per-user bot registrations,
// keyed by user_id.
type BotConfigStore interface {
	// Put inserts or replaces a bot config.
	Put(ctx context.Context, c *domain.BotConfig) error

	// Get retrieves the config for a user. Returns ErrNotFound if not exists.
	Get(ctx context.Context, userID string) (*domain.BotConfig, error)

	// Delete removes the config for a user. Missing key is a no-op.
	Delete(ctx context.Context, userID string) error

	// List retrieves all registered configs, ordered by user_id ASC.
	List(ctx context.Context) ([]*domain.BotConfig, error)
}

// TradeArchive receives every executed fill for offline analysis.
// Archiving is best-effort: failures are logged and counted, never
// surfaced to the trading path.
type TradeArchive interface {
	Archive(ctx context.Context, fills []*domain.TradeFill) error
}
