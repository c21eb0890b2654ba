package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/storage"
)

// BotConfigStore implements storage.BotConfigStore using PostgreSQL.
// Risk parameters are stored as a JSONB document.
type BotConfigStore struct {
	pool *Pool
}

// NewBotConfigStore creates a new BotConfigStore.
func NewBotConfigStore(pool *Pool) *BotConfigStore {
	return &BotConfigStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BotConfigStore = (*BotConfigStore)(nil)

// Put inserts or replaces a bot configuration.
func (s *BotConfigStore) Put(ctx context.Context, cfg *domain.BotConfig) error {
	if cfg == nil || cfg.UserID == "" {
		return storage.ErrInvalidInput
	}

	riskJSON, err := json.Marshal(cfg.Risk)
	if err != nil {
		return fmt.Errorf("marshal risk config: %w", err)
	}

	query := `
		INSERT INTO bot_configs (user_id, wallet_ref, risk, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			wallet_ref = EXCLUDED.wallet_ref,
			risk = EXCLUDED.risk
	`

	_, err = s.pool.Exec(ctx, query, cfg.UserID, cfg.WalletRef, riskJSON, cfg.CreatedAt)
	if err != nil {
		return fmt.Errorf("put bot config: %w", err)
	}
	return nil
}

// Get retrieves the configuration for a user. Returns ErrNotFound if not exists.
func (s *BotConfigStore) Get(ctx context.Context, userID string) (*domain.BotConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT user_id, wallet_ref, risk, created_at FROM bot_configs WHERE user_id = $1`,
		userID)

	cfg, err := scanBotConfig(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get bot config: %w", err)
	}
	return cfg, nil
}

// Delete removes the configuration for a user. Missing key is a no-op.
func (s *BotConfigStore) Delete(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM bot_configs WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete bot config: %w", err)
	}
	return nil
}

// List retrieves all bot configurations, ordered by user_id ASC.
func (s *BotConfigStore) List(ctx context.Context) ([]*domain.BotConfig, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, wallet_ref, risk, created_at FROM bot_configs ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list bot configs: %w", err)
	}
	defer rows.Close()

	var configs []*domain.BotConfig
	for rows.Next() {
		cfg, err := scanBotConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bot config row: %w", err)
		}
		configs = append(configs, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bot config rows: %w", err)
	}

	return configs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBotConfig(row rowScanner) (*domain.BotConfig, error) {
	var cfg domain.BotConfig
	var riskJSON []byte

	if err := row.Scan(&cfg.UserID, &cfg.WalletRef, &riskJSON, &cfg.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(riskJSON, &cfg.Risk); err != nil {
		return nil, fmt.Errorf("unmarshal risk config: %w", err)
	}

	return &cfg, nil
}
