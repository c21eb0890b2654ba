package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a new fill. Returns ErrDuplicateKey if fill_id exists.
func (s *TradeStore) Insert(ctx context.Context, f *domain.TradeFill) error {
	if f == nil || f.FillID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_fills (
			fill_id, position_id, user_id, mint, side,
			fraction, amount_sol, ref, reason, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		f.FillID,
		f.PositionID,
		f.UserID,
		f.Mint,
		string(f.Side),
		f.Fraction,
		f.AmountSol,
		f.Ref,
		f.Reason,
		f.ExecutedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade fill: %w", err)
	}
	return nil
}

// ListByUser retrieves all fills for a user, ordered by execution time ASC.
func (s *TradeStore) ListByUser(ctx context.Context, userID string) ([]*domain.TradeFill, error) {
	query := fillSelect + ` WHERE user_id = $1 ORDER BY executed_at ASC, fill_id ASC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list fills by user: %w", err)
	}
	defer rows.Close()

	return scanFills(rows)
}

// ListByPosition retrieves all fills for a position, ordered by execution time ASC.
func (s *TradeStore) ListByPosition(ctx context.Context, positionID string) ([]*domain.TradeFill, error) {
	query := fillSelect + ` WHERE position_id = $1 ORDER BY executed_at ASC, fill_id ASC`

	rows, err := s.pool.Query(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("list fills by position: %w", err)
	}
	defer rows.Close()

	return scanFills(rows)
}

const fillSelect = `
	SELECT fill_id, position_id, user_id, mint, side,
		fraction, amount_sol, ref, reason, executed_at
	FROM trade_fills`

// scanFills scans multiple rows into a slice of TradeFill.
func scanFills(rows pgx.Rows) ([]*domain.TradeFill, error) {
	var fills []*domain.TradeFill

	for rows.Next() {
		var f domain.TradeFill
		var sideStr string

		err := rows.Scan(
			&f.FillID,
			&f.PositionID,
			&f.UserID,
			&f.Mint,
			&sideStr,
			&f.Fraction,
			&f.AmountSol,
			&f.Ref,
			&f.Reason,
			&f.ExecutedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fill row: %w", err)
		}

		f.Side = domain.FillSide(sideStr)
		fills = append(fills, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fill rows: %w", err)
	}

	return fills, nil
}
