package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Put inserts or replaces a position record.
func (s *PositionStore) Put(ctx context.Context, p *domain.Position) error {
	if p == nil || p.UserID == "" || p.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO positions (
			position_id, user_id, mint, symbol,
			entry_mc, entry_amount_sol, entry_time_ms, entry_ref,
			current_mc, tranches_sold, status, exit_reason,
			realized_pnl_sol, unrealized_sol, closed_at_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id, mint) DO UPDATE SET
			position_id = EXCLUDED.position_id,
			symbol = EXCLUDED.symbol,
			entry_mc = EXCLUDED.entry_mc,
			entry_amount_sol = EXCLUDED.entry_amount_sol,
			entry_time_ms = EXCLUDED.entry_time_ms,
			entry_ref = EXCLUDED.entry_ref,
			current_mc = EXCLUDED.current_mc,
			tranches_sold = EXCLUDED.tranches_sold,
			status = EXCLUDED.status,
			exit_reason = EXCLUDED.exit_reason,
			realized_pnl_sol = EXCLUDED.realized_pnl_sol,
			unrealized_sol = EXCLUDED.unrealized_sol,
			closed_at_ms = EXCLUDED.closed_at_ms
	`

	_, err := s.pool.Exec(ctx, query,
		p.PositionID,
		p.UserID,
		p.Mint,
		p.Symbol,
		p.EntryMC,
		p.EntryAmountSol,
		p.EntryTimeMs,
		p.EntryRef,
		p.CurrentMC,
		p.TranchesSold,
		string(p.Status),
		p.ExitReason,
		p.RealizedPnlSol,
		p.UnrealizedSol,
		p.ClosedAtMs,
	)
	if err != nil {
		return fmt.Errorf("put position: %w", err)
	}
	return nil
}

// Get retrieves the position for (user_id, mint). Returns ErrNotFound if not exists.
func (s *PositionStore) Get(ctx context.Context, userID, mint string) (*domain.Position, error) {
	query := positionSelect + ` WHERE user_id = $1 AND mint = $2`

	row := s.pool.QueryRow(ctx, query, userID, mint)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

// Delete removes the position for (user_id, mint). Missing key is a no-op.
func (s *PositionStore) Delete(ctx context.Context, userID, mint string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE user_id = $1 AND mint = $2`, userID, mint)
	if err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	return nil
}

// List retrieves all positions for a user, ordered by entry time ASC.
func (s *PositionStore) List(ctx context.Context, userID string) ([]*domain.Position, error) {
	query := positionSelect + ` WHERE user_id = $1 ORDER BY entry_time_ms ASC, mint ASC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// ListActive retrieves the user's Open and PartiallyClosed positions.
func (s *PositionStore) ListActive(ctx context.Context, userID string) ([]*domain.Position, error) {
	query := positionSelect + `
		WHERE user_id = $1 AND status IN ('OPEN', 'PARTIALLY_CLOSED')
		ORDER BY entry_time_ms ASC, mint ASC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list active positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

const positionSelect = `
	SELECT position_id, user_id, mint, symbol,
		entry_mc, entry_amount_sol, entry_time_ms, entry_ref,
		current_mc, tranches_sold, status, exit_reason,
		realized_pnl_sol, unrealized_sol, closed_at_ms
	FROM positions`

// scanPosition scans a single row into a Position.
func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var statusStr string

	err := row.Scan(
		&p.PositionID,
		&p.UserID,
		&p.Mint,
		&p.Symbol,
		&p.EntryMC,
		&p.EntryAmountSol,
		&p.EntryTimeMs,
		&p.EntryRef,
		&p.CurrentMC,
		&p.TranchesSold,
		&statusStr,
		&p.ExitReason,
		&p.RealizedPnlSol,
		&p.UnrealizedSol,
		&p.ClosedAtMs,
	)
	if err != nil {
		return nil, err
	}

	p.Status = domain.PositionStatus(statusStr)
	return &p, nil
}

// scanPositions scans multiple rows into a slice of Position.
func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
	var positions []*domain.Position

	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}

	return positions, nil
}
