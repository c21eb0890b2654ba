package clickhouse

import (
	"context"
	"fmt"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/storage"
)

// TradeArchiveStore implements storage.TradeArchive using ClickHouse.
// The archive is append-only analytics storage; the postgres trade store
// remains the source of truth for fill dedup.
type TradeArchiveStore struct {
	conn *Conn
}

// NewTradeArchiveStore creates a new TradeArchiveStore.
func NewTradeArchiveStore(conn *Conn) *TradeArchiveStore {
	return &TradeArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeArchive = (*TradeArchiveStore)(nil)

// Archive appends fills to the analytics archive in one batch.
func (s *TradeArchiveStore) Archive(ctx context.Context, fills []*domain.TradeFill) error {
	if len(fills) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_fills_archive (
			fill_id, position_id, user_id, mint, side,
			fraction, amount_sol, ref, reason, executed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, f := range fills {
		err = batch.Append(
			f.FillID, f.PositionID, f.UserID, f.Mint, string(f.Side),
			f.Fraction, f.AmountSol, f.Ref, f.Reason, uint64(f.ExecutedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// ListByMint retrieves archived fills for a mint across all users,
// ordered by execution time ASC.
func (s *TradeArchiveStore) ListByMint(ctx context.Context, mint string) ([]*domain.TradeFill, error) {
	query := `
		SELECT fill_id, position_id, user_id, mint, side,
			fraction, amount_sol, ref, reason, executed_at
		FROM trade_fills_archive
		WHERE mint = ?
		ORDER BY executed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query by mint: %w", err)
	}
	defer rows.Close()

	var fills []*domain.TradeFill
	for rows.Next() {
		var f domain.TradeFill
		var sideStr string
		var executedAt uint64

		err := rows.Scan(
			&f.FillID, &f.PositionID, &f.UserID, &f.Mint, &sideStr,
			&f.Fraction, &f.AmountSol, &f.Ref, &f.Reason, &executedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}

		f.Side = domain.FillSide(sideStr)
		f.ExecutedAt = int64(executedAt)
		fills = append(fills, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive rows: %w", err)
	}

	return fills, nil
}
