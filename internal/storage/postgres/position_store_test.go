package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/storage"
)

func TestPositionStore_PutAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	p := &domain.Position{
		PositionID:     "pos-001",
		UserID:         "user-1",
		Mint:           "MintAddress123",
		Symbol:         "PUMP",
		EntryMC:        12_000,
		EntryAmountSol: 1.0,
		EntryTimeMs:    1700000000000,
		EntryRef:       "sim-buy-001",
		CurrentMC:      12_000,
		Status:         domain.PositionOpen,
	}

	err := store.Put(ctx, p)
	require.NoError(t, err)

	got, err := store.Get(ctx, "user-1", "MintAddress123")
	require.NoError(t, err)

	assert.Equal(t, p.PositionID, got.PositionID)
	assert.Equal(t, p.Symbol, got.Symbol)
	assert.Equal(t, p.EntryMC, got.EntryMC)
	assert.Equal(t, p.EntryTimeMs, got.EntryTimeMs)
	assert.Equal(t, domain.PositionOpen, got.Status)
}

func TestPositionStore_PutUpsertsExisting(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	p := &domain.Position{
		PositionID:     "pos-001",
		UserID:         "user-1",
		Mint:           "MintAddress123",
		EntryMC:        12_000,
		EntryAmountSol: 1.0,
		EntryTimeMs:    1700000000000,
		CurrentMC:      12_000,
		Status:         domain.PositionOpen,
	}
	require.NoError(t, store.Put(ctx, p))

	p.CurrentMC = 25_000
	p.TranchesSold = 0.25
	p.Status = domain.PositionPartiallyClosed
	p.RealizedPnlSol = 0.4
	require.NoError(t, store.Put(ctx, p))

	got, err := store.Get(ctx, "user-1", "MintAddress123")
	require.NoError(t, err)

	assert.Equal(t, 25_000.0, got.CurrentMC)
	assert.Equal(t, 0.25, got.TranchesSold)
	assert.Equal(t, domain.PositionPartiallyClosed, got.Status)
	assert.Equal(t, 0.4, got.RealizedPnlSol)
}

func TestPositionStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)

	_, err := store.Get(context.Background(), "user-1", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPositionStore_Delete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	p := &domain.Position{
		PositionID:  "pos-001",
		UserID:      "user-1",
		Mint:        "MintAddress123",
		EntryMC:     12_000,
		EntryTimeMs: 1700000000000,
		CurrentMC:   12_000,
		Status:      domain.PositionOpen,
	}
	require.NoError(t, store.Put(ctx, p))

	require.NoError(t, store.Delete(ctx, "user-1", "MintAddress123"))

	_, err := store.Get(ctx, "user-1", "MintAddress123")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting a missing key is a no-op
	assert.NoError(t, store.Delete(ctx, "user-1", "MintAddress123"))
}

func TestPositionStore_ListActive(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	put := func(mint string, ms int64, status domain.PositionStatus) {
		require.NoError(t, store.Put(ctx, &domain.Position{
			PositionID:  "pos-" + mint,
			UserID:      "user-1",
			Mint:        mint,
			EntryMC:     12_000,
			EntryTimeMs: ms,
			CurrentMC:   12_000,
			Status:      status,
		}))
	}

	put("mint-a", 300, domain.PositionOpen)
	put("mint-b", 100, domain.PositionPartiallyClosed)
	put("mint-c", 200, domain.PositionClosed)
	put("mint-d", 400, domain.PositionErrored)

	active, err := store.ListActive(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, active, 2)

	// Ordered by entry time ASC
	assert.Equal(t, "mint-b", active[0].Mint)
	assert.Equal(t, "mint-a", active[1].Mint)

	all, err := store.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestPositionStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)

	err := store.Put(context.Background(), &domain.Position{UserID: "user-1"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
