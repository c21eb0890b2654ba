package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/storage"
)

func TestBotConfigStore_PutAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBotConfigStore(pool)
	ctx := context.Background()

	cfg := &domain.BotConfig{
		UserID:    "user-1",
		WalletRef: "WalletRef123",
		Risk:      domain.DefaultRiskConfig(),
		CreatedAt: time.Now().UnixMilli(),
	}

	require.NoError(t, store.Put(ctx, cfg))

	got, err := store.Get(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, cfg.UserID, got.UserID)
	assert.Equal(t, cfg.WalletRef, got.WalletRef)
	assert.Equal(t, cfg.Risk.MinEntryMC, got.Risk.MinEntryMC)
	assert.Equal(t, cfg.Risk.SellPortions, got.Risk.SellPortions)
	assert.Equal(t, cfg.Risk.Scoring.BuyThreshold, got.Risk.Scoring.BuyThreshold)
}

func TestBotConfigStore_PutUpsertsRisk(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBotConfigStore(pool)
	ctx := context.Background()

	cfg := &domain.BotConfig{
		UserID:    "user-1",
		WalletRef: "WalletRef123",
		Risk:      domain.DefaultRiskConfig(),
		CreatedAt: time.Now().UnixMilli(),
	}
	require.NoError(t, store.Put(ctx, cfg))

	cfg.Risk.StopLossPct = 50
	cfg.Risk.Scoring = domain.AggressiveScoringConfig()
	require.NoError(t, store.Put(ctx, cfg))

	got, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.Risk.StopLossPct)
	assert.Equal(t, domain.AggressiveScoringConfig().BuyThreshold, got.Risk.Scoring.BuyThreshold)
}

func TestBotConfigStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBotConfigStore(pool)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBotConfigStore_List(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBotConfigStore(pool)
	ctx := context.Background()

	for _, id := range []string{"user-b", "user-a", "user-c"} {
		require.NoError(t, store.Put(ctx, &domain.BotConfig{
			UserID:    id,
			WalletRef: "WalletRef123",
			Risk:      domain.DefaultRiskConfig(),
			CreatedAt: time.Now().UnixMilli(),
		}))
	}

	configs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 3)

	assert.Equal(t, "user-a", configs[0].UserID)
	assert.Equal(t, "user-b", configs[1].UserID)
	assert.Equal(t, "user-c", configs[2].UserID)
}

func TestBotConfigStore_Delete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBotConfigStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &domain.BotConfig{
		UserID:    "user-1",
		WalletRef: "WalletRef123",
		Risk:      domain.DefaultRiskConfig(),
		CreatedAt: time.Now().UnixMilli(),
	}))

	require.NoError(t, store.Delete(ctx, "user-1"))

	_, err := store.Get(ctx, "user-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
