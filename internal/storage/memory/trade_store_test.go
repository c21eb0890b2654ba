package memory

import (
	"context"
	"errors"
	"testing"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/storage"
)

func TestTradeStore_InsertAndList(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	fills := []*domain.TradeFill{
		{FillID: "f1", PositionID: "p1", UserID: "user-1", Mint: "mint-1", Side: domain.FillBuy, Fraction: 1.0, AmountSol: 1.0, ExecutedAt: 100},
		{FillID: "f2", PositionID: "p1", UserID: "user-1", Mint: "mint-1", Side: domain.FillSell, Fraction: 0.25, AmountSol: 1.7, ExecutedAt: 300},
		{FillID: "f3", PositionID: "p2", UserID: "user-2", Mint: "mint-2", Side: domain.FillBuy, Fraction: 1.0, AmountSol: 0.5, ExecutedAt: 200},
	}
	for _, f := range fills {
		if err := store.Insert(ctx, f); err != nil {
			t.Fatalf("Insert %s failed: %v", f.FillID, err)
		}
	}

	byUser, err := store.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(byUser) != 2 {
		t.Fatalf("expected 2 fills for user-1, got %d", len(byUser))
	}
	if byUser[0].FillID != "f1" || byUser[1].FillID != "f2" {
		t.Errorf("unexpected order: %s, %s", byUser[0].FillID, byUser[1].FillID)
	}

	byPos, err := store.ListByPosition(ctx, "p1")
	if err != nil {
		t.Fatalf("ListByPosition failed: %v", err)
	}
	if len(byPos) != 2 {
		t.Errorf("expected 2 fills for p1, got %d", len(byPos))
	}
}

func TestTradeStore_DuplicateKey(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	f := &domain.TradeFill{FillID: "f1", PositionID: "p1", UserID: "user-1", Mint: "mint-1", Side: domain.FillBuy, Fraction: 1.0, ExecutedAt: 100}
	if err := store.Insert(ctx, f); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, f); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeStore_InvalidInput(t *testing.T) {
	store := NewTradeStore()

	if err := store.Insert(context.Background(), &domain.TradeFill{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
