package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

func TestReconcile_CleanLedger(t *testing.T) {
	ledger := newMockLedger()
	ledger.addProduct(1, "Apple")
	ledger.addStore(1, "Main")
	svc, q := newSyncService(ledger, newMockCache())
	defer q.Close()

	ctx := context.Background()
	seed := []SubmitRequest{
		{ProductID: 1, StoreID: 1, Type: domain.MovementStockIn, Quantity: 50},
		{ProductID: 1, StoreID: 1, Type: domain.MovementSale, Quantity: 20},
		{ProductID: 1, StoreID: 1, Type: domain.MovementAdjustment, Direction: domain.DirectionOut, Quantity: 5},
	}
	for _, req := range seed {
		if _, err := svc.Submit(ctx, req); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	diverged, err := NewReconcileService(ledger, zap.NewNop()).Run(ctx)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if len(diverged) != 0 {
		t.Errorf("expected clean reconcile, got %+v", diverged)
	}
}

func TestReconcile_DetectsLostAppend(t *testing.T) {
	ledger := newMockLedger()
	ledger.addProduct(1, "Apple")
	ledger.addStore(1, "Main")
	svc, q := newSyncService(ledger, newMockCache())
	defer q.Close()

	ctx := context.Background()
	if _, err := svc.Submit(ctx, SubmitRequest{ProductID: 1, StoreID: 1, Type: domain.MovementStockIn, Quantity: 50}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	// A projection update whose ledger append never landed.
	ledger.mu.Lock()
	ledger.stock[stockKey{1, 1}] += 7
	ledger.mu.Unlock()

	diverged, err := NewReconcileService(ledger, zap.NewNop()).Run(ctx)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if len(diverged) != 1 {
		t.Fatalf("expected 1 divergence, got %d", len(diverged))
	}
	d := diverged[0]
	if d.Projected != 57 || d.LedgerSum != 50 {
		t.Errorf("expected projected 57 vs ledger 50, got %d vs %d", d.Projected, d.LedgerSum)
	}
}
