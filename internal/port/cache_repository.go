package port

import (
	"context"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// SnapshotCache holds short-lived per-store stock snapshots. It is never
// authoritative; entries are rebuilt from the projection on a miss and
// dropped on every write to the store.
type SnapshotCache interface {
	// Get returns the snapshot and true on a fresh hit, false when absent
	// or expired.
	Get(ctx context.Context, storeID int64) ([]domain.StockLevel, bool, error)

	Put(ctx context.Context, storeID int64, items []domain.StockLevel) error

	Invalidate(ctx context.Context, storeID int64) error
}
