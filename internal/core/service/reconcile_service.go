package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// ReconcileService detects divergence between the stock projection and the
// signed sum of committed movements. A divergence means a deferred ledger
// append was lost (or the ledger was tampered with); it is reported, never
// auto-repaired.
type ReconcileService struct {
	repo port.LedgerRepository
	log  *zap.Logger
}

func NewReconcileService(repo port.LedgerRepository, log *zap.Logger) *ReconcileService {
	return &ReconcileService{repo: repo, log: log}
}

// Run returns every (product, store) key whose projected stock disagrees
// with its ledger sum.
func (s *ReconcileService) Run(ctx context.Context) ([]domain.LedgerSum, error) {
	sums, err := s.repo.LedgerSums(ctx)
	if err != nil {
		return nil, err
	}

	var diverged []domain.LedgerSum
	for _, row := range sums {
		if row.Projected == row.LedgerSum {
			continue
		}
		diverged = append(diverged, row)
		s.log.Warn("projection diverges from ledger",
			zap.Int64("product_id", row.ProductID),
			zap.Int64("store_id", row.StoreID),
			zap.Int("projected", row.Projected),
			zap.Int("ledger_sum", row.LedgerSum))
	}
	return diverged, nil
}
