package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

const (
	SourceCache = "cache"
	SourceDB    = "db"

	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// InventoryView is a store's stock snapshot tagged with where it came from.
type InventoryView struct {
	StoreID int64
	Source  string
	Items   []domain.StockLevel
}

type QueryService struct {
	repo  port.LedgerRepository
	cache port.SnapshotCache
	log   *zap.Logger
}

func NewQueryService(repo port.LedgerRepository, cache port.SnapshotCache, log *zap.Logger) *QueryService {
	return &QueryService{repo: repo, cache: cache, log: log}
}

// GetInventory serves from the snapshot cache when fresh, otherwise reads
// the projection and repopulates the cache.
func (s *QueryService) GetInventory(ctx context.Context, storeID int64) (*InventoryView, error) {
	store, err := s.repo.GetStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, domain.ErrStoreNotFound
	}

	items, hit, err := s.cache.Get(ctx, storeID)
	if err != nil {
		// Degrade to the authoritative read.
		s.log.Warn("cache read failed", zap.Int64("store_id", storeID), zap.Error(err))
	} else if hit {
		return &InventoryView{StoreID: storeID, Source: SourceCache, Items: items}, nil
	}

	items, err = s.repo.StockLevels(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, storeID, items); err != nil {
		s.log.Warn("cache repopulate failed", zap.Int64("store_id", storeID), zap.Error(err))
	}
	return &InventoryView{StoreID: storeID, Source: SourceDB, Items: items}, nil
}

// GetHistory lists committed movements newest first, optionally filtered by
// product and store.
func (s *QueryService) GetHistory(ctx context.Context, f port.MovementFilter) ([]domain.Movement, error) {
	if f.Limit <= 0 {
		f.Limit = defaultHistoryLimit
	}
	if f.Limit > maxHistoryLimit {
		f.Limit = maxHistoryLimit
	}
	return s.repo.Movements(ctx, f)
}
