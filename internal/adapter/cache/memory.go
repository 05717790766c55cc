package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// MemoryCache is an in-process snapshot cache for the CLI and for tests,
// backed by an expirable LRU with a single TTL for all entries.
type MemoryCache struct {
	lru *expirable.LRU[int64, []domain.StockLevel]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: expirable.NewLRU[int64, []domain.StockLevel](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, storeID int64) ([]domain.StockLevel, bool, error) {
	items, ok := c.lru.Get(storeID)
	return items, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, storeID int64, items []domain.StockLevel) error {
	c.lru.Add(storeID, items)
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, storeID int64) error {
	c.lru.Remove(storeID)
	return nil
}
