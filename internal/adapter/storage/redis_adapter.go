package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

const inventoryKeyPrefix = "inventory:"

// RedisAdapter caches per-store stock snapshots as JSON arrays under
// inventory:{store_id}, expiring after the configured TTL. Writes to a store
// DEL the key; redis handles expiry, so a miss needs no sweep.
type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, ttl: ttl}
}

func (r *RedisAdapter) Get(ctx context.Context, storeID int64) ([]domain.StockLevel, bool, error) {
	raw, err := r.client.Get(ctx, snapshotKey(storeID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var items []domain.StockLevel
	if err := json.Unmarshal(raw, &items); err != nil {
		// A corrupt entry is as good as a miss; the caller repopulates.
		return nil, false, nil
	}
	return items, true, nil
}

func (r *RedisAdapter) Put(ctx context.Context, storeID int64, items []domain.StockLevel) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return r.client.Set(ctx, snapshotKey(storeID), raw, r.ttl).Err()
}

func (r *RedisAdapter) Invalidate(ctx context.Context, storeID int64) error {
	return r.client.Del(ctx, snapshotKey(storeID)).Err()
}

func snapshotKey(storeID int64) string {
	return fmt.Sprintf("%s%d", inventoryKeyPrefix, storeID)
}
