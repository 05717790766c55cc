package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisAdapter_RoundTrip(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, 30*time.Second)
	client.Del(ctx, "inventory:9001")

	if _, hit, err := adapter.Get(ctx, 9001); err != nil || hit {
		t.Fatalf("expected clean miss, hit=%v err=%v", hit, err)
	}

	items := []domain.StockLevel{{ProductID: 1, Stock: 30}, {ProductID: 2, Stock: 5}}
	if err := adapter.Put(ctx, 9001, items); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, hit, err := adapter.Get(ctx, 9001)
	if err != nil || !hit {
		t.Fatalf("expected hit, hit=%v err=%v", hit, err)
	}
	if len(got) != 2 || got[0].Stock != 30 || got[1].ProductID != 2 {
		t.Errorf("unexpected snapshot: %+v", got)
	}

	if err := adapter.Invalidate(ctx, 9001); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, hit, _ := adapter.Get(ctx, 9001); hit {
		t.Error("expected miss after invalidation")
	}
}

func TestRedisAdapter_Expiry(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, 100*time.Millisecond)
	client.Del(ctx, "inventory:9002")

	if err := adapter.Put(ctx, 9002, []domain.StockLevel{{ProductID: 1, Stock: 1}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if _, hit, _ := adapter.Get(ctx, 9002); hit {
		t.Error("expected miss after ttl expiry")
	}
}

func TestRedisAdapter_CorruptEntryIsMiss(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, 30*time.Second)
	client.Set(ctx, "inventory:9003", "not-json", time.Minute)
	defer client.Del(ctx, "inventory:9003")

	if _, hit, err := adapter.Get(ctx, 9003); err != nil || hit {
		t.Errorf("corrupt entry must read as miss, hit=%v err=%v", hit, err)
	}
}
