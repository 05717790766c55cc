package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	appcache "github.com/rl1809/stock-ledger/internal/adapter/cache"
	appqueue "github.com/rl1809/stock-ledger/internal/adapter/queue"
	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlx.Connect("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ledger := storage.NewSQLAdapter(db)
	ctx := context.Background()
	if err := ledger.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := ledger.CreateProduct(ctx, "Apple", nil); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := ledger.CreateStore(ctx, "Main", nil); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	zlog := zap.NewNop()
	cache := appcache.NewMemoryCache(16, time.Minute)
	q := appqueue.NewChannelQueue(16)
	t.Cleanup(func() { q.Close() })

	movements := service.NewMovementService(ledger, cache, q, service.PipelineConfig{}, zlog)
	queries := service.NewQueryService(ledger, cache, zlog)
	catalog := service.NewCatalogService(ledger, cache, zlog)

	router := gin.New()
	NewHTTPHandler(movements, queries, catalog).Register(router)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload map[string]interface{}) (int, map[string]interface{}) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var out map[string]interface{}
	if len(rec.Body.Bytes()) > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func TestCreateMovement_RejectionReasons(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name       string
		payload    map[string]interface{}
		wantStatus int
		wantReason string
	}{
		{
			"zero quantity",
			map[string]interface{}{"product_id": 1, "store_id": 1, "type": "SALE", "quantity": 0},
			http.StatusBadRequest, "quantity must be positive",
		},
		{
			"missing quantity",
			map[string]interface{}{"product_id": 1, "store_id": 1, "type": "STOCK_IN"},
			http.StatusBadRequest, "quantity must be positive",
		},
		{
			"bad type",
			map[string]interface{}{"product_id": 1, "store_id": 1, "type": "RESTOCK", "quantity": 1},
			http.StatusBadRequest, "invalid movement type",
		},
		{
			"unknown product",
			map[string]interface{}{"product_id": 99, "store_id": 1, "type": "SALE", "quantity": 1},
			http.StatusNotFound, "product not found",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := postJSON(t, router, "/api/movements", tc.payload)
			if status != tc.wantStatus {
				t.Errorf("expected %d, got %d (%v)", tc.wantStatus, status, body)
			}
			if body["reason"] != tc.wantReason {
				t.Errorf("expected reason %q, got %v", tc.wantReason, body["reason"])
			}
		})
	}
}

func TestCreateMovement_ReplayedCorrelationConflicts(t *testing.T) {
	router := newTestRouter(t)
	payload := map[string]interface{}{
		"product_id": 1, "store_id": 1, "type": "STOCK_IN", "quantity": 50,
		"correlation_id": "client-retry-1",
	}

	status, body := postJSON(t, router, "/api/movements", payload)
	if status != http.StatusOK {
		t.Fatalf("first submit failed: %d (%v)", status, body)
	}
	if body["new_stock"].(float64) != 50 {
		t.Errorf("expected new_stock 50, got %v", body["new_stock"])
	}

	status, body = postJSON(t, router, "/api/movements", payload)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 on replay, got %d (%v)", status, body)
	}

	// The stock must reflect a single application.
	req := httptest.NewRequest(http.MethodGet, "/api/inventory/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("inventory read failed: %d", rec.Code)
	}
	var view struct {
		Data []struct {
			Stock int `json:"stock"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode inventory: %v", err)
	}
	if len(view.Data) != 1 || view.Data[0].Stock != 50 {
		t.Errorf("expected stock 50 after replay, got %+v", view.Data)
	}
}
