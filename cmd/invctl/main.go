package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appcache "github.com/rl1809/stock-ledger/internal/adapter/cache"
	appqueue "github.com/rl1809/stock-ledger/internal/adapter/queue"
	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

var dbPath string

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "invctl",
		Short: "Inventory ledger over a local SQLite file",
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", envOr("INVCTL_DB", "inventory.db"), "path to the sqlite database")

	rootCmd.AddCommand(productCmd())
	rootCmd.AddCommand(storeCmd())
	rootCmd.AddCommand(stockCmd())
	rootCmd.AddCommand(transferCmd())
	rootCmd.AddCommand(inventoryCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env bundles everything a command needs: the sqlite-backed ledger and the
// services running in synchronous mode (no deferred appends in a one-shot
// process).
type env struct {
	ledger    *storage.SQLAdapter
	movements *service.MovementService
	queries   *service.QueryService
	catalog   *service.CatalogService
	reconcile *service.ReconcileService
	close     func()
}

func openEnv(ctx context.Context) (*env, error) {
	db, err := sqlx.Connect("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	ledger := storage.NewSQLAdapter(db)
	if err := ledger.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := ensureDefaultStore(ctx, ledger); err != nil {
		db.Close()
		return nil, err
	}

	zlog := zap.NewNop()
	snapshots := appcache.NewMemoryCache(16, 30*time.Second)
	queue := appqueue.NewChannelQueue(1)

	e := &env{
		ledger:    ledger,
		movements: service.NewMovementService(ledger, snapshots, queue, service.PipelineConfig{}, zlog),
		queries:   service.NewQueryService(ledger, snapshots, zlog),
		catalog:   service.NewCatalogService(ledger, snapshots, zlog),
		reconcile: service.NewReconcileService(ledger, zlog),
		close: func() {
			queue.Close()
			db.Close()
		},
	}
	return e, nil
}

// ensureDefaultStore keeps the single-store workflow friction-free: a fresh
// database gets one "Main" store with id 1.
func ensureDefaultStore(ctx context.Context, ledger *storage.SQLAdapter) error {
	stores, err := ledger.ListStores(ctx)
	if err != nil {
		return err
	}
	if len(stores) > 0 {
		return nil
	}
	_, err = ledger.CreateStore(ctx, "Main", nil)
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
