package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/config"
	"github.com/rl1809/stock-ledger/internal/adapter/handler"
	appqueue "github.com/rl1809/stock-ledger/internal/adapter/queue"
	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/logger"
	"github.com/rl1809/stock-ledger/internal/port"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment")
	}
	cfg := config.Load()

	zlog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sqlx.Connect("mysql", cfg.MySQL.DSN())
	if err != nil {
		zlog.Fatal("failed to connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	zlog.Info("connected to mysql", zap.String("db", cfg.MySQL.DBName))

	ledger := storage.NewSQLAdapter(db)
	if err := ledger.EnsureSchema(ctx); err != nil {
		zlog.Fatal("failed to ensure schema", zap.Error(err))
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Fatal("failed to connect redis", zap.Error(err))
	}
	zlog.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	snapshots := storage.NewRedisAdapter(rdb, cfg.Redis.CacheTTL)

	// Append queue
	var queue port.AppendQueue
	switch cfg.Queue.Kind {
	case "rabbit":
		rq, err := appqueue.NewRabbitQueue(cfg.Queue.RabbitURL, cfg.Queue.Name, zlog)
		if err != nil {
			zlog.Fatal("failed to connect rabbitmq", zap.Error(err))
		}
		queue = rq
		zlog.Info("connected to rabbitmq", zap.String("queue", cfg.Queue.Name))
	default:
		queue = appqueue.NewChannelQueue(cfg.Queue.Size)
	}

	// Services
	movements := service.NewMovementService(ledger, snapshots, queue, service.PipelineConfig{
		Async:          cfg.Pipeline.Async,
		ApplyTimeout:   cfg.Pipeline.ApplyTimeout,
		RetryAttempts:  cfg.Pipeline.RetryAttempts,
		RetryBackoff:   cfg.Pipeline.RetryBackoff,
		AppendAttempts: cfg.Pipeline.AppendAttempts,
	}, zlog)
	queries := service.NewQueryService(ledger, snapshots, zlog)
	catalog := service.NewCatalogService(ledger, snapshots, zlog)

	// Append workers
	var wg sync.WaitGroup
	for i := 0; i < cfg.Queue.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			movements.AppendWorker(id)
		}(i)
	}
	zlog.Info("started append workers", zap.Int("count", cfg.Queue.Workers))

	// HTTP server
	if cfg.Server.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	handler.NewHTTPHandler(movements, queries, catalog).Register(router)

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}
	go func() {
		zlog.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			zlog.Error("http server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	zlog.Info("http server stopped")

	queue.Close()
	wg.Wait()
	zlog.Info("append workers stopped")

	if faults := movements.Faults(); len(faults) > 0 {
		zlog.Error("unresolved consistency faults at shutdown", zap.Int("count", len(faults)))
	}

	rdb.Close()
	db.Close()
	zlog.Info("connections closed")
}
