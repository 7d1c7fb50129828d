package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tradepost/negotiation/internal/adapter/handler"
	"github.com/tradepost/negotiation/internal/adapter/storage"
	"github.com/tradepost/negotiation/internal/auth"
	"github.com/tradepost/negotiation/internal/config"
	"github.com/tradepost/negotiation/internal/core/service"
	"github.com/tradepost/negotiation/internal/port"
	"github.com/tradepost/negotiation/internal/relay"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	store := storage.NewMySQLStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure schema", zap.Error(err))
	}

	// Change feed: Redis pub/sub when configured, in-process otherwise.
	var feed port.ChangeFeed
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: 100})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
		feed = storage.NewRedisFeed(rdb, logger)
	} else {
		logger.Info("no REDIS_ADDR set, using in-process change feed")
		feed = storage.NewMemoryFeed()
	}

	// Services
	snapshotService := service.NewSnapshotService(store, logger)
	chatService := service.NewChatService(store, feed, snapshotService, logger)
	orderService := service.NewOrderService(store, logger)
	offerService := service.NewOfferService(store, feed, orderService, logger)
	inventoryService := service.NewInventoryService(store, store)
	changeRelay := relay.New(feed, logger)

	authenticator := auth.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTValidity)

	// HTTP
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	httpHandler := handler.NewHTTPHandler(
		chatService, offerService, inventoryService, snapshotService,
		changeRelay, authenticator, logger,
	)
	httpHandler.Register(router)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("http server stopped")

	if rdb != nil {
		rdb.Close()
	}
	db.Close()
	logger.Info("connections closed")
}
