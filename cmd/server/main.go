package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"quotestream/cmd/server/internal/cache"
	"quotestream/cmd/server/internal/gateway"
	"quotestream/cmd/server/internal/hub"
	"quotestream/cmd/server/internal/market"
	"quotestream/cmd/server/internal/ratelimit"
	"quotestream/cmd/server/internal/source"
	"quotestream/pkg/config"
	"quotestream/pkg/models"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	priceCache := cache.New(rdb, cfg.Market.CacheTTL, logger)
	if priceCache.Connect(ctx) {
		logger.Info("cache backend connected", zap.String("addr", cfg.Redis.Addr))
	}

	store := market.NewStateStore(models.Catalog(), market.RealClock{})
	buffer := market.NewBuffer()
	limiter := ratelimit.New(cfg.Limits.MessagesPerSecond, cfg.Limits.SweepInterval, cfg.Limits.SweepGrace, logger)
	wsHub := hub.NewHub(store, limiter, models.KnownSymbols(), logger)
	dispatcher := hub.NewDispatcher(wsHub, priceCache, buffer, store, cfg.App.InstanceID, cfg.Market.BroadcastInterval, logger)

	dialer := &kafka.Dialer{Timeout: 2 * time.Second}
	src := source.Select(ctx, cfg, dialer, store, dispatcher, logger)
	logger.Info("ingestion source selected", zap.String("source", src.Name()))

	go limiter.Run(ctx)
	go dispatcher.Run(ctx)
	go func() {
		if err := src.Run(ctx); err != nil {
			// Startup-only selection: a mid-session broker loss ends
			// ingestion for this process, connections stay up.
			logger.Error("ingestion source terminated", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}

		client := gateway.NewClient(conn, wsHub, logger)
		client.Start()
	})

	srv := &http.Server{Addr: cfg.App.Port, Handler: mux}

	go func() {
		logger.Info("Server Started",
			zap.String("port", cfg.App.Port),
			zap.String("instance", cfg.App.InstanceID))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	cancel()
	srv.Shutdown(context.Background())
	rdb.Close()
	logger.Info("Shutdown Complete")
}
