package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"quotestream/cmd/feeder/internal/feeder"
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

	// Ensure the topic exists before producing.
	creator := feeder.NewTopicCreator(logger, &feeder.RealKafkaDialer{Dialer: &kafka.Dialer{Timeout: 5 * time.Second}}, feeder.RealClock{})
	creator.Create(cfg.Kafka.Brokers, cfg.Kafka.Topic)

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
		// Batch to reduce network IO; the buffer is flushed on Close.
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}

	rnd := feeder.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
	f := feeder.New(logger, writer, models.Catalog(), 100*time.Millisecond, rnd, feeder.RealClock{})

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go f.Run(ctx)

	<-sigChan
	logger.Info("Shutdown signal received")
	cancel()

	if err := writer.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	} else {
		logger.Info("Kafka writer closed cleanly")
	}
}
