// Package source produces price facts, either synthetically or from
// the durable queue. Exactly one variant runs per process; the choice
// is made once at startup by probing the broker and is never
// re-evaluated.
package source

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"quotestream/cmd/server/internal/market"
	"quotestream/pkg/config"
	"quotestream/pkg/models"
)

const (
	probeAttempts = 3
	maxProbeDelay = 2 * time.Second
)

// Sink is where produced facts go. The generator path publishes whole
// batches immediately; the queue path stages facts for the next
// broadcast tick.
type Sink interface {
	PublishBatch(ctx context.Context, facts []models.PriceFact)
	Stage(fact models.PriceFact)
}

// Source is one ingestion strategy.
type Source interface {
	Name() string
	Run(ctx context.Context) error
}

// BrokerDialer abstracts broker probing for tests.
type BrokerDialer interface {
	DialContext(ctx context.Context, network, address string) (*kafka.Conn, error)
}

// Select probes the broker with bounded retry and returns the queue
// consumer when it is reachable, the synthetic generator otherwise.
func Select(ctx context.Context, cfg *config.Config, dialer BrokerDialer, store *market.StateStore, sink Sink, logger *zap.Logger) Source {
	if probeBrokers(ctx, dialer, cfg.Kafka.Brokers, logger) {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:           cfg.Kafka.Brokers,
			Topic:             cfg.Kafka.Topic,
			GroupID:           cfg.Kafka.GroupID,
			MinBytes:          200,
			MaxBytes:          10e6,
			MaxWait:           200 * time.Millisecond,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    10 * time.Second,
		})
		return NewQueueConsumer(reader, store, sink, logger)
	}

	logger.Info("broker unreachable, falling back to synthetic generator")
	interval, skip := generatorProfile(cfg.Market.Mode)
	return NewGenerator(models.Catalog(), store, sink, interval, skip, logger)
}

func probeBrokers(ctx context.Context, dialer BrokerDialer, brokers []string, logger *zap.Logger) bool {
	var lastErr error
	for attempt := 1; attempt <= probeAttempts; attempt++ {
		for _, addr := range brokers {
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err == nil {
				conn.Close()
				return true
			}
			lastErr = err
		}
		delay := time.Duration(attempt) * 50 * time.Millisecond
		if delay > maxProbeDelay {
			delay = maxProbeDelay
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
	}
	logger.Warn("broker probe failed", zap.Error(lastErr))
	return false
}

func generatorProfile(mode string) (time.Duration, float64) {
	if mode == "hf" {
		return highFrequencyInterval, highFrequencySkip
	}
	return fullStateInterval, 0
}
