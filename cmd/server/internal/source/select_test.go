package source_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"quotestream/cmd/server/internal/market"
	"quotestream/cmd/server/internal/source"
	"quotestream/cmd/server/internal/testutils"
	"quotestream/pkg/config"
	"quotestream/pkg/models"
)

type unreachableDialer struct{}

func (unreachableDialer) DialContext(ctx context.Context, network, address string) (*kafka.Conn, error) {
	return nil, errors.New("connection refused")
}

func TestSelect_FallsBackToGenerator(t *testing.T) {
	cfg := &config.Config{
		Kafka:  config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "price_facts", GroupID: "g"},
		Market: config.MarketConfig{Mode: "full", BroadcastInterval: 1500 * time.Millisecond},
	}
	clock := &testutils.MockClock{CurrentTime: time.Unix(1000, 0)}
	store := market.NewStateStore(models.Catalog(), clock)

	src := source.Select(context.Background(), cfg, unreachableDialer{}, store, &testutils.MockSink{}, zap.NewNop())

	if src.Name() != "generator" {
		t.Errorf("unreachable broker must select the synthetic generator, got %s", src.Name())
	}
}
