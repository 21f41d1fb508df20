// Package feeder publishes synthetic price facts to the durable queue
// so a server fleet can run in queue-consumer mode.
package feeder

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"quotestream/pkg/models"
)

// Slightly below 0.5 so the walk carries a mild upward drift.
const driftBias = 0.495

type Feeder struct {
	logger   *zap.Logger
	writer   KafkaWriter
	specs    []models.SymbolSpec
	rnd      Rand
	clock    Clock
	interval time.Duration

	prices map[string]float64
	seqIDs map[string]int64
}

func New(logger *zap.Logger, writer KafkaWriter, specs []models.SymbolSpec, interval time.Duration, rnd Rand, clock Clock) *Feeder {
	f := &Feeder{
		logger:   logger,
		writer:   writer,
		specs:    specs,
		rnd:      rnd,
		clock:    clock,
		interval: interval,
		prices:   make(map[string]float64, len(specs)),
		seqIDs:   make(map[string]int64, len(specs)),
	}
	for _, spec := range specs {
		f.prices[spec.Symbol] = spec.BasePrice
	}
	return f
}

func (f *Feeder) Run(ctx context.Context) {
	f.logger.Info("Feeder started", zap.Int("symbols", len(f.specs)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if len(f.specs) == 0 {
				f.clock.Sleep(time.Second)
				continue
			}

			spec := f.specs[f.rnd.Intn(len(f.specs))]
			fact := f.next(spec)

			payload, err := json.Marshal(fact)
			if err != nil {
				f.logger.Error("JSON Marshal Error", zap.Error(err))
				continue
			}

			// Key by symbol so per-symbol ordering survives partitioning.
			err = f.writer.WriteMessages(ctx, kafka.Message{
				Key:   []byte(spec.Symbol),
				Value: payload,
			})
			if err != nil {
				f.logger.Error("Kafka Write Error", zap.Error(err))
			} else {
				f.logger.Debug("Sent fact", zap.String("symbol", fact.Symbol), zap.Float64("price", fact.Price))
			}

			f.clock.Sleep(f.interval)
		}
	}
}

// next advances the walk for one symbol and builds the fact. A step
// that would go non-positive keeps the previous price.
func (f *Feeder) next(spec models.SymbolSpec) models.PriceFact {
	price := f.prices[spec.Symbol]
	candidate := price * (1 + (f.rnd.Float64()-driftBias)*spec.Volatility/100)
	if candidate > 0 {
		price = candidate
		f.prices[spec.Symbol] = candidate
	}
	f.seqIDs[spec.Symbol]++

	return models.PriceFact{
		Symbol:    spec.Symbol,
		Price:     price,
		Timestamp: f.clock.Now().UnixMicro(),
		Volume24h: spec.BaseVolume * (0.85 + 0.3*f.rnd.Float64()),
		MarketCap: price * spec.Supply,
		SeqID:     f.seqIDs[spec.Symbol],
	}
}
