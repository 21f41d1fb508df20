package source

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"quotestream/cmd/server/internal/market"
	"quotestream/pkg/models"
)

const (
	fullStateInterval     = 1500 * time.Millisecond
	highFrequencyInterval = 100 * time.Millisecond
	highFrequencySkip     = 0.7

	// Slightly below 0.5 so the walk carries a mild upward drift.
	driftBias = 0.495
)

// Rand is the subset of math/rand the generator needs, abstracted for
// deterministic tests.
type Rand interface {
	Float64() float64
}

// Generator perturbs every catalog symbol on a fixed timer with a
// bounded random walk and hands the resulting batch straight to the
// sink; its own timer sets the broadcast cadence, so nothing is
// buffered.
type Generator struct {
	specs    []models.SymbolSpec
	store    *market.StateStore
	sink     Sink
	interval time.Duration
	skipProb float64
	rnd      Rand
	clock    market.Clock
	logger   *zap.Logger

	prices map[string]float64
	seqIDs map[string]int64
}

func NewGenerator(specs []models.SymbolSpec, store *market.StateStore, sink Sink, interval time.Duration, skipProb float64, logger *zap.Logger) *Generator {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return NewGeneratorWith(specs, store, sink, interval, skipProb, rnd, market.RealClock{}, logger)
}

func NewGeneratorWith(specs []models.SymbolSpec, store *market.StateStore, sink Sink, interval time.Duration, skipProb float64, rnd Rand, clock market.Clock, logger *zap.Logger) *Generator {
	g := &Generator{
		specs:    specs,
		store:    store,
		sink:     sink,
		interval: interval,
		skipProb: skipProb,
		rnd:      rnd,
		clock:    clock,
		logger:   logger,
		prices:   make(map[string]float64, len(specs)),
		seqIDs:   make(map[string]int64, len(specs)),
	}
	for _, spec := range specs {
		g.prices[spec.Symbol] = spec.BasePrice
	}
	return g
}

func (g *Generator) Name() string { return "generator" }

func (g *Generator) Run(ctx context.Context) error {
	g.logger.Info("synthetic generator started",
		zap.Duration("interval", g.interval),
		zap.Float64("skip_probability", g.skipProb))

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.Tick(ctx)
		}
	}
}

// Tick walks every symbol once (minus skips) and publishes the batch.
func (g *Generator) Tick(ctx context.Context) {
	now := g.clock.Now().UnixMicro()
	batch := make([]models.PriceFact, 0, len(g.specs))

	for _, spec := range g.specs {
		if g.skipProb > 0 && g.rnd.Float64() < g.skipProb {
			continue
		}

		price := g.step(spec)
		g.seqIDs[spec.Symbol]++

		fact := models.PriceFact{
			Symbol:    spec.Symbol,
			Price:     price,
			Timestamp: now,
			Volume24h: spec.BaseVolume * (0.85 + 0.3*g.rnd.Float64()),
			MarketCap: price * spec.Supply,
			SeqID:     g.seqIDs[spec.Symbol],
		}

		if !g.store.ApplyFact(fact) {
			g.logger.Warn("generated fact for unknown symbol", zap.String("symbol", spec.Symbol))
			continue
		}
		batch = append(batch, fact)
	}

	if len(batch) > 0 {
		g.sink.PublishBatch(ctx, batch)
	}
}

// step advances the random walk for one symbol. A step that would
// produce a non-positive price is rejected and the old price retained.
func (g *Generator) step(spec models.SymbolSpec) float64 {
	price := g.prices[spec.Symbol]
	next := price * (1 + (g.rnd.Float64()-driftBias)*spec.Volatility/100)
	if next <= 0 {
		return price
	}
	g.prices[spec.Symbol] = next
	return next
}
