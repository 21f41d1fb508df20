package source_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"

	"quotestream/cmd/server/internal/market"
	"quotestream/cmd/server/internal/source"
	"quotestream/cmd/server/internal/testutils"
	"quotestream/pkg/models"
)

func genCatalog(vol float64) []models.SymbolSpec {
	return []models.SymbolSpec{
		{Symbol: "BTC", BasePrice: 100.0, Supply: 10, BaseVolume: 1000, Volatility: vol},
	}
}

func TestGenerator_NeverEmitsNonPositivePrice(t *testing.T) {
	// Adversarial volatility: a single step can swing far below zero,
	// which must trigger the rejection path, never a bad emission.
	for seed := int64(1); seed <= 25; seed++ {
		rnd := rand.New(rand.NewSource(seed))
		clock := &testutils.MockClock{CurrentTime: time.Unix(1000, 0)}
		store := market.NewStateStore(genCatalog(500.0), clock)
		sink := &testutils.MockSink{}
		gen := source.NewGeneratorWith(genCatalog(500.0), store, sink, time.Second, 0, rnd, clock, zap.NewNop())

		for i := 0; i < 500; i++ {
			gen.Tick(context.Background())
		}

		sink.Mu.Lock()
		for _, batch := range sink.Batches {
			for _, fact := range batch {
				if fact.Price <= 0 {
					t.Fatalf("seed %d emitted non-positive price %f", seed, fact.Price)
				}
			}
		}
		sink.Mu.Unlock()
	}
}

func TestGenerator_DeterministicStep(t *testing.T) {
	clock := &testutils.MockClock{CurrentTime: time.Unix(1000, 0)}
	catalog := genCatalog(0.2)
	store := market.NewStateStore(catalog, clock)
	sink := &testutils.MockSink{}
	rnd := &testutils.MockRand{ValFloat: 0.5}

	gen := source.NewGeneratorWith(catalog, store, sink, time.Second, 0, rnd, clock, zap.NewNop())
	gen.Tick(context.Background())

	sink.Mu.Lock()
	defer sink.Mu.Unlock()
	if len(sink.Batches) != 1 || len(sink.Batches[0]) != 1 {
		t.Fatalf("expected one batch with one fact, got %+v", sink.Batches)
	}

	fact := sink.Batches[0][0]
	// walk: 100 * (1 + (0.5-0.495)*0.2/100) = 100.001
	want := 100 * (1 + (0.5-0.495)*0.2/100)
	if fact.Price != want {
		t.Errorf("expected price %f, got %f", want, fact.Price)
	}
	if fact.SeqID != 1 {
		t.Errorf("expected seq 1, got %d", fact.SeqID)
	}
	if fact.MarketCap != fact.Price*10 {
		t.Errorf("market cap should derive from supply, got %f", fact.MarketCap)
	}
	// volume jitter with rand=0.5 is exactly the base volume
	if fact.Volume24h != 1000.0 {
		t.Errorf("expected volume 1000, got %f", fact.Volume24h)
	}

	view, _ := store.View("BTC")
	if view.Price != fact.Price {
		t.Error("fact should have been applied to the state store")
	}
}

func TestGenerator_HighFrequencySkips(t *testing.T) {
	clock := &testutils.MockClock{CurrentTime: time.Unix(1000, 0)}
	catalog := genCatalog(0.2)
	store := market.NewStateStore(catalog, clock)
	sink := &testutils.MockSink{}
	// 0.5 < 0.7 skip probability: every symbol is skipped every tick.
	rnd := &testutils.MockRand{ValFloat: 0.5}

	gen := source.NewGeneratorWith(catalog, store, sink, time.Second, 0.7, rnd, clock, zap.NewNop())
	gen.Tick(context.Background())
	gen.Tick(context.Background())

	sink.Mu.Lock()
	defer sink.Mu.Unlock()
	if len(sink.Batches) != 0 {
		t.Errorf("all symbols skipped, expected no batches, got %d", len(sink.Batches))
	}
}

func TestGenerator_RunStopsOnCancel(t *testing.T) {
	clock := &testutils.MockClock{CurrentTime: time.Unix(1000, 0)}
	catalog := genCatalog(0.2)
	store := market.NewStateStore(catalog, clock)
	sink := &testutils.MockSink{}

	gen := source.NewGeneratorWith(catalog, store, sink, time.Millisecond, 0, rand.New(rand.NewSource(1)), clock, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- gen.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run should return nil on cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("generator did not stop on cancellation")
	}
}
