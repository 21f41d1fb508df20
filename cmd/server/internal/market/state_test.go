package market_test

import (
	"testing"
	"time"

	"quotestream/cmd/server/internal/market"
	"quotestream/cmd/server/internal/testutils"
	"quotestream/pkg/models"
)

func testCatalog() []models.SymbolSpec {
	return []models.SymbolSpec{
		{Symbol: "BTC", BasePrice: 100.0, Supply: 10, BaseVolume: 1000, Volatility: models.VolatilityLargeCap},
		{Symbol: "ETH", BasePrice: 50.0, Supply: 20, BaseVolume: 500, Volatility: models.VolatilityDefault},
	}
}

func fact(symbol string, price float64, ts time.Time) models.PriceFact {
	return models.PriceFact{Symbol: symbol, Price: price, Timestamp: ts.UnixMicro()}
}

func TestStateStore_ApplyAndSnapshot(t *testing.T) {
	clock := &testutils.MockClock{CurrentTime: time.Unix(1000, 0)}
	store := market.NewStateStore(testCatalog(), clock)

	if !store.ApplyFact(fact("BTC", 110.0, clock.Now())) {
		t.Fatal("known symbol should be applied")
	}

	view, ok := store.View("BTC")
	if !ok {
		t.Fatal("expected view for BTC")
	}
	if view.Price != 110.0 {
		t.Errorf("expected price 110.0, got %f", view.Price)
	}
	// Reference price is the base price until the first rebase.
	if view.Change24h != 10.0 {
		t.Errorf("expected change 10.0, got %f", view.Change24h)
	}

	snap := store.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot should cover every known symbol, got %d", len(snap))
	}
	if snap[0].Symbol != "BTC" || snap[1].Symbol != "ETH" {
		t.Errorf("snapshot order should follow the catalog, got %v, %v", snap[0].Symbol, snap[1].Symbol)
	}
}

func TestStateStore_ChangeIsRounded(t *testing.T) {
	clock := &testutils.MockClock{CurrentTime: time.Unix(1000, 0)}
	store := market.NewStateStore(testCatalog(), clock)

	store.ApplyFact(fact("BTC", 100.12345, clock.Now()))

	view, _ := store.View("BTC")
	if view.Change24h != 0.12 {
		t.Errorf("expected change rounded to 0.12, got %f", view.Change24h)
	}
}

func TestStateStore_RebaseAfterAnHour(t *testing.T) {
	clock := &testutils.MockClock{CurrentTime: time.Unix(1000, 0)}
	store := market.NewStateStore(testCatalog(), clock)

	store.ApplyFact(fact("BTC", 110.0, clock.Now()))

	// Just inside the window: reference must not move.
	clock.Advance(3599 * time.Second)
	store.ApplyFact(fact("BTC", 120.0, clock.Now()))
	view, _ := store.View("BTC")
	if view.Change24h != 20.0 {
		t.Errorf("reference should still be 100, got change %f", view.Change24h)
	}

	// Past the window: reference is replaced by the current price.
	clock.Advance(2 * time.Second)
	store.ApplyFact(fact("BTC", 120.0, clock.Now()))
	view, _ = store.View("BTC")
	if view.Change24h != 0.0 {
		t.Errorf("reference should have rebased to 120, got change %f", view.Change24h)
	}
}

func TestStateStore_UnknownSymbolIgnored(t *testing.T) {
	clock := &testutils.MockClock{CurrentTime: time.Unix(1000, 0)}
	store := market.NewStateStore(testCatalog(), clock)

	if store.ApplyFact(fact("WAT", 1.0, clock.Now())) {
		t.Error("unknown symbol should not be applied")
	}
	if len(store.Snapshot()) != 2 {
		t.Error("unknown symbol must not grow the snapshot")
	}
}

func TestBuffer_LastWriteWins(t *testing.T) {
	buf := market.NewBuffer()

	buf.Stage(models.PriceFact{Symbol: "BTC", Price: 100, SeqID: 1})
	buf.Stage(models.PriceFact{Symbol: "ETH", Price: 50, SeqID: 1})
	buf.Stage(models.PriceFact{Symbol: "BTC", Price: 101, SeqID: 2})

	facts := buf.Drain()
	if len(facts) != 2 {
		t.Fatalf("expected 2 staged facts, got %d", len(facts))
	}
	if facts[0].Symbol != "BTC" || facts[0].Price != 101 {
		t.Errorf("staged BTC fact should be the latest one, got %+v", facts[0])
	}
	if facts[1].Symbol != "ETH" {
		t.Errorf("expected ETH second, got %s", facts[1].Symbol)
	}
}

func TestBuffer_DrainClears(t *testing.T) {
	buf := market.NewBuffer()
	buf.Stage(models.PriceFact{Symbol: "BTC", Price: 100})

	if got := len(buf.Drain()); got != 1 {
		t.Fatalf("expected 1 fact, got %d", got)
	}
	if buf.Drain() != nil {
		t.Error("second drain should return nothing")
	}
	if buf.Len() != 0 {
		t.Error("buffer should be empty after drain")
	}
}
