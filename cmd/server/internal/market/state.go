package market

import (
	"math"
	"sync"
	"time"

	"quotestream/pkg/models"
)

// Clock abstracts wall-clock time for deterministic testing.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// rebaseAfter is how long a reference price stays valid before it is
// replaced by the current price.
const rebaseAfter = time.Hour

type symbolState struct {
	spec           models.SymbolSpec
	price          float64
	volume24h      float64
	marketCap      float64
	timestamp      int64
	seqID          int64
	referencePrice float64
	lastRebasedAt  time.Time
}

// StateStore holds the current price and 24h reference price for every
// catalog symbol. It does no I/O; a small mutex serializes the source
// goroutine against snapshot readers.
type StateStore struct {
	mu    sync.RWMutex
	clock Clock
	state map[string]*symbolState
	order []string
}

func NewStateStore(catalog []models.SymbolSpec, clock Clock) *StateStore {
	now := clock.Now()
	s := &StateStore{
		clock: clock,
		state: make(map[string]*symbolState, len(catalog)),
	}
	for _, spec := range catalog {
		s.state[spec.Symbol] = &symbolState{
			spec:           spec,
			price:          spec.BasePrice,
			volume24h:      spec.BaseVolume,
			marketCap:      spec.BasePrice * spec.Supply,
			timestamp:      now.UnixMicro(),
			referencePrice: spec.BasePrice,
			lastRebasedAt:  now,
		}
		s.order = append(s.order, spec.Symbol)
	}
	return s
}

// ApplyFact replaces the current price for the fact's symbol and
// evaluates the hourly rebase rule. Returns false for an unknown
// symbol; reporting the anomaly is the caller's job.
func (s *StateStore) ApplyFact(fact models.PriceFact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state[fact.Symbol]
	if !ok {
		return false
	}

	st.price = fact.Price
	st.volume24h = fact.Volume24h
	st.marketCap = fact.MarketCap
	st.timestamp = fact.Timestamp
	st.seqID = fact.SeqID

	now := s.clock.Now()
	if now.Sub(st.lastRebasedAt) > rebaseAfter {
		st.referencePrice = st.price
		st.lastRebasedAt = now
	}
	return true
}

// View returns the computed view for one symbol.
func (s *StateStore) View(symbol string) (models.PriceFactView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.state[symbol]
	if !ok {
		return models.PriceFactView{}, false
	}
	return st.view(), true
}

// Snapshot returns the computed view for every known symbol, in
// catalog order.
func (s *StateStore) Snapshot() []models.PriceFactView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]models.PriceFactView, 0, len(s.order))
	for _, sym := range s.order {
		views = append(views, s.state[sym].view())
	}
	return views
}

// Spec returns the catalog entry for a symbol.
func (s *StateStore) Spec(symbol string) (models.SymbolSpec, bool) {
	st, ok := s.state[symbol]
	if !ok {
		return models.SymbolSpec{}, false
	}
	return st.spec, true
}

func (st *symbolState) view() models.PriceFactView {
	change := (st.price - st.referencePrice) / st.referencePrice * 100
	return models.PriceFactView{
		PriceFact: models.PriceFact{
			Symbol:    st.spec.Symbol,
			Price:     st.price,
			Timestamp: st.timestamp,
			Volume24h: st.volume24h,
			MarketCap: st.marketCap,
			SeqID:     st.seqID,
		},
		Change24h: math.Round(change*100) / 100,
	}
}
