package market

import (
	"sync"

	"quotestream/pkg/models"
)

// Buffer accumulates the latest fact per symbol between broadcast
// ticks. Intentionally lossy: only the newest value per symbol is ever
// broadcast, so an overwrite within a tick discards the older fact.
type Buffer struct {
	mu     sync.Mutex
	staged map[string]models.PriceFact
	order  []string
}

func NewBuffer() *Buffer {
	return &Buffer{staged: make(map[string]models.PriceFact)}
}

// Stage records a fact, replacing any previously staged fact for the
// same symbol.
func (b *Buffer) Stage(fact models.PriceFact) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.staged[fact.Symbol]; !ok {
		b.order = append(b.order, fact.Symbol)
	}
	b.staged[fact.Symbol] = fact
}

// Drain atomically returns all staged facts in first-staged order and
// clears the buffer.
func (b *Buffer) Drain() []models.PriceFact {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.staged) == 0 {
		return nil
	}
	facts := make([]models.PriceFact, 0, len(b.staged))
	for _, sym := range b.order {
		facts = append(facts, b.staged[sym])
	}
	b.staged = make(map[string]models.PriceFact)
	b.order = nil
	return facts
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.staged)
}
