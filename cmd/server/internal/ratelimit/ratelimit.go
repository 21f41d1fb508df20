// Package ratelimit bounds inbound control messages per connection
// with a fixed one-second counting window. The check runs inline on
// the hot path of every inbound message, so it is O(1) and never
// blocks on anything but its own mutex.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clock abstracts wall-clock time for deterministic testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

const window = time.Second

type entry struct {
	count     int
	windowEnd time.Time
}

type Limiter struct {
	mu         sync.Mutex
	clock      Clock
	logger     *zap.Logger
	threshold  int
	sweepEvery time.Duration
	grace      time.Duration
	entries    map[string]*entry
}

func New(threshold int, sweepEvery, grace time.Duration, logger *zap.Logger) *Limiter {
	return NewWithClock(threshold, sweepEvery, grace, realClock{}, logger)
}

func NewWithClock(threshold int, sweepEvery, grace time.Duration, clock Clock, logger *zap.Logger) *Limiter {
	return &Limiter{
		clock:      clock,
		logger:     logger,
		threshold:  threshold,
		sweepEvery: sweepEvery,
		grace:      grace,
		entries:    make(map[string]*entry),
	}
}

// Check counts one inbound message for id and reports whether the
// connection has exceeded its per-window budget.
func (l *Limiter) Check(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	e, ok := l.entries[id]
	if !ok || !now.Before(e.windowEnd) {
		l.entries[id] = &entry{count: 1, windowEnd: now.Add(window)}
		return false
	}
	e.count++
	return e.count > l.threshold
}

// Forget drops all state for a connection; called on disconnect so
// churned connections do not accumulate.
func (l *Limiter) Forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, id)
}

// Run sweeps expired entries until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.clock.Now().Add(-l.grace)
	removed := 0
	for id, e := range l.entries {
		if e.windowEnd.Before(cutoff) {
			delete(l.entries, id)
			removed++
		}
	}
	if removed > 0 {
		l.logger.Debug("swept stale limiter entries", zap.Int("removed", removed))
	}
}

// Size reports the number of tracked connections.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
