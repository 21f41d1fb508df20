package ratelimit

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestLimiter(threshold int) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	return NewWithClock(threshold, 10*time.Second, 5*time.Second, clock, zap.NewNop()), clock
}

func TestLimiter_ThresholdWithinWindow(t *testing.T) {
	l, _ := newTestLimiter(100)

	for i := 1; i <= 100; i++ {
		if l.Check("c1") {
			t.Fatalf("call %d should not be limited", i)
		}
	}
	if !l.Check("c1") {
		t.Error("call 101 should be limited")
	}
}

func TestLimiter_WindowReset(t *testing.T) {
	l, clock := newTestLimiter(2)

	l.Check("c1")
	l.Check("c1")
	if !l.Check("c1") {
		t.Fatal("third call inside the window should be limited")
	}

	clock.now = clock.now.Add(time.Second)
	if l.Check("c1") {
		t.Error("first call after the window should not be limited")
	}
	if l.Check("c1") {
		t.Error("count should have reset to 1, second call still under threshold")
	}
}

func TestLimiter_IndependentConnections(t *testing.T) {
	l, _ := newTestLimiter(1)

	l.Check("c1")
	if l.Check("c2") {
		t.Error("a different connection must have its own counter")
	}
}

func TestLimiter_SweepRemovesStaleEntries(t *testing.T) {
	l, clock := newTestLimiter(100)

	l.Check("c1")
	l.Check("c2")
	if l.Size() != 2 {
		t.Fatalf("expected 2 tracked connections, got %d", l.Size())
	}

	// Window end + grace not yet passed: nothing removed.
	clock.now = clock.now.Add(5 * time.Second)
	l.sweep()
	if l.Size() != 2 {
		t.Errorf("entries inside the grace period must survive, got %d", l.Size())
	}

	clock.now = clock.now.Add(2 * time.Second)
	l.sweep()
	if l.Size() != 0 {
		t.Errorf("stale entries should have been swept, got %d", l.Size())
	}
}

func TestLimiter_Forget(t *testing.T) {
	l, _ := newTestLimiter(100)

	l.Check("c1")
	l.Forget("c1")
	if l.Size() != 0 {
		t.Error("forget should drop the connection state")
	}
}
