package limiter

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestFixedWindowLimitBoundary(t *testing.T) {
	tests := []struct {
		name   string
		limit  int64
		window time.Duration
	}{
		{"album", 5, 60 * time.Second},
		{"api", 20, 60 * time.Second},
		{"burst", 3, 10 * time.Second},
		{"single", 1, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			fw := NewFixedWindow(WithClock(clock.Now))

			for i := int64(1); i <= tt.limit; i++ {
				if fw.IsLimited("k", tt.limit, tt.window) {
					t.Fatalf("call %d limited, want admitted", i)
				}
			}
			if !fw.IsLimited("k", tt.limit, tt.window) {
				t.Fatalf("call %d admitted, want limited", tt.limit+1)
			}

			clock.Advance(tt.window)
			for i := int64(1); i <= tt.limit; i++ {
				if fw.IsLimited("k", tt.limit, tt.window) {
					t.Fatalf("after reset call %d limited", i)
				}
			}
			if !fw.IsLimited("k", tt.limit, tt.window) {
				t.Fatal("limit not enforced after reset")
			}
		})
	}
}

func TestFixedWindowKeysAreIndependent(t *testing.T) {
	fw := NewFixedWindow()
	for i := 0; i < 3; i++ {
		fw.IsLimited("a", 3, time.Minute)
	}
	if !fw.IsLimited("a", 3, time.Minute) {
		t.Fatal("a should be limited")
	}
	if fw.IsLimited("b", 3, time.Minute) {
		t.Fatal("b shares a's budget")
	}
}

func TestFixedWindowBoundaryBurst(t *testing.T) {
	clock := newFakeClock()
	fw := NewFixedWindow(WithClock(clock.Now))
	window := 60 * time.Second

	// window opens at t0
	fw.IsLimited("k", 5, window)
	clock.Advance(59 * time.Second)

	admitted := 0
	for i := 0; i < 4; i++ {
		if !fw.IsLimited("k", 5, window) {
			admitted++
		}
	}
	clock.Advance(time.Second)
	for i := 0; i < 5; i++ {
		if !fw.IsLimited("k", 5, window) {
			admitted++
		}
	}
	// nine hits inside one second: the known fixed-window boundary burst
	if admitted != 9 {
		t.Fatalf("admitted = %d, want 9", admitted)
	}
}

func TestFixedWindowOpportunisticSweep(t *testing.T) {
	clock := newFakeClock()
	fw := NewFixedWindow(WithClock(clock.Now), WithSweepInterval(time.Minute))

	for i := 0; i < 100; i++ {
		fw.IsLimited(fmt.Sprintf("ip-%d", i), 5, 10*time.Second)
	}
	if fw.Len() != 100 {
		t.Fatalf("Len = %d", fw.Len())
	}

	clock.Advance(30 * time.Second)
	fw.IsLimited("fresh", 5, 10*time.Second)
	if fw.Len() != 101 {
		t.Fatalf("swept before interval elapsed, Len = %d", fw.Len())
	}

	clock.Advance(31 * time.Second)
	fw.IsLimited("trigger", 5, 10*time.Second)
	if fw.Len() != 1 {
		t.Fatalf("after sweep Len = %d, want 1", fw.Len())
	}
}

func TestFixedWindowSweepAndClose(t *testing.T) {
	clock := newFakeClock()
	fw := NewFixedWindow(WithClock(clock.Now))
	fw.IsLimited("short", 5, time.Second)
	fw.IsLimited("long", 5, time.Hour)

	clock.Advance(2 * time.Second)
	if n := fw.Sweep(); n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if fw.Len() != 0 {
		t.Fatalf("Len after Close = %d", fw.Len())
	}
}

func TestFixedWindowAllowDecision(t *testing.T) {
	clock := newFakeClock()
	fw := NewFixedWindow(WithClock(clock.Now))
	rc := config.RouteClass{Limit: 2, WindowMs: 10_000}
	ctx := context.Background()

	dec, err := fw.Allow(ctx, "burst", rc, "1.2.3.4", clock.Now())
	if err != nil || !dec.Allowed || dec.Remaining != 1 {
		t.Fatalf("first = %+v, %v", dec, err)
	}
	fw.Allow(ctx, "burst", rc, "1.2.3.4", clock.Now())

	clock.Advance(4 * time.Second)
	dec, _ = fw.Allow(ctx, "burst", rc, "1.2.3.4", clock.Now())
	if dec.Allowed {
		t.Fatal("third call admitted")
	}
	if dec.RetryAfterMs != 6000 {
		t.Fatalf("RetryAfterMs = %d, want 6000", dec.RetryAfterMs)
	}

	dec, _ = fw.Allow(ctx, "api", rc, "1.2.3.4", clock.Now())
	if !dec.Allowed {
		t.Fatal("classes must not share budgets")
	}
}

func TestFixedWindowConcurrentExact(t *testing.T) {
	fw := NewFixedWindow()
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !fw.IsLimited("shared", 20, time.Minute) {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if admitted != 20 {
		t.Fatalf("admitted = %d, want 20", admitted)
	}
}
