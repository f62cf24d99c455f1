package limiter

import (
	"context"
	"sync"
	"time"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/metrics"
	"github.com/nanjiek/lockgate/internal/types"
)

const defaultSweepInterval = time.Minute

type windowEntry struct {
	count   int64
	resetAt time.Time
}

// FixedWindow is an in-process fixed-window counter table.
// Expired entries are swept opportunistically from IsLimited at most once
// per sweep interval; no background goroutine is started.
type FixedWindow struct {
	mu         sync.Mutex
	entries    map[string]*windowEntry
	sweepEvery time.Duration
	lastSweep  time.Time
	now        func() time.Time
}

type FixedWindowOption func(*FixedWindow)

// WithSweepInterval sets the minimum time between two sweeps.
func WithSweepInterval(d time.Duration) FixedWindowOption {
	return func(f *FixedWindow) {
		if d > 0 {
			f.sweepEvery = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) FixedWindowOption {
	return func(f *FixedWindow) {
		if now != nil {
			f.now = now
		}
	}
}

func NewFixedWindow(opts ...FixedWindowOption) *FixedWindow {
	f := &FixedWindow{
		entries:    make(map[string]*windowEntry),
		sweepEvery: defaultSweepInterval,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.lastSweep = f.now()
	return f
}

// IsLimited counts one hit for key and reports whether it exceeds limit.
// The (limit+1)-th hit inside a window is the first limited one.
func (f *FixedWindow) IsLimited(key string, limit int64, window time.Duration) bool {
	limited, _, _ := f.hit(key, limit, window, f.now())
	return limited
}

// IsLimitedAt is IsLimited with an explicit clock reading.
func (f *FixedWindow) IsLimitedAt(key string, limit int64, window time.Duration, now time.Time) bool {
	limited, _, _ := f.hit(key, limit, window, now)
	return limited
}

func (f *FixedWindow) hit(key string, limit int64, window time.Duration, now time.Time) (bool, int64, time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if now.Sub(f.lastSweep) >= f.sweepEvery {
		f.sweepLocked(now)
	}

	e, ok := f.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &windowEntry{count: 1, resetAt: now.Add(window)}
		f.entries[key] = e
		return false, e.count, e.resetAt
	}
	e.count++
	return e.count > limit, e.count, e.resetAt
}

// Allow implements Limiter. It never returns an error.
func (f *FixedWindow) Allow(_ context.Context, class string, rc config.RouteClass, caller string, now time.Time) (types.Decision, error) {
	window := time.Duration(rc.WindowMs) * time.Millisecond
	limited, count, resetAt := f.hit(class+":"+caller, rc.Limit, window, now)

	remaining := rc.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	if limited {
		return types.Decision{
			Allowed:      false,
			Remaining:    0,
			RetryAfterMs: retryAfterMs(resetAt.Sub(now)),
			Reason:       "rate_limited",
		}, nil
	}
	return types.Decision{Allowed: true, Remaining: remaining, Reason: "allowed"}, nil
}

// Sweep removes every entry whose window has expired.
func (f *FixedWindow) Sweep() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweepLocked(f.now())
}

func (f *FixedWindow) sweepLocked(now time.Time) int {
	removed := 0
	for k, e := range f.entries {
		if !now.Before(e.resetAt) {
			delete(f.entries, k)
			removed++
		}
	}
	f.lastSweep = now
	metrics.SetLimiterEntries(len(f.entries))
	return removed
}

// Len returns the number of live entries, expired or not.
func (f *FixedWindow) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Close drops all counters.
func (f *FixedWindow) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make(map[string]*windowEntry)
	metrics.SetLimiterEntries(0)
	return nil
}

func retryAfterMs(d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}
