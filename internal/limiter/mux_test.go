package limiter

import (
	"context"
	"testing"
	"time"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/types"
)

type mockLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (m *mockLimiter) Allow(ctx context.Context, class string, rc config.RouteClass, caller string, now time.Time) (types.Decision, error) {
	m.calls++
	if m.err != nil {
		return types.Decision{Reason: "limiter_eval_failed", Err: m.err}, m.err
	}
	reason := "allowed"
	if !m.allowed {
		reason = "rate_limited"
	}
	return types.Decision{Allowed: m.allowed, Reason: reason}, nil
}

func TestMux_DefaultAlgo(t *testing.T) {
	mux := NewMux("", map[string]Limiter{
		AlgoFixedWindow: &mockLimiter{allowed: true},
	})
	dec, err := mux.Allow(context.Background(), "album", config.RouteClass{}, "k1", time.Now())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allowed, got %+v", dec)
	}
}

func TestMux_RoutesByAlgo(t *testing.T) {
	fixed := &mockLimiter{allowed: true}
	sliding := &mockLimiter{allowed: false}
	mux := NewMux(AlgoFixedWindow, map[string]Limiter{
		AlgoFixedWindow:   fixed,
		AlgoSlidingWindow: sliding,
	})
	dec, _ := mux.Allow(context.Background(), "api", config.RouteClass{Algo: " Sliding_Window "}, "k1", time.Now())
	if dec.Allowed || sliding.calls != 1 || fixed.calls != 0 {
		t.Fatalf("routed wrong: dec=%+v fixed=%d sliding=%d", dec, fixed.calls, sliding.calls)
	}
}

func TestMux_UnsupportedAlgo(t *testing.T) {
	mux := NewMux(AlgoFixedWindow, map[string]Limiter{
		AlgoFixedWindow: &mockLimiter{allowed: true},
	})
	_, err := mux.Allow(context.Background(), "api", config.RouteClass{Algo: "unknown"}, "k1", time.Now())
	if err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}
