package limiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
)

func TestGuardAlbumSixthRequestLimited(t *testing.T) {
	clock := newFakeClock()
	fw := NewFixedWindow(WithClock(clock.Now))
	g := NewGuard(config.DefaultClasses(), fw, FailOpen, WithGuardClock(clock.Now))

	for i := 1; i <= 5; i++ {
		if dec := g.Check(context.Background(), config.ClassAlbum, "9.9.9.9"); !dec.Allowed {
			t.Fatalf("request %d denied: %+v", i, dec)
		}
	}
	dec := g.Check(context.Background(), config.ClassAlbum, "9.9.9.9")
	if dec.Allowed || dec.Reason != "rate_limited" {
		t.Fatalf("6th request = %+v", dec)
	}
	if dec.RetryAfterMs <= 0 || dec.RetryAfterMs > 60_000 {
		t.Fatalf("RetryAfterMs = %d", dec.RetryAfterMs)
	}
	if dec := g.Check(context.Background(), config.ClassAPI, "9.9.9.9"); !dec.Allowed {
		t.Fatal("api class should have its own budget")
	}
}

func TestGuardFailPolicy(t *testing.T) {
	backendErr := errors.New("redis down")
	tests := []struct {
		name        string
		policy      string
		wantAllowed bool
		wantReason  string
	}{
		{"fail open", "fail-open", true, "fail_open"},
		{"fail closed", "fail-closed", false, "fail_closed"},
		{"unknown defaults closed", "whatever", false, "fail_closed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuard(config.DefaultClasses(), &mockLimiter{err: backendErr}, tt.policy)
			dec := g.Check(context.Background(), config.ClassAPI, "c")
			if dec.Allowed != tt.wantAllowed || dec.Reason != tt.wantReason {
				t.Fatalf("decision = %+v", dec)
			}
			if !errors.Is(dec.Err, backendErr) {
				t.Fatalf("Err = %v", dec.Err)
			}
		})
	}
}

func TestGuardUnknownClass(t *testing.T) {
	g := NewGuard(config.DefaultClasses(), &mockLimiter{allowed: true}, FailClosed)
	dec := g.Check(context.Background(), "nope", "c")
	if dec.Allowed || !errors.Is(dec.Err, ErrUnknownClass) {
		t.Fatalf("decision = %+v", dec)
	}
}

func TestGuardDenyHook(t *testing.T) {
	var hits []string
	hook := func(_ context.Context, class, caller string) {
		hits = append(hits, class+"/"+caller)
	}
	g := NewGuard(config.DefaultClasses(), &mockLimiter{allowed: false}, FailOpen,
		WithDenyHook(hook), WithGuardClock(func() time.Time { return time.Unix(0, 0) }))

	g.Check(context.Background(), config.ClassBurst, "1.1.1.1")
	if len(hits) != 1 || hits[0] != "burst/1.1.1.1" {
		t.Fatalf("hook calls = %v", hits)
	}
}
