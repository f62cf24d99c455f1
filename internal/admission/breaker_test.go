package admission

import (
	"context"
	"errors"
	"testing"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/store"
)

func TestBreakerDisabledPassesThrough(t *testing.T) {
	b, err := NewBreaker(config.BreakerCfg{Enabled: false}, ResourceFetchAlbum)
	if err != nil {
		t.Fatalf("new breaker: %v", err)
	}
	boom := errors.New("boom")
	for i := 0; i < 50; i++ {
		if err := b.Do(context.Background(), ResourceFetchAlbum, func(context.Context) error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}

	var nilBreaker *Breaker
	if err := nilBreaker.Do(context.Background(), "x", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("nil breaker: %v", err)
	}
}

func TestBreakerOpensAfterErrors(t *testing.T) {
	const resource = "test.breaker_opens"
	b, err := NewBreaker(config.BreakerCfg{
		Enabled:          true,
		Threshold:        3,
		MinRequestAmount: 1,
		StatIntervalMs:   60_000,
		RetryTimeoutMs:   60_000,
	}, resource)
	if err != nil {
		t.Fatalf("new breaker: %v", err)
	}

	ctx := context.Background()
	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_ = b.Do(ctx, resource, func(context.Context) error { return boom })
	}

	called := false
	err = b.Do(ctx, resource, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("err = %v, want ErrBreakerOpen", err)
	}
	if called {
		t.Fatal("fn ran while breaker open")
	}
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	const resource = "test.breaker_not_found"
	b, err := NewBreaker(config.BreakerCfg{
		Enabled:          true,
		Threshold:        2,
		MinRequestAmount: 1,
		StatIntervalMs:   60_000,
		RetryTimeoutMs:   60_000,
	}, resource)
	if err != nil {
		t.Fatalf("new breaker: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := b.Do(ctx, resource, func(context.Context) error { return store.ErrNotFound }); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
}
