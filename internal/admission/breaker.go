package admission

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

import (
	sentinel "github.com/alibaba/sentinel-golang/api"
	"github.com/alibaba/sentinel-golang/core/base"
	"github.com/alibaba/sentinel-golang/core/circuitbreaker"
	sentinelcfg "github.com/alibaba/sentinel-golang/core/config"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/store"
)

// Sentinel resources guarded around the store.
const (
	ResourceFetchAlbum    = "store.fetch_album"
	ResourceIncrementView = "store.increment_view"
)

// ErrBreakerOpen is returned while the breaker for a resource is open.
var ErrBreakerOpen = errors.New("admission: circuit breaker open")

var (
	sentinelOnce sync.Once
	sentinelErr  error
)

func initSentinel() error {
	sentinelOnce.Do(func() {
		conf := sentinelcfg.NewDefaultConfig()
		conf.Sentinel.App.Name = "lockgate"
		conf.Sentinel.Log.Dir = filepath.Join(os.TempDir(), "lockgate-sentinel")
		sentinelErr = sentinel.InitWithConfig(conf)
	})
	return sentinelErr
}

// Breaker wraps store calls in Sentinel error-count circuit breakers.
// A nil or disabled Breaker runs calls directly.
type Breaker struct {
	enabled bool
}

// NewBreaker loads one error-count rule per resource.
func NewBreaker(cfg config.BreakerCfg, resources ...string) (*Breaker, error) {
	if !cfg.Enabled {
		return &Breaker{}, nil
	}
	if err := initSentinel(); err != nil {
		return nil, fmt.Errorf("init sentinel: %w", err)
	}
	rules := make([]*circuitbreaker.Rule, 0, len(resources))
	for _, res := range resources {
		rules = append(rules, &circuitbreaker.Rule{
			Resource:         res,
			Strategy:         circuitbreaker.ErrorCount,
			RetryTimeoutMs:   cfg.RetryTimeoutMs,
			MinRequestAmount: cfg.MinRequestAmount,
			StatIntervalMs:   cfg.StatIntervalMs,
			Threshold:        cfg.Threshold,
		})
	}
	if _, err := circuitbreaker.LoadRules(rules); err != nil {
		return nil, fmt.Errorf("load breaker rules: %w", err)
	}
	return &Breaker{enabled: true}, nil
}

// Do runs fn under the breaker for resource. ErrNotFound is an expected
// outcome and does not count as a failure.
func (b *Breaker) Do(ctx context.Context, resource string, fn func(context.Context) error) error {
	if b == nil || !b.enabled {
		return fn(ctx)
	}
	e, blk := sentinel.Entry(resource, sentinel.WithTrafficType(base.Inbound))
	if blk != nil {
		return fmt.Errorf("%w: %s", ErrBreakerOpen, resource)
	}
	defer e.Exit()

	err := fn(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		sentinel.TraceError(e, err)
	}
	return err
}
