package admission

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/metrics"
)

// ErrDropped is passed to the failure hook for increments that never ran.
var ErrDropped = errors.New("view counter: increment dropped")

// IncrementFunc bumps the scan counter of one record.
type IncrementFunc func(ctx context.Context, id int64) error

// ViewCounter applies scan-count increments off the request path.
type ViewCounter struct {
	inc     IncrementFunc
	queue   chan int64
	timeout time.Duration
	logger  *slog.Logger
	onFail  func(id int64, err error)

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type ViewCounterOption func(*ViewCounter)

func WithViewLogger(l *slog.Logger) ViewCounterOption {
	return func(v *ViewCounter) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithFailureHook is called after an increment fails or is dropped.
func WithFailureHook(fn func(id int64, err error)) ViewCounterOption {
	return func(v *ViewCounter) { v.onFail = fn }
}

// NewViewCounter starts cfg.Workers workers draining a queue of cfg.QueueSize.
func NewViewCounter(inc IncrementFunc, cfg config.ViewCounterCfg, opts ...ViewCounterOption) *ViewCounter {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	v := &ViewCounter{
		inc:     inc,
		queue:   make(chan int64, size),
		timeout: msOr(int64(cfg.TimeoutMs), 2*time.Second),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go v.worker()
	}
	return v
}

// Submit enqueues an increment without blocking. It reports false when the
// increment was dropped.
func (v *ViewCounter) Submit(id int64) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		v.drop(id, "closed")
		return false
	}
	select {
	case v.queue <- id:
		return true
	default:
		v.drop(id, "queue full")
		return false
	}
}

// Close stops intake and waits for queued increments to finish.
func (v *ViewCounter) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	close(v.queue)
	v.mu.Unlock()
	v.wg.Wait()
}

func (v *ViewCounter) worker() {
	defer v.wg.Done()
	for id := range v.queue {
		v.apply(id)
	}
}

func (v *ViewCounter) apply(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	if err := v.inc(ctx, id); err != nil {
		metrics.RecordViewCount("failed")
		v.logger.Warn("view counter increment failed", "id", id, "err", err)
		if v.onFail != nil {
			v.onFail(id, err)
		}
		return
	}
	metrics.RecordViewCount("ok")
}

func (v *ViewCounter) drop(id int64, why string) {
	metrics.RecordViewCount("dropped")
	v.logger.Warn("view counter increment dropped", "id", id, "cause", why)
	if v.onFail != nil {
		v.onFail(id, ErrDropped)
	}
}
