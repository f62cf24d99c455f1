package limiter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/metrics"
	"github.com/nanjiek/lockgate/internal/types"
)

const (
	FailOpen   = "fail-open"
	FailClosed = "fail-closed"
)

var ErrUnknownClass = errors.New("unknown route class")

// DenyHook observes rate-limit rejections, e.g. to track hot callers.
type DenyHook func(ctx context.Context, class, caller string)

// Guard applies a named route class to a caller and resolves backend
// failures with the configured fail policy. Check never returns an error;
// failures are reported through Decision.Err.
type Guard struct {
	classes    map[string]config.RouteClass
	limiter    Limiter
	failPolicy string
	logger     *slog.Logger
	now        func() time.Time
	onDeny     DenyHook
}

type GuardOption func(*Guard)

func WithGuardLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

func WithDenyHook(h DenyHook) GuardOption {
	return func(g *Guard) { g.onDeny = h }
}

func NewGuard(classes map[string]config.RouteClass, lim Limiter, failPolicy string, opts ...GuardOption) *Guard {
	if lim == nil {
		panic("limiter: nil limiter")
	}
	g := &Guard{
		classes:    classes,
		limiter:    lim,
		failPolicy: normalizeFailPolicy(failPolicy),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Class returns the budget of a named class.
func (g *Guard) Class(name string) (config.RouteClass, bool) {
	rc, ok := g.classes[name]
	return rc, ok
}

// Check counts one hit for caller in class.
func (g *Guard) Check(ctx context.Context, class, caller string) types.Decision {
	rc, ok := g.classes[class]
	if !ok {
		return g.onFailure(class, caller, ErrUnknownClass)
	}

	dec, err := g.limiter.Allow(ctx, class, rc, caller, g.now())
	if err != nil {
		return g.onFailure(class, caller, err)
	}
	if !dec.Allowed {
		metrics.RecordRateLimited(class)
		if g.onDeny != nil {
			g.onDeny(ctx, class, caller)
		}
	}
	return dec
}

func (g *Guard) onFailure(class, caller string, err error) types.Decision {
	metrics.RecordLimiterError(class, g.failPolicy)
	if g.failPolicy == FailOpen {
		g.logger.Warn("fail-open due to limiter error", "class", class, "caller", caller, "err", err)
		return types.Decision{Allowed: true, Reason: "fail_open", Err: err}
	}
	g.logger.Error("fail-closed due to limiter error", "class", class, "caller", caller, "err", err)
	return types.Decision{Allowed: false, Reason: "fail_closed", Err: err}
}

func normalizeFailPolicy(policy string) string {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case FailOpen:
		return FailOpen
	default:
		return FailClosed
	}
}
