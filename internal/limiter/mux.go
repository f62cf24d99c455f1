package limiter

import (
	"context"
	"errors"
	"strings"
	"time"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/types"
)

const (
	AlgoFixedWindow   = "fixed_window"
	AlgoSlidingWindow = "sliding_window"
)

// Limiter counts one hit for caller against a route class.
type Limiter interface {
	Allow(ctx context.Context, class string, rc config.RouteClass, caller string, now time.Time) (types.Decision, error)
}

// Mux routes to a limiter by RouteClass.Algo with a default fallback.
type Mux struct {
	defaultAlgo string
	limiters    map[string]Limiter
}

func NewMux(defaultAlgo string, limiters map[string]Limiter) *Mux {
	if len(limiters) == 0 {
		panic("limiter: empty limiter map")
	}
	normalized := make(map[string]Limiter, len(limiters))
	for k, v := range limiters {
		normalized[normalizeAlgo(k)] = v
	}
	if strings.TrimSpace(defaultAlgo) == "" {
		defaultAlgo = AlgoFixedWindow
	}
	return &Mux{
		defaultAlgo: normalizeAlgo(defaultAlgo),
		limiters:    normalized,
	}
}

func (m *Mux) Allow(ctx context.Context, class string, rc config.RouteClass, caller string, now time.Time) (types.Decision, error) {
	algo := normalizeAlgo(rc.Algo)
	if algo == "" {
		algo = m.defaultAlgo
	}
	lim, ok := m.limiters[algo]
	if !ok || lim == nil {
		return types.Decision{Allowed: false, Reason: "unsupported_algorithm"}, errors.New("unsupported algorithm: " + algo)
	}
	return lim.Allow(ctx, class, rc, caller, now)
}

func normalizeAlgo(algo string) string {
	return strings.ToLower(strings.TrimSpace(algo))
}
