package rules

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/rules/source"
)

// PolicyTarget receives fetched bot policies; *botguard.Classifier satisfies it.
type PolicyTarget interface {
	Replace(p config.BotPolicy) error
	DenyAll()
}

// PollerConfig controls the pull loop behavior.
type PollerConfig struct {
	Interval   time.Duration
	FailPolicy string // fail-open | fail-closed
}

// Poller periodically pulls bot policies from an external source (e.g., Nacos).
type Poller struct {
	source     source.PolicySource
	target     PolicyTarget
	interval   time.Duration
	failPolicy string
	lastVer    string
	log        *slog.Logger
	mu         sync.Mutex
}

func NewPoller(src source.PolicySource, target PolicyTarget, cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		source:     src,
		target:     target,
		interval:   interval,
		failPolicy: strings.ToLower(strings.TrimSpace(cfg.FailPolicy)),
		log:        slog.Default(),
	}
}

// SyncOnce pulls the policy once and applies it.
func (p *Poller) SyncOnce(ctx context.Context) error {
	_, err := p.pull(ctx)
	return err
}

// Start runs the polling loop until ctx is done.
func (p *Poller) Start(ctx context.Context) {
	if _, err := p.pull(ctx); err != nil {
		p.log.Warn("nacos pull failed on startup", "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.pull(ctx); err != nil {
				p.log.Warn("nacos pull failed", "error", err)
			}
		}
	}
}

func (p *Poller) pull(ctx context.Context) (bool, error) {
	payload, err := p.source.Fetch(ctx)
	if err != nil {
		p.handleFailure()
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if payload.Version != "" && payload.Version == p.lastVer {
		return false, nil
	}

	// a partial policy only overrides the lists it names
	if err := p.target.Replace(payload.Policy.WithDefaults()); err != nil {
		return false, err
	}
	p.lastVer = payload.Version
	p.log.Info("bot policy updated", "version", payload.Version)
	return true, nil
}

func (p *Poller) handleFailure() {
	if p.failPolicy == "fail-closed" {
		p.mu.Lock()
		p.lastVer = ""
		p.mu.Unlock()
		p.target.DenyAll()
	}
}
