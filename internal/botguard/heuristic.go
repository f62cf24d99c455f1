package botguard

import (
	"log/slog"
	"net/http"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/rcu"
)

// Signals are the request attributes the classifier looks at.
type Signals struct {
	UserAgent string
	Referer   string
	Header    http.Header
}

// Result is a classification and the rule that produced it.
type Result struct {
	Bot  bool
	Rule string
}

// Score weights. Negative weights pull recognised clients towards zero.
const (
	weightShortUA        = 0.4
	weightDenyList       = 0.5
	weightAllowList      = -0.6
	weightMobile         = -0.2
	weightDesktop        = -0.1
	weightUnrecognised   = 0.3
	weightNoRequired     = 0.15
	weightNoFetchHeaders = 0.15
	weightForeignReferer = 0.2
)

// Classifier decides whether a request comes from an automated client.
// Its policy can be replaced at runtime without blocking readers.
type Classifier struct {
	snap   *rcu.Snapshot[compiled]
	logger *slog.Logger
}

// New compiles p. Empty lists in p are not defaulted here.
func New(p config.BotPolicy, logger *slog.Logger) (*Classifier, error) {
	c, err := compile(p)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{snap: rcu.NewSnapshot(c), logger: logger}, nil
}

// Classify walks the ordered rules. It never fails; a request no rule
// recognises is a bot.
func (c *Classifier) Classify(s Signals) Result {
	for _, r := range c.snap.Load().rules {
		if !r.Match(s) {
			continue
		}
		for _, sub := range r.Then {
			if sub.Match(s) {
				return Result{Bot: sub.Bot, Rule: r.Name + "/" + sub.Name}
			}
		}
		return Result{Bot: r.Bot, Rule: r.Name}
	}
	return Result{Bot: true, Rule: "no_rule"}
}

func (c *Classifier) IsBot(s Signals) bool {
	return c.Classify(s).Bot
}

// Score is a risk estimate in [0,1] built from the same signals as
// Classify. It is for observability only.
func (c *Classifier) Score(s Signals) float64 {
	p := c.snap.Load()
	if p.denyAll {
		return 1
	}

	score := 0.0
	if uaLength(s.UserAgent) < p.policy.MinUserAgentLength {
		score += weightShortUA
	}
	allowed := matchAny(p.allow, s.UserAgent)
	mobile := matchAny(p.mobile, s.UserAgent)
	desktop := matchAny(p.desktop, s.UserAgent)
	if allowed {
		score += weightAllowList
	}
	if matchAny(p.deny, s.UserAgent) {
		score += weightDenyList
	}
	if mobile {
		score += weightMobile
	}
	if desktop {
		score += weightDesktop
	}
	if !allowed && !mobile && !desktop {
		score += weightUnrecognised
	}
	if missingAny(s.Header, p.policy.RequiredHeaders) {
		score += weightNoRequired
	}
	if missingAll(s.Header, p.policy.FetchMetadataHeaders) {
		score += weightNoFetchHeaders
	}
	if p.foreignReferer(s.Referer) {
		score += weightForeignReferer
	}
	return clamp(score)
}

// Replace compiles p and swaps it in. An invalid pattern rejects the whole
// update and the current policy stays active.
func (c *Classifier) Replace(p config.BotPolicy) error {
	next, err := compile(p)
	if err != nil {
		c.logger.Warn("bot policy rejected", "err", err)
		return err
	}
	c.snap.Replace(next)
	return nil
}

// DenyAll installs a policy that classifies every request as a bot.
func (c *Classifier) DenyAll() {
	c.snap.Replace(denyAll())
	c.logger.Warn("bot policy set to deny all")
}

// Policy returns the active pattern lists.
func (c *Classifier) Policy() config.BotPolicy {
	return c.snap.Load().policy
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
