package admission

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

import (
	"github.com/nanjiek/lockgate/internal/botguard"
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/limiter"
	"github.com/nanjiek/lockgate/internal/metrics"
	"github.com/nanjiek/lockgate/internal/store"
	"github.com/nanjiek/lockgate/internal/types"
)

// Reason is the internal cause of an admission outcome. It is logged and
// counted but never shown to the client.
type Reason string

const (
	ReasonOK          Reason = "ok"
	ReasonInvalidID   Reason = "invalid-id"
	ReasonBlockedIP   Reason = "blocked-ip"
	ReasonBot         Reason = "bot-detected"
	ReasonRateLimited Reason = "rate-limited"
	ReasonNotFound    Reason = "not-found"
)

// unknownCaller keys requests whose address could not be resolved. They
// share one album budget.
const unknownCaller = "unknown"

// Request carries the inputs of one public album read.
type Request struct {
	Token     string
	CallerIP  string
	UserAgent string
	Referer   string
	Header    http.Header
}

// AccessDecision is the outcome of the gate for one request.
type AccessDecision struct {
	Admit      bool
	Reason     Reason
	ID         int64         // decoded record id, set once the token decoded
	RetryAfter time.Duration // rate-limited only
	BotScore   float64
	Detail     string // rule or list entry behind the reason, for logs
}

// Status maps the decision to an HTTP status. Undecodable tokens and missing
// records share 404.
func (d AccessDecision) Status() int {
	switch d.Reason {
	case ReasonOK:
		return http.StatusOK
	case ReasonBot, ReasonBlockedIP:
		return http.StatusForbidden
	case ReasonRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusNotFound
	}
}

type Decoder interface {
	Decode(token string) (int64, bool)
}

type BotClassifier interface {
	Classify(s botguard.Signals) botguard.Result
	Score(s botguard.Signals) float64
}

type RateGuard interface {
	Check(ctx context.Context, class, caller string) types.Decision
}

type IPChecker interface {
	CheckIP(ctx context.Context, ip string) (types.Decision, bool)
}

// AlbumStore is the record access the pipeline needs.
type AlbumStore interface {
	FetchRecordWithChildren(ctx context.Context, id int64) (*store.Album, error)
}

// Pipeline gates the public album endpoint: decode, ip list, bot check,
// rate limit, then the record lookup. Cheap checks run first so rejected
// traffic never reaches the store.
type Pipeline struct {
	codec   Decoder
	bots    BotClassifier
	limiter RateGuard
	albums  AlbumStore

	ipList     IPChecker
	views      *ViewCounter
	breaker    *Breaker
	failPolicy string
	logger     *slog.Logger
}

type Option func(*Pipeline)

// WithIPList enables blocklist checks before the bot heuristic.
func WithIPList(c *IPListCache) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.ipList = c
		}
	}
}

// WithViewCounter enables the asynchronous scan counter.
func WithViewCounter(v *ViewCounter) Option {
	return func(p *Pipeline) { p.views = v }
}

func WithBreaker(b *Breaker) Option {
	return func(p *Pipeline) { p.breaker = b }
}

// WithFailPolicy decides what an ip list backend error does.
func WithFailPolicy(policy string) Option {
	return func(p *Pipeline) { p.failPolicy = policy }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func New(codec Decoder, bots BotClassifier, lim RateGuard, albums AlbumStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		codec:      codec,
		bots:       bots,
		limiter:    lim,
		albums:     albums,
		failPolicy: limiter.FailClosed,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EvaluateAlbumAccess runs the checks that need no storage I/O. It never
// returns an error; every outcome is a decision.
func (p *Pipeline) EvaluateAlbumAccess(ctx context.Context, req Request) AccessDecision {
	id, ok := p.codec.Decode(req.Token)
	if !ok {
		return p.reject(req, AccessDecision{Reason: ReasonInvalidID})
	}

	caller := req.CallerIP
	if caller == "" {
		caller = unknownCaller
	}

	if p.ipList != nil && req.CallerIP != "" {
		if dec, handled := p.ipList.CheckIP(ctx, req.CallerIP); handled && !dec.Allowed {
			if dec.Err == nil || p.failPolicy != limiter.FailOpen {
				return p.reject(req, AccessDecision{ID: id, Reason: ReasonBlockedIP, Detail: dec.Reason})
			}
			p.logger.Warn("ip list unavailable, continuing", "ip", req.CallerIP, "err", dec.Err)
		}
	}

	sig := botguard.Signals{UserAgent: req.UserAgent, Referer: req.Referer, Header: req.Header}
	score := p.bots.Score(sig)
	metrics.ObserveBotScore(score)
	if res := p.bots.Classify(sig); res.Bot {
		return p.reject(req, AccessDecision{ID: id, Reason: ReasonBot, BotScore: score, Detail: res.Rule})
	}

	if dec := p.limiter.Check(ctx, config.ClassAlbum, caller); !dec.Allowed {
		return p.reject(req, AccessDecision{
			ID:         id,
			Reason:     ReasonRateLimited,
			BotScore:   score,
			RetryAfter: time.Duration(dec.RetryAfterMs) * time.Millisecond,
			Detail:     dec.Reason,
		})
	}

	return AccessDecision{Admit: true, Reason: ReasonOK, ID: id, BotScore: score}
}

// FetchAlbum runs the gate, loads the album and queues the scan increment.
// A store failure is returned as an error; a missing or private record is a
// not-found decision.
func (p *Pipeline) FetchAlbum(ctx context.Context, req Request) (AccessDecision, *store.Album, error) {
	dec := p.EvaluateAlbumAccess(ctx, req)
	if !dec.Admit {
		return dec, nil, nil
	}

	var album *store.Album
	err := p.breaker.Do(ctx, ResourceFetchAlbum, func(ctx context.Context) error {
		var err error
		album, err = p.albums.FetchRecordWithChildren(ctx, dec.ID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		dec.Admit = false
		dec.Reason = ReasonNotFound
		return p.reject(req, dec), nil, nil
	}
	if err != nil {
		p.logger.Error("album fetch failed", "id", dec.ID, "err", err)
		return AccessDecision{ID: dec.ID}, nil, err
	}

	metrics.RecordAdmission(string(ReasonOK))
	if p.views != nil {
		p.views.Submit(dec.ID)
	}
	return dec, album, nil
}

func (p *Pipeline) reject(req Request, d AccessDecision) AccessDecision {
	d.Admit = false
	metrics.RecordAdmission(string(d.Reason))
	p.logger.Info("album access rejected",
		"reason", d.Reason,
		"detail", d.Detail,
		"id", d.ID,
		"ip", req.CallerIP,
		"ua", req.UserAgent,
		"bot_score", d.BotScore,
	)
	return d
}

// GuardedIncrement wraps an increment in the breaker for ResourceIncrementView.
func GuardedIncrement(b *Breaker, inc IncrementFunc) IncrementFunc {
	return func(ctx context.Context, id int64) error {
		return b.Do(ctx, ResourceIncrementView, func(ctx context.Context) error {
			return inc(ctx, id)
		})
	}
}
