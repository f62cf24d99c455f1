package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

import (
	"github.com/redis/go-redis/v9"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/repo"
	"github.com/nanjiek/lockgate/internal/types"
	"github.com/nanjiek/lockgate/internal/util"
)

// ScriptRunner runs a Lua script; *repo.RedisRepo satisfies it.
type ScriptRunner interface {
	RunScript(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) ([]interface{}, error)
}

// KeyFunc maps a class and caller to a storage key.
type KeyFunc func(class, caller string) string

// RedisFixedWindow shares fixed-window counters across instances.
type RedisFixedWindow struct {
	runner ScriptRunner
	keyOf  KeyFunc
}

func NewRedisFixedWindow(rdb *repo.RedisRepo) *RedisFixedWindow {
	if rdb == nil {
		panic("limiter: nil redis repo")
	}
	return &RedisFixedWindow{runner: rdb, keyOf: rdb.KeyFixedWindow}
}

func (r *RedisFixedWindow) Allow(ctx context.Context, class string, rc config.RouteClass, caller string, _ time.Time) (types.Decision, error) {
	if err := validate(rc, caller); err != nil {
		return types.Decision{Allowed: false, Reason: "invalid_class", Err: err}, err
	}

	res, err := r.runner.RunScript(ctx, repo.ScriptFixedWindow, []string{r.keyOf(class, caller)}, rc.WindowMs)
	if err != nil {
		return types.Decision{Allowed: false, Reason: "limiter_eval_failed", Err: err}, err
	}
	if len(res) < 2 {
		err = errors.New("invalid script response")
		return types.Decision{Allowed: false, Reason: "invalid_script_response", Err: err}, err
	}

	count := util.ToInt64(res[0])
	ttl := util.ToInt64(res[1])
	if count > rc.Limit {
		if ttl < 1 {
			ttl = 1
		}
		return types.Decision{Allowed: false, RetryAfterMs: ttl, Reason: "rate_limited"}, nil
	}
	return types.Decision{Allowed: true, Remaining: rc.Limit - count, Reason: "allowed"}, nil
}

// RedisSlidingWindow keeps a per-key log of hit timestamps in a sorted set.
// It has no boundary burst but stores up to limit members per key.
type RedisSlidingWindow struct {
	runner ScriptRunner
	keyOf  KeyFunc
	seq    atomic.Uint64
}

func NewRedisSlidingWindow(rdb *repo.RedisRepo) *RedisSlidingWindow {
	if rdb == nil {
		panic("limiter: nil redis repo")
	}
	return &RedisSlidingWindow{runner: rdb, keyOf: rdb.KeySlidingWindow}
}

func (s *RedisSlidingWindow) Allow(ctx context.Context, class string, rc config.RouteClass, caller string, now time.Time) (types.Decision, error) {
	if err := validate(rc, caller); err != nil {
		return types.Decision{Allowed: false, Reason: "invalid_class", Err: err}, err
	}

	member := fmt.Sprintf("%d-%d", now.UnixNano(), s.seq.Add(1))
	res, err := s.runner.RunScript(ctx, repo.ScriptSliding, []string{s.keyOf(class, caller)},
		now.UnixMilli(), rc.WindowMs, rc.Limit, member)
	if err != nil {
		return types.Decision{Allowed: false, Reason: "limiter_eval_failed", Err: err}, err
	}
	if len(res) < 2 {
		err = errors.New("invalid script response")
		return types.Decision{Allowed: false, Reason: "invalid_script_response", Err: err}, err
	}

	allowed := util.ToInt64(res[0]) == 1
	count := util.ToInt64(res[1])
	if !allowed {
		retry := rc.WindowMs
		if len(res) > 2 {
			retry = util.ToInt64(res[2])
		}
		if retry < 1 {
			retry = 1
		}
		return types.Decision{Allowed: false, RetryAfterMs: retry, Reason: "rate_limited"}, nil
	}
	remaining := rc.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return types.Decision{Allowed: true, Remaining: remaining, Reason: "allowed"}, nil
}

func validate(rc config.RouteClass, caller string) error {
	if rc.WindowMs <= 0 || rc.Limit <= 0 {
		return errors.New("invalid route class")
	}
	if caller == "" {
		return errors.New("empty caller key")
	}
	return nil
}
