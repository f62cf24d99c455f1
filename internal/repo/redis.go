package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

import (
	"github.com/redis/go-redis/v9"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/util"
)

// Key templates. The {class} hash tag keeps one class on one cluster slot.
const (
	keyFixedTmpl   = "%s:rl:fw:{%s}:%s"
	keySlidingTmpl = "%s:rl:sw:{%s}:%s"
	keyBlacklist   = "%s:blacklist:ip"
	keyWhitelist   = "%s:whitelist:ip"
	keyHotIPTmpl   = "%s:hot:ip:%s"
	keyTmpBlkTmpl  = "%s:blacklist:ip:tmp:%s"

	// callers longer than this are stored under their FNV-64 hash
	maxCallerKeyLen = 64
)

var incrExpireScript = redis.NewScript(`
	local cnt = redis.call('INCR', KEYS[1])
	if cnt == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return cnt
`)

type RedisRepo struct {
	Prefix         string
	UpdateChannel  string
	Cli            redis.UniversalClient
	logger         *slog.Logger
	defaultTimeout time.Duration
}

// Option customises a RedisRepo.
type Option func(*RedisRepo)

func WithDefaultTimeout(d time.Duration) Option {
	return func(r *RedisRepo) { r.defaultTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *RedisRepo) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRedis connects to a single node or a cluster (more than one address)
// and pings it once.
func NewRedis(cfg config.RedisCfg, opts ...Option) (*RedisRepo, error) {
	addrs := normalizeAddrs(cfg)
	if len(addrs) == 0 {
		return nil, errors.New("no redis addresses configured")
	}

	r := &RedisRepo{
		Prefix:         cfg.Prefix,
		UpdateChannel:  cfg.UpdatesChannel,
		logger:         slog.Default(),
		defaultTimeout: durationOrDefault(cfg.CommandTimeoutMs, 100),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.Cli = redis.NewUniversalClient(buildUniversalOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Cli.Ping(ctx).Err(); err != nil {
		r.logger.Error("redis ping failed", "addrs", addrs, "err", err)
		_ = r.Cli.Close()
		return nil, fmt.Errorf("redis connect failed: %w", err)
	}
	return r, nil
}

func (r *RedisRepo) withTimeout(ctx context.Context, opTimeout time.Duration) (context.Context, context.CancelFunc) {
	if opTimeout == 0 {
		opTimeout = r.defaultTimeout
	}
	return context.WithTimeout(ctx, opTimeout)
}

func (r *RedisRepo) KeyFixedWindow(class, caller string) string {
	return fmt.Sprintf(keyFixedTmpl, r.Prefix, class, callerKey(caller))
}

func (r *RedisRepo) KeySlidingWindow(class, caller string) string {
	return fmt.Sprintf(keySlidingTmpl, r.Prefix, class, callerKey(caller))
}

func callerKey(caller string) string {
	if len(caller) <= maxCallerKeyLen {
		return caller
	}
	return "h:" + util.FNV64(caller)
}

func (r *RedisRepo) KeyBlacklistIP() string {
	return fmt.Sprintf(keyBlacklist, r.Prefix)
}

func (r *RedisRepo) KeyWhitelistIP() string {
	return fmt.Sprintf(keyWhitelist, r.Prefix)
}

func (r *RedisRepo) KeyHotIP(ip string) string {
	return fmt.Sprintf(keyHotIPTmpl, r.Prefix, ip)
}

func (r *RedisRepo) KeyTempBlacklistIP(ip string) string {
	return fmt.Sprintf(keyTmpBlkTmpl, r.Prefix, ip)
}

func (r *RedisRepo) IsInSet(parentCtx context.Context, setKey, member string) (bool, error) {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()
	return r.Cli.SIsMember(ctx, setKey, member).Result()
}

func (r *RedisRepo) AddToSet(parentCtx context.Context, setKey, member string) error {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()
	return r.Cli.SAdd(ctx, setKey, member).Err()
}

func (r *RedisRepo) RemoveFromSet(parentCtx context.Context, setKey, member string) error {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()
	return r.Cli.SRem(ctx, setKey, member).Err()
}

// IncrAndExpire increments key and sets its TTL on the first increment only.
func (r *RedisRepo) IncrAndExpire(parentCtx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()
	ttlMs := ttl.Milliseconds()
	if ttlMs <= 0 {
		ttlMs = 1
	}
	res, err := incrExpireScript.Run(ctx, r.Cli, []string{key}, ttlMs).Int64()
	if err != nil {
		return 0, fmt.Errorf("lua script execution failed for key %s: %w", key, err)
	}
	return res, nil
}

// SetTempBlacklistIP stores a temporary blacklist entry with TTL.
func (r *RedisRepo) SetTempBlacklistIP(parentCtx context.Context, ip string, ttl time.Duration) error {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()
	if ttl <= 0 {
		ttl = time.Minute
	}
	return r.Cli.Set(ctx, r.KeyTempBlacklistIP(ip), 1, ttl).Err()
}

// IsTempBlacklisted checks whether a temporary blacklist entry exists.
func (r *RedisRepo) IsTempBlacklisted(parentCtx context.Context, ip string) (bool, error) {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()
	res, err := r.Cli.Exists(ctx, r.KeyTempBlacklistIP(ip)).Result()
	if err != nil {
		return false, err
	}
	return res > 0, nil
}

// ClearTempBlacklistIP drops a temporary block before its TTL runs out.
func (r *RedisRepo) ClearTempBlacklistIP(parentCtx context.Context, ip string) error {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()
	return r.Cli.Del(ctx, r.KeyTempBlacklistIP(ip), r.KeyHotIP(ip)).Err()
}

// Publish sends msg on channel.
func (r *RedisRepo) Publish(parentCtx context.Context, channel, msg string) error {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()
	if err := r.Cli.Publish(ctx, channel, msg).Err(); err != nil {
		return fmt.Errorf("publish on %s failed: %w", channel, err)
	}
	return nil
}

// RunScript runs a preloaded script (EVALSHA with EVAL fallback) and
// normalises the reply to a slice.
func (r *RedisRepo) RunScript(parentCtx context.Context, script *redis.Script, keys []string, args ...interface{}) ([]interface{}, error) {
	ctx, cancel := r.withTimeout(parentCtx, 2*r.defaultTimeout)
	defer cancel()
	res, err := script.Run(ctx, r.Cli, keys, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("run script failed: %w", err)
	}
	if val, ok := res.([]interface{}); ok {
		return val, nil
	}
	return []interface{}{res}, nil
}

func (r *RedisRepo) Ping(parentCtx context.Context) error {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()
	return r.Cli.Ping(ctx).Err()
}

func (r *RedisRepo) Close() error {
	return r.Cli.Close()
}

func normalizeAddrs(cfg config.RedisCfg) []string {
	if len(cfg.Addrs) > 0 {
		return cfg.Addrs
	}
	if cfg.Addr == "" {
		return nil
	}
	parts := strings.Split(cfg.Addr, ",")
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func buildUniversalOptions(cfg config.RedisCfg) *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:           normalizeAddrs(cfg),
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        atLeast(cfg.PoolSize, 20),
		MinIdleConns:    atLeast(cfg.MinIdleConns, 2),
		DialTimeout:     durationOrDefault(cfg.DialTimeoutMs, 800),
		ReadTimeout:     durationOrDefault(cfg.ReadTimeoutMs, 800),
		WriteTimeout:    durationOrDefault(cfg.WriteTimeoutMs, 800),
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeSec) * time.Second,
		MaxRetries:      atLeast(cfg.MaxRetries, 2),
	}
}

func atLeast(val, def int) int {
	if val > def {
		return val
	}
	return def
}

func durationOrDefault(ms int, defMs int) time.Duration {
	if ms <= 0 {
		ms = defMs
	}
	return time.Duration(ms) * time.Millisecond
}
