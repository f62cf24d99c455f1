package admission

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/identity"
	"github.com/nanjiek/lockgate/internal/limiter"
	"github.com/nanjiek/lockgate/internal/repo"
	"github.com/nanjiek/lockgate/internal/types"
)

type cacheEntry struct {
	value     bool
	expiresAt int64
}

// IPListCache is a two-level cache for blacklist/whitelist checks: a local
// TTL map in front of Redis. Local entries are dropped whenever any
// instance publishes on the update channel.
type IPListCache struct {
	repo          *repo.RedisRepo
	localCache    sync.Map
	defaultTTL    time.Duration
	hotEnabled    bool
	hotThreshold  int64
	hotWindow     time.Duration
	blacklistTTL  time.Duration
	updateChannel string
	logger        *slog.Logger
	cancel        context.CancelFunc

	isTempBlacklisted func(ctx context.Context, ip string) (bool, error)
	isInSet           func(ctx context.Context, setKey, member string) (bool, error)
	incrAndExpire     func(ctx context.Context, key string, ttl time.Duration) (int64, error)
	setTempBlacklist  func(ctx context.Context, ip string, ttl time.Duration) error
	addToSet          func(ctx context.Context, setKey, member string) error
	removeFromSet     func(ctx context.Context, setKey, member string) error
	clearTemp         func(ctx context.Context, ip string) error
	publish           func(ctx context.Context, channel, msg string) error
}

func NewIPListCache(r *repo.RedisRepo, cfg config.IPListCfg, logger *slog.Logger) *IPListCache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &IPListCache{
		repo:         r,
		defaultTTL:   msOr(cfg.LocalTTLMs, 5*time.Minute),
		hotEnabled:   cfg.HotThreshold > 0,
		hotThreshold: cfg.HotThreshold,
		hotWindow:    msOr(cfg.HotWindowMs, time.Minute),
		blacklistTTL: msOr(cfg.BlacklistTTLMs, 10*time.Minute),
		logger:       logger,
	}
	if r == nil {
		return c
	}
	c.updateChannel = r.UpdateChannel
	if c.updateChannel == "" {
		c.updateChannel = r.Prefix + ":iplist_updates"
	}
	c.isTempBlacklisted = r.IsTempBlacklisted
	c.isInSet = r.IsInSet
	c.incrAndExpire = r.IncrAndExpire
	c.setTempBlacklist = r.SetTempBlacklistIP
	c.addToSet = r.AddToSet
	c.removeFromSet = r.RemoveFromSet
	c.clearTemp = r.ClearTempBlacklistIP
	if r.Cli != nil {
		c.publish = r.Publish
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		go c.watchUpdates(ctx)
	}
	return c
}

// CheckIP checks blacklist/whitelist with L1 cache and Redis as source of truth.
// handled reports a final verdict; a Redis failure is handled as a deny with
// Decision.Err set so the caller can apply its fail policy.
func (c *IPListCache) CheckIP(ctx context.Context, ip string) (types.Decision, bool) {
	if ip == "" {
		return types.Decision{}, false
	}
	if c.repo == nil || c.isTempBlacklisted == nil || c.isInSet == nil {
		err := errors.New("redis accessors not set")
		return types.Decision{Allowed: false, Reason: "iplist_redis_nil", Err: err}, true
	}

	tempKey := ip + ":black_tmp"
	if val, ok := c.get(tempKey); ok && val {
		return types.Decision{Allowed: false, Reason: "ip_in_temp_blacklist_l1"}, true
	}
	inTemp, err := c.isTempBlacklisted(ctx, ip)
	if err != nil {
		c.logger.Error("temp blacklist check failed", "err", err)
		return types.Decision{Allowed: false, Reason: "temp_blacklist_check_failed", Err: err}, true
	}
	if inTemp {
		c.setWithTTL(tempKey, true, c.blacklistTTL)
		return types.Decision{Allowed: false, Reason: "ip_in_temp_blacklist_l2"}, true
	}

	blackKey := ip + ":black"
	if val, ok := c.get(blackKey); ok && val {
		return types.Decision{Allowed: false, Reason: "ip_in_blacklist_l1"}, true
	}
	inBlack, err := c.isInSet(ctx, c.repo.KeyBlacklistIP(), ip)
	if err != nil {
		c.logger.Error("blacklist check failed", "err", err)
		return types.Decision{Allowed: false, Reason: "blacklist_check_failed", Err: err}, true
	}
	if inBlack {
		c.setWithTTL(blackKey, true, c.defaultTTL)
		return types.Decision{Allowed: false, Reason: "ip_in_blacklist_l2"}, true
	}

	whiteKey := ip + ":white"
	if val, ok := c.get(whiteKey); ok {
		if val {
			return types.Decision{Allowed: true, Reason: "ip_in_whitelist_l1"}, true
		}
	} else {
		inWhite, err := c.isInSet(ctx, c.repo.KeyWhitelistIP(), ip)
		if err != nil {
			c.logger.Error("whitelist check failed", "err", err)
			return types.Decision{Allowed: false, Reason: "whitelist_check_failed", Err: err}, true
		}
		c.set(whiteKey, inWhite)
		if inWhite {
			return types.Decision{Allowed: true, Reason: "ip_in_whitelist_l2"}, true
		}
	}

	return types.Decision{}, false
}

// RecordDeny tracks rate limit denials and applies temporary blacklist.
func (c *IPListCache) RecordDeny(ctx context.Context, ip string) {
	if !c.hotEnabled || ip == "" {
		return
	}
	if c.repo == nil || c.incrAndExpire == nil || c.setTempBlacklist == nil {
		return
	}
	if c.hotThreshold <= 0 || c.hotWindow <= 0 || c.blacklistTTL <= 0 {
		return
	}

	tempKey := ip + ":black_tmp"
	if val, ok := c.get(tempKey); ok && val {
		return
	}

	cnt, err := c.incrAndExpire(ctx, c.repo.KeyHotIP(ip), c.hotWindow)
	if err != nil {
		c.logger.Error("hot ip counter failed", "err", err)
		return
	}
	if cnt < c.hotThreshold {
		return
	}

	if err := c.setTempBlacklist(ctx, ip, c.blacklistTTL); err != nil {
		c.logger.Error("set temp blacklist failed", "err", err)
		return
	}
	c.logger.Warn("ip temporarily blocked", "ip", ip, "denials", cnt, "ttl", c.blacklistTTL)
	c.setWithTTL(tempKey, true, c.blacklistTTL)
	c.publishUpdate(ctx)
}

// DenyHook feeds rate-limit rejections of ip callers into RecordDeny.
// Callers keyed by user are ignored.
func (c *IPListCache) DenyHook() limiter.DenyHook {
	return func(ctx context.Context, _ string, caller string) {
		ip := strings.TrimPrefix(caller, identity.KindIP+":")
		if net.ParseIP(ip) == nil {
			return
		}
		c.RecordDeny(ctx, ip)
	}
}

// Block adds ip to the permanent blacklist.
func (c *IPListCache) Block(ctx context.Context, ip string) error {
	if c.repo == nil || c.addToSet == nil {
		return errors.New("redis accessors not set")
	}
	if err := c.addToSet(ctx, c.repo.KeyBlacklistIP(), ip); err != nil {
		return err
	}
	c.clear()
	c.publishUpdate(ctx)
	return nil
}

// Unblock removes ip from the permanent and temporary blacklists.
func (c *IPListCache) Unblock(ctx context.Context, ip string) error {
	if c.repo == nil || c.removeFromSet == nil || c.clearTemp == nil {
		return errors.New("redis accessors not set")
	}
	if err := c.removeFromSet(ctx, c.repo.KeyBlacklistIP(), ip); err != nil {
		return err
	}
	if err := c.clearTemp(ctx, ip); err != nil {
		return err
	}
	c.clear()
	c.publishUpdate(ctx)
	return nil
}

func (c *IPListCache) get(key string) (bool, bool) {
	if val, ok := c.localCache.Load(key); ok {
		entry := val.(cacheEntry)
		if time.Now().UnixNano() <= entry.expiresAt {
			return entry.value, true
		}
		c.localCache.Delete(key)
	}
	return false, false
}

func (c *IPListCache) set(key string, value bool) {
	c.setWithTTL(key, value, c.defaultTTL)
}

func (c *IPListCache) setWithTTL(key string, value bool, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.localCache.Store(key, cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl).UnixNano(),
	})
}

func (c *IPListCache) watchUpdates(ctx context.Context) {
	sub := c.repo.Cli.Subscribe(ctx, c.updateChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				c.logger.Warn("pubsub channel closed, stopping watcher")
				return
			}
			c.logger.Debug("received cache invalidation", "channel", msg.Channel)
			c.clear()
		}
	}
}

func (c *IPListCache) clear() {
	c.localCache.Range(func(key, value any) bool {
		c.localCache.Delete(key)
		return true
	})
}

func (c *IPListCache) publishUpdate(ctx context.Context) {
	if c.publish == nil || c.updateChannel == "" {
		return
	}
	if err := c.publish(ctx, c.updateChannel, "iplist_update"); err != nil {
		c.logger.Warn("ip list publish update failed", "err", err)
	}
}

// Close stops the update watcher.
func (c *IPListCache) Close() {
	if c.cancel != nil {
		c.cancel()
		c.logger.Info("ip list cache closed, watcher stopped")
	}
}

func msOr(ms int64, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
