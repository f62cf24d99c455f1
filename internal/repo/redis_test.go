package repo

import (
	"strings"
	"testing"
	"time"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
)

func TestNormalizeAddrs(t *testing.T) {
	cfg := config.RedisCfg{Addr: "127.0.0.1:6379, 127.0.0.2:6379"}
	addrs := normalizeAddrs(cfg)
	if len(addrs) != 2 {
		t.Fatalf("expected 2 addrs, got %d", len(addrs))
	}
	if addrs[0] != "127.0.0.1:6379" || addrs[1] != "127.0.0.2:6379" {
		t.Fatalf("unexpected addrs: %#v", addrs)
	}

	cfg = config.RedisCfg{Addr: "ignored:1", Addrs: []string{"a:1", "b:2", "c:3"}}
	if got := normalizeAddrs(cfg); len(got) != 3 {
		t.Fatalf("explicit addrs should win, got %#v", got)
	}
}

func TestKeyTemplates(t *testing.T) {
	r := &RedisRepo{Prefix: "lg"}
	if got := r.KeyFixedWindow("album", "abc"); got != "lg:rl:fw:{album}:abc" {
		t.Fatalf("KeyFixedWindow = %s", got)
	}
	if got := r.KeySlidingWindow("api", "abc"); got != "lg:rl:sw:{api}:abc" {
		t.Fatalf("KeySlidingWindow = %s", got)
	}
	if got := r.KeyBlacklistIP(); got != "lg:blacklist:ip" {
		t.Fatalf("KeyBlacklistIP = %s", got)
	}
	if got := r.KeyTempBlacklistIP("1.2.3.4"); got != "lg:blacklist:ip:tmp:1.2.3.4" {
		t.Fatalf("KeyTempBlacklistIP = %s", got)
	}
	if got := r.KeyHotIP("1.2.3.4"); got != "lg:hot:ip:1.2.3.4" {
		t.Fatalf("KeyHotIP = %s", got)
	}
}

func TestLongCallerKeysAreHashed(t *testing.T) {
	r := &RedisRepo{Prefix: "lg"}
	long := "user:" + strings.Repeat("x", 100)

	got := r.KeyFixedWindow("api", long)
	if strings.Contains(got, long) {
		t.Fatalf("long caller kept verbatim: %s", got)
	}
	if !strings.HasPrefix(got, "lg:rl:fw:{api}:h:") || len(got) != len("lg:rl:fw:{api}:h:")+16 {
		t.Fatalf("KeyFixedWindow = %s", got)
	}
	if got != r.KeyFixedWindow("api", long) {
		t.Fatal("hashed key not stable")
	}
}

func TestUniversalOptionsDefaults(t *testing.T) {
	opts := buildUniversalOptions(config.RedisCfg{Addr: "127.0.0.1:6379"})
	if opts.PoolSize != 20 || opts.MaxRetries != 2 {
		t.Fatalf("pool/retries = %d/%d", opts.PoolSize, opts.MaxRetries)
	}
	if opts.DialTimeout != 800*time.Millisecond {
		t.Fatalf("dial timeout = %v", opts.DialTimeout)
	}
}

func TestNewRedisWithoutAddrs(t *testing.T) {
	if _, err := NewRedis(config.RedisCfg{}); err == nil {
		t.Fatal("expected error when no address is configured")
	}
}
