package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

import (
	"gopkg.in/yaml.v3"
)

// Route class names. Each class owns an independent rate-limit budget.
const (
	ClassAlbum = "album"
	ClassAPI   = "api"
	ClassAdmin = "admin"
	ClassBurst = "burst"
)

// ServerCfg —— HTTP listener and public URL settings
type ServerCfg struct {
	HTTPAddr            string `yaml:"httpAddr"`            // e.g. ":8080"
	PublicBaseURL       string `yaml:"publicBaseURL"`       // used to build album links
	ReadHeaderTimeoutMs int    `yaml:"readHeaderTimeoutMs"` // default 5000
	ShutdownTimeoutMs   int    `yaml:"shutdownTimeoutMs"`   // default 5000
	MaxBodyBytes        int64  `yaml:"maxBodyBytes"`        // default 1 MiB
	TrustProxyHeaders   bool   `yaml:"trustProxyHeaders"`   // honour X-Forwarded-For / X-Real-IP
}

// LoggingCfg —— slog handler settings
type LoggingCfg struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | text
}

// DatabaseCfg —— relational store
type DatabaseCfg struct {
	Driver             string `yaml:"driver"` // pgx | sqlite3
	DSN                string `yaml:"dsn"`
	MaxOpenConns       int    `yaml:"maxOpenConns"`
	MaxIdleConns       int    `yaml:"maxIdleConns"`
	ConnMaxLifetimeSec int    `yaml:"connMaxLifetimeSec"`
	AutoMigrate        bool   `yaml:"autoMigrate"`
}

// RedisCfg —— Redis connection and key namespace. Empty Addr/Addrs disables Redis.
type RedisCfg struct {
	Addr               string   `yaml:"addr"`               // e.g. "127.0.0.1:6379"
	Addrs              []string `yaml:"addrs"`              // cluster seeds
	Password           string   `yaml:"password"`           // Redis password
	DB                 int      `yaml:"db"`                 // DB index (single node only)
	Prefix             string   `yaml:"prefix"`             // key prefix
	UpdatesChannel     string   `yaml:"updatesChannel"`     // pub/sub channel for ip list invalidation
	PoolSize           int      `yaml:"poolSize"`           // connection pool size
	MinIdleConns       int      `yaml:"minIdleConns"`       // minimum idle connections
	MaxRetries         int      `yaml:"maxRetries"`         // command retry count
	ReadTimeoutMs      int      `yaml:"readTimeoutMs"`      // read timeout (ms)
	WriteTimeoutMs     int      `yaml:"writeTimeoutMs"`     // write timeout (ms)
	DialTimeoutMs      int      `yaml:"dialTimeoutMs"`      // dial timeout (ms)
	CommandTimeoutMs   int      `yaml:"commandTimeoutMs"`   // per-command deadline (ms)
	ConnMaxIdleTimeSec int      `yaml:"connMaxIdleTimeSec"` // max idle time (sec)
}

func (r RedisCfg) Enabled() bool {
	return strings.TrimSpace(r.Addr) != "" || len(r.Addrs) > 0
}

// CodecCfg —— opaque id codec. Changing Salt invalidates every issued token.
type CodecCfg struct {
	Salt      string `yaml:"salt"`
	MinLength int    `yaml:"minLength"` // default 6
}

// RouteClass —— one rate-limit budget
type RouteClass struct {
	Limit    int64  `yaml:"limit"    json:"limit"`
	WindowMs int64  `yaml:"windowMs" json:"windowMs"`
	Algo     string `yaml:"algo"     json:"algo"` // fixed_window | sliding_window (redis only)
}

// RouteBinding —— maps a request path (exact, "/prefix/*" or "*") to a class
type RouteBinding struct {
	Match     string   `yaml:"match"     json:"match"`
	Methods   []string `yaml:"methods"   json:"methods"`
	Class     string   `yaml:"class"     json:"class"`
	Priority  int      `yaml:"priority"  json:"priority"`  // higher first
	Exclusive bool     `yaml:"exclusive" json:"exclusive"` // lower-priority bindings are skipped
}

// RateLimitCfg —— limiter backend and budgets
type RateLimitCfg struct {
	Backend         string                `yaml:"backend"`         // memory | redis
	FailPolicy      string                `yaml:"failPolicy"`      // fail-open | fail-closed
	SweepIntervalMs int64                 `yaml:"sweepIntervalMs"` // memory backend eviction cadence
	Classes         map[string]RouteClass `yaml:"classes"`
	Routes          []RouteBinding        `yaml:"routes"`
}

// BotPolicy —— pattern lists for the bot heuristic. Patterns are Go regular expressions.
type BotPolicy struct {
	MinUserAgentLength   int      `yaml:"minUserAgentLength"   json:"minUserAgentLength"`
	Allow                []string `yaml:"allow"                json:"allow"`
	Deny                 []string `yaml:"deny"                 json:"deny"`
	Mobile               []string `yaml:"mobile"               json:"mobile"`
	Desktop              []string `yaml:"desktop"              json:"desktop"`
	RequiredHeaders      []string `yaml:"requiredHeaders"      json:"requiredHeaders"`
	FetchMetadataHeaders []string `yaml:"fetchMetadataHeaders" json:"fetchMetadataHeaders"`
	OwnedDomains         []string `yaml:"ownedDomains"         json:"ownedDomains"`
}

// IPListCfg —— Redis-backed blocklist and hot-ip auto blocking
type IPListCfg struct {
	Enabled        bool  `yaml:"enabled"`
	HotThreshold   int64 `yaml:"hotThreshold"`   // rate-limit denials before temp block
	HotWindowMs    int64 `yaml:"hotWindowMs"`    // denial counting window
	BlacklistTTLMs int64 `yaml:"blacklistTtlMs"` // temp block duration
	LocalTTLMs     int64 `yaml:"localTtlMs"`     // L1 cache entry lifetime
}

// BreakerCfg —— circuit breaker around store reads
type BreakerCfg struct {
	Enabled          bool    `yaml:"enabled"`
	Threshold        float64 `yaml:"threshold"`        // errors per stat interval
	MinRequestAmount uint64  `yaml:"minRequestAmount"` // requests before the breaker may trip
	StatIntervalMs   uint32  `yaml:"statIntervalMs"`
	RetryTimeoutMs   uint32  `yaml:"retryTimeoutMs"` // open state duration
}

// ViewCounterCfg —— async scan counter
type ViewCounterCfg struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queueSize"`
	TimeoutMs int `yaml:"timeoutMs"`
}

// AuthCfg —— admin tokens
type AuthCfg struct {
	JWTSecret   string `yaml:"jwtSecret"`
	Issuer      string `yaml:"issuer"`
	TokenTTLMin int    `yaml:"tokenTtlMin"`
}

// NacosCfg - Nacos config center (pull mode) for bot policies
type NacosCfg struct {
	Addr           string `yaml:"addr"`           // Nacos address, e.g. "http://127.0.0.1:8848"
	Namespace      string `yaml:"namespace"`      // tenant/namespace
	Group          string `yaml:"group"`          // default DEFAULT_GROUP
	DataID         string `yaml:"dataId"`         // config dataId
	Username       string `yaml:"username"`       // optional
	Password       string `yaml:"password"`       // optional
	PollIntervalMs int    `yaml:"pollIntervalMs"` // default 5000
	TimeoutMs      int    `yaml:"timeoutMs"`      // default 2000
	FailPolicy     string `yaml:"failPolicy"`     // fail-open | fail-closed
	Format         string `yaml:"format"`         // json | yaml (auto-detect if empty)
}

func (n NacosCfg) Enabled() bool {
	return n.Addr != "" && n.DataID != ""
}

// Config —— full configuration
type Config struct {
	Server      ServerCfg      `yaml:"server"`
	Logging     LoggingCfg     `yaml:"logging"`
	Database    DatabaseCfg    `yaml:"database"`
	Redis       RedisCfg       `yaml:"redis"`
	Codec       CodecCfg       `yaml:"codec"`
	RateLimit   RateLimitCfg   `yaml:"rateLimit"`
	Bot         BotPolicy      `yaml:"bot"`
	IPList      IPListCfg      `yaml:"ipList"`
	Breaker     BreakerCfg     `yaml:"breaker"`
	ViewCounter ViewCounterCfg `yaml:"viewCounter"`
	Auth        AuthCfg        `yaml:"auth"`
	Nacos       NacosCfg       `yaml:"nacos"`
}

// Load reads a YAML file, expands ${ENV} references, applies defaults and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse is Load without the file read.
func Parse(raw []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(raw))
	var c Config
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Codec.Salt) == "" {
		return errors.New("codec.salt is required")
	}
	switch c.Database.Driver {
	case "pgx", "sqlite3":
	default:
		return fmt.Errorf("database.driver %q unsupported (pgx | sqlite3)", c.Database.Driver)
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled() {
			return errors.New("rateLimit.backend=redis requires redis.addr")
		}
	default:
		return fmt.Errorf("rateLimit.backend %q unsupported (memory | redis)", c.RateLimit.Backend)
	}
	for name, rc := range c.RateLimit.Classes {
		if rc.Limit <= 0 || rc.WindowMs <= 0 {
			return fmt.Errorf("rateLimit.classes.%s: limit and windowMs must be positive", name)
		}
		switch rc.Algo {
		case "fixed_window":
		case "sliding_window":
			if c.RateLimit.Backend != "redis" {
				return fmt.Errorf("rateLimit.classes.%s: sliding_window requires the redis backend", name)
			}
		default:
			return fmt.Errorf("rateLimit.classes.%s: algo %q unsupported", name, rc.Algo)
		}
	}
	for _, rb := range c.RateLimit.Routes {
		if _, ok := c.RateLimit.Classes[rb.Class]; !ok {
			return fmt.Errorf("rateLimit.routes %q: unknown class %q", rb.Match, rb.Class)
		}
	}
	if c.IPList.Enabled && !c.Redis.Enabled() {
		return errors.New("ipList.enabled requires redis.addr")
	}
	return nil
}
