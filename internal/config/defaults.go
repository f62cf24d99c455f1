package config

import (
	"net/http"
	"strings"
)

// DefaultClasses are the budgets for the four route classes.
func DefaultClasses() map[string]RouteClass {
	return map[string]RouteClass{
		ClassAlbum: {Limit: 5, WindowMs: 60_000, Algo: "fixed_window"},
		ClassAPI:   {Limit: 20, WindowMs: 60_000, Algo: "fixed_window"},
		ClassAdmin: {Limit: 100, WindowMs: 60_000, Algo: "fixed_window"},
		ClassBurst: {Limit: 3, WindowMs: 10_000, Algo: "fixed_window"},
	}
}

// DefaultRoutes binds the CRUD surface to route classes. Mutations also pay
// into burst. The public album route is gated by the admission pipeline and
// needs no binding.
func DefaultRoutes() []RouteBinding {
	return []RouteBinding{
		{Match: "/api/admin/*", Class: ClassAdmin, Priority: 20, Exclusive: true},
		{Match: "/api/*", Class: ClassAPI, Priority: 10},
		{
			Match:    "/api/*",
			Methods:  []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			Class:    ClassBurst,
			Priority: 30,
		},
	}
}

// DefaultBotPolicy returns the built-in pattern lists.
func DefaultBotPolicy() BotPolicy {
	return BotPolicy{
		MinUserAgentLength: 10,
		// Native app builds. Checked before Deny so an overlapping library
		// token (okhttp, CFNetwork) in the app's UA cannot misclassify it.
		Allow: []string{
			`(?i)^LoveLock(App)?/\d`,
			`(?i)\bLoveLock(App)?/\d+(\.\d+)* \((iOS|Android)`,
			`(?i)\bExpo/\d+.*\bLoveLock`,
		},
		Deny: []string{
			// search and AI crawlers
			`(?i)googlebot|bingbot|yandex(bot)?|baiduspider|duckduckbot|slurp|applebot`,
			`(?i)gptbot|chatgpt-user|claudebot|claude-web|anthropic-ai|ccbot|perplexitybot|bytespider|amazonbot|cohere-ai`,
			`(?i)facebookexternalhit|twitterbot|linkedinbot|slackbot|discordbot|telegrambot|whatsapp`,
			// http libraries
			`(?i)\bcurl/|\bwget/|python-requests|python-urllib|aiohttp|httpx|go-http-client|okhttp|axios/|node-fetch|undici|java/|apache-httpclient|libwww-perl|ruby|php/|postmanruntime|insomnia`,
			// scanners
			`(?i)sqlmap|nikto|nmap|masscan|zgrab|nuclei|acunetix|nessus|openvas|wpscan|dirbuster|gobuster|burp`,
			// headless and automation frameworks
			`(?i)headlesschrome|phantomjs|puppeteer|playwright|selenium|webdriver|cypress|electron/`,
			// generic tokens
			`(?i)bot\b|bot/|crawler|spider|scraper|scrapy|fetcher|monitor`,
		},
		Mobile: []string{
			`(?i)\b(iPhone|iPad|iPod)\b.*AppleWebKit`,
			`(?i)\bAndroid\b.*\bMobile\b`,
			`(?i)SamsungBrowser/|Opera Mini/|\bMobile Safari/`,
		},
		Desktop: []string{
			`(?i)^Mozilla/5\.0 \((Windows NT|Macintosh|X11)[^)]*\).*(Chrome|Firefox|Safari|Edg|OPR)/\d`,
		},
		RequiredHeaders: []string{"Accept-Language"},
		FetchMetadataHeaders: []string{
			"Sec-Fetch-Site",
			"Sec-Fetch-Mode",
			"Sec-Fetch-Dest",
			"Sec-Ch-Ua",
		},
		OwnedDomains: []string{"lovelock.app"},
	}
}

// ApplyDefaults fills every zero value.
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.ReadHeaderTimeoutMs <= 0 {
		c.Server.ReadHeaderTimeoutMs = 5000
	}
	if c.Server.ShutdownTimeoutMs <= 0 {
		c.Server.ShutdownTimeoutMs = 5000
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	c.Server.PublicBaseURL = strings.TrimRight(c.Server.PublicBaseURL, "/")

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite3"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite3" {
		c.Database.DSN = "file:lockgate.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetimeSec <= 0 {
		c.Database.ConnMaxLifetimeSec = 3600
	}

	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "lockgate"
	}
	if c.Redis.UpdatesChannel == "" {
		c.Redis.UpdatesChannel = c.Redis.Prefix + ":iplist_updates"
	}

	if c.Codec.MinLength <= 0 {
		c.Codec.MinLength = 6
	}

	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.RateLimit.FailPolicy == "" {
		c.RateLimit.FailPolicy = "fail-open"
	}
	if c.RateLimit.SweepIntervalMs <= 0 {
		c.RateLimit.SweepIntervalMs = 60_000
	}
	defaults := DefaultClasses()
	if c.RateLimit.Classes == nil {
		c.RateLimit.Classes = make(map[string]RouteClass, len(defaults))
	}
	for name, def := range defaults {
		rc, ok := c.RateLimit.Classes[name]
		if !ok {
			c.RateLimit.Classes[name] = def
			continue
		}
		if rc.Limit <= 0 {
			rc.Limit = def.Limit
		}
		if rc.WindowMs <= 0 {
			rc.WindowMs = def.WindowMs
		}
		if rc.Algo == "" {
			rc.Algo = def.Algo
		}
		c.RateLimit.Classes[name] = rc
	}
	if len(c.RateLimit.Routes) == 0 {
		c.RateLimit.Routes = DefaultRoutes()
	}

	c.Bot = c.Bot.WithDefaults()

	if c.IPList.HotThreshold <= 0 {
		c.IPList.HotThreshold = 10
	}
	if c.IPList.HotWindowMs <= 0 {
		c.IPList.HotWindowMs = 60_000
	}
	if c.IPList.BlacklistTTLMs <= 0 {
		c.IPList.BlacklistTTLMs = 10 * 60_000
	}
	if c.IPList.LocalTTLMs <= 0 {
		c.IPList.LocalTTLMs = 5 * 60_000
	}

	if c.Breaker.Threshold <= 0 {
		c.Breaker.Threshold = 20
	}
	if c.Breaker.MinRequestAmount == 0 {
		c.Breaker.MinRequestAmount = 10
	}
	if c.Breaker.StatIntervalMs == 0 {
		c.Breaker.StatIntervalMs = 5000
	}
	if c.Breaker.RetryTimeoutMs == 0 {
		c.Breaker.RetryTimeoutMs = 3000
	}

	if c.ViewCounter.Workers <= 0 {
		c.ViewCounter.Workers = 2
	}
	if c.ViewCounter.QueueSize <= 0 {
		c.ViewCounter.QueueSize = 1024
	}
	if c.ViewCounter.TimeoutMs <= 0 {
		c.ViewCounter.TimeoutMs = 2000
	}

	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "lockgate"
	}
	if c.Auth.TokenTTLMin <= 0 {
		c.Auth.TokenTTLMin = 60
	}
}

// WithDefaults returns p with empty lists replaced by the built-in ones.
func (p BotPolicy) WithDefaults() BotPolicy {
	def := DefaultBotPolicy()
	if p.MinUserAgentLength <= 0 {
		p.MinUserAgentLength = def.MinUserAgentLength
	}
	if len(p.Allow) == 0 {
		p.Allow = def.Allow
	}
	if len(p.Deny) == 0 {
		p.Deny = def.Deny
	}
	if len(p.Mobile) == 0 {
		p.Mobile = def.Mobile
	}
	if len(p.Desktop) == 0 {
		p.Desktop = def.Desktop
	}
	if len(p.RequiredHeaders) == 0 {
		p.RequiredHeaders = def.RequiredHeaders
	}
	if len(p.FetchMetadataHeaders) == 0 {
		p.FetchMetadataHeaders = def.FetchMetadataHeaders
	}
	if len(p.OwnedDomains) == 0 {
		p.OwnedDomains = def.OwnedDomains
	}
	return p
}
