package botguard

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
)

var ErrInvalidPolicy = errors.New("invalid bot policy")

// Rule is one step of the classifier. Rules run in order and the first
// matching rule decides. When a matching rule has Then rules, the first
// of those that matches decides instead; if none does, Bot applies.
type Rule struct {
	Name  string
	Match func(Signals) bool
	Bot   bool
	Then  []Rule
}

// compiled is an immutable, ready-to-run policy.
type compiled struct {
	policy  config.BotPolicy
	rules   []Rule
	allow   []*regexp.Regexp
	deny    []*regexp.Regexp
	mobile  []*regexp.Regexp
	desktop []*regexp.Regexp
	owned   []string
	denyAll bool
}

func compile(p config.BotPolicy) (*compiled, error) {
	c := &compiled{policy: p}
	var err error
	if c.allow, err = compileList("allow", p.Allow); err != nil {
		return nil, err
	}
	if c.deny, err = compileList("deny", p.Deny); err != nil {
		return nil, err
	}
	if c.mobile, err = compileList("mobile", p.Mobile); err != nil {
		return nil, err
	}
	if c.desktop, err = compileList("desktop", p.Desktop); err != nil {
		return nil, err
	}
	for _, d := range p.OwnedDomains {
		d = strings.ToLower(strings.Trim(strings.TrimSpace(d), "."))
		if d != "" {
			c.owned = append(c.owned, d)
		}
	}
	minLen := p.MinUserAgentLength
	if minLen <= 0 {
		minLen = 10
		c.policy.MinUserAgentLength = minLen
	}

	c.rules = []Rule{
		{Name: "short_user_agent", Bot: true, Match: func(s Signals) bool {
			return uaLength(s.UserAgent) < minLen
		}},
		{Name: "allow_list", Bot: false, Match: func(s Signals) bool {
			return matchAny(c.allow, s.UserAgent)
		}},
		{Name: "deny_list", Bot: true, Match: func(s Signals) bool {
			return matchAny(c.deny, s.UserAgent)
		}},
		{Name: "mobile_browser", Bot: false, Match: func(s Signals) bool {
			return matchAny(c.mobile, s.UserAgent)
		}},
		{
			Name: "desktop_browser",
			Bot:  false,
			Match: func(s Signals) bool {
				return matchAny(c.desktop, s.UserAgent)
			},
			Then: []Rule{
				{Name: "missing_required_header", Bot: true, Match: func(s Signals) bool {
					return missingAny(s.Header, p.RequiredHeaders)
				}},
				{Name: "missing_fetch_metadata", Bot: true, Match: func(s Signals) bool {
					return missingAll(s.Header, p.FetchMetadataHeaders)
				}},
				{Name: "foreign_referer", Bot: true, Match: func(s Signals) bool {
					return c.foreignReferer(s.Referer)
				}},
			},
		},
		{Name: "unrecognized_client", Bot: true, Match: func(Signals) bool { return true }},
	}
	return c, nil
}

// denyAll classifies every request as a bot.
func denyAll() *compiled {
	return &compiled{
		denyAll: true,
		rules:   []Rule{{Name: "deny_all", Bot: true, Match: func(Signals) bool { return true }}},
	}
}

func compileList(name string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d] %q: %v", ErrInvalidPolicy, name, i, pat, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (c *compiled) foreignReferer(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return true
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return true
	}
	return !c.ownsHost(host)
}

func (c *compiled) ownsHost(host string) bool {
	for _, d := range c.owned {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func uaLength(ua string) int {
	return utf8.RuneCountInString(strings.TrimSpace(ua))
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func missingAny(h http.Header, names []string) bool {
	for _, n := range names {
		if strings.TrimSpace(h.Get(n)) == "" {
			return true
		}
	}
	return false
}

func missingAll(h http.Header, names []string) bool {
	if len(names) == 0 {
		return false
	}
	for _, n := range names {
		if strings.TrimSpace(h.Get(n)) != "" {
			return false
		}
	}
	return true
}
