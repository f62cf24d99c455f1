package router

import (
	"sort"
	"strings"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/rcu"
)

// RequestCtx is the input used for binding lookup.
type RequestCtx struct {
	Path   string
	Method string
}

// Matcher resolves the route classes that apply to a request.
type Matcher struct {
	snap *rcu.Snapshot[RouteSnapshot]
}

func NewMatcher(initial *RouteSnapshot) *Matcher {
	if initial == nil {
		initial = BuildRouteSnapshot(nil)
	}
	return &Matcher{snap: rcu.NewSnapshot(initial)}
}

func (m *Matcher) Replace(snapshot *RouteSnapshot) {
	if snapshot == nil {
		snapshot = BuildRouteSnapshot(nil)
	}
	m.snap.Replace(snapshot)
}

// Match returns all matching bindings ordered by priority (desc).
func (m *Matcher) Match(ctx RequestCtx) []config.RouteBinding {
	snap := m.snap.Load()
	if snap == nil {
		return nil
	}
	var res []config.RouteBinding

	if ctx.Path != "" {
		if bs, ok := snap.Exact[ctx.Path]; ok {
			res = append(res, filterMethod(bs, ctx.Method)...)
		}
		res = append(res, filterMethod(snap.Prefix.match(ctx.Path), ctx.Method)...)
	}
	res = append(res, filterMethod(snap.Wildcard, ctx.Method)...)

	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Priority == res[j].Priority {
			return res[i].Class < res[j].Class
		}
		return res[i].Priority > res[j].Priority
	})
	return res
}

// Classes returns the distinct classes of Match in priority order, stopping
// after the first exclusive binding.
func (m *Matcher) Classes(ctx RequestCtx) []string {
	bindings := m.Match(ctx)
	if len(bindings) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(bindings))
	out := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if _, ok := seen[b.Class]; ok {
			continue
		}
		seen[b.Class] = struct{}{}
		out = append(out, b.Class)
		if b.Exclusive {
			break
		}
	}
	return out
}

func filterMethod(bindings []config.RouteBinding, method string) []config.RouteBinding {
	if len(bindings) == 0 {
		return nil
	}
	out := make([]config.RouteBinding, 0, len(bindings))
	for _, b := range bindings {
		if matchMethod(b.Methods, method) {
			out = append(out, b)
		}
	}
	return out
}

func matchMethod(methods []string, method string) bool {
	if len(methods) == 0 {
		return true
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	for _, m := range methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "*" || m == method {
			return true
		}
	}
	return false
}
