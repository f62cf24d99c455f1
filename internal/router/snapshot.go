package router

import (
	"strings"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
)

// RouteSnapshot is an immutable index built from route bindings.
type RouteSnapshot struct {
	Exact    map[string][]config.RouteBinding
	Prefix   *trieNode
	Wildcard []config.RouteBinding
}

type trieNode struct {
	children map[rune]*trieNode
	bindings []config.RouteBinding
}

func newTrie() *trieNode {
	return &trieNode{children: make(map[rune]*trieNode)}
}

func (t *trieNode) insert(prefix string, b config.RouteBinding) {
	node := t
	for _, ch := range prefix {
		if node.children == nil {
			node.children = make(map[rune]*trieNode)
		}
		next := node.children[ch]
		if next == nil {
			next = &trieNode{children: make(map[rune]*trieNode)}
			node.children[ch] = next
		}
		node = next
	}
	node.bindings = append(node.bindings, b)
}

// match collects the bindings of every prefix of path.
func (t *trieNode) match(path string) []config.RouteBinding {
	if t == nil {
		return nil
	}
	node := t
	var out []config.RouteBinding
	for _, ch := range path {
		if node == nil {
			break
		}
		if len(node.bindings) > 0 {
			out = append(out, node.bindings...)
		}
		node = node.children[ch]
	}
	if node != nil && len(node.bindings) > 0 {
		out = append(out, node.bindings...)
	}
	return out
}

// BuildRouteSnapshot indexes bindings by match kind: exact path,
// "/prefix/*" or "*".
func BuildRouteSnapshot(bindings []config.RouteBinding) *RouteSnapshot {
	snap := &RouteSnapshot{
		Exact:    make(map[string][]config.RouteBinding),
		Prefix:   newTrie(),
		Wildcard: make([]config.RouteBinding, 0),
	}
	for _, b := range bindings {
		if strings.TrimSpace(b.Class) == "" {
			continue
		}
		match := strings.TrimSpace(b.Match)
		if match == "" || match == "*" {
			snap.Wildcard = append(snap.Wildcard, b)
			continue
		}
		if strings.HasSuffix(match, "*") && len(match) > 1 {
			snap.Prefix.insert(strings.TrimSuffix(match, "*"), b)
			continue
		}
		snap.Exact[match] = append(snap.Exact[match], b)
	}
	return snap
}
