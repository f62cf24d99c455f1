package router

import (
	"reflect"
	"testing"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
)

func TestMatcherMatchOrder(t *testing.T) {
	bindings := []config.RouteBinding{
		{Match: "/api/locks", Methods: []string{"GET"}, Class: "a", Priority: 10},
		{Match: "/api/locks", Class: "b", Priority: 5},
		{Match: "/v1/*", Class: "c", Priority: 7},
	}

	matcher := NewMatcher(BuildRouteSnapshot(bindings))
	got := matcher.Match(RequestCtx{Path: "/api/locks", Method: "GET"})

	if len(got) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(got))
	}
	if got[0].Class != "a" || got[1].Class != "b" {
		t.Fatalf("unexpected order: %v", []string{got[0].Class, got[1].Class})
	}
}

func TestMatcherFiltersMethod(t *testing.T) {
	bindings := []config.RouteBinding{
		{Match: "/api", Methods: []string{"POST"}, Class: "burst"},
	}
	matcher := NewMatcher(BuildRouteSnapshot(bindings))
	if got := matcher.Match(RequestCtx{Path: "/api", Method: "GET"}); len(got) != 0 {
		t.Fatalf("expected no bindings, got %d", len(got))
	}
	if got := matcher.Match(RequestCtx{Path: "/api", Method: "post"}); len(got) != 1 {
		t.Fatalf("method match should be case-insensitive, got %d", len(got))
	}
}

func TestMatcherPrefixAndWildcard(t *testing.T) {
	bindings := []config.RouteBinding{
		{Match: "/v1/*", Class: "api"},
		{Match: "*", Class: "global"},
	}
	matcher := NewMatcher(BuildRouteSnapshot(bindings))
	got := matcher.Match(RequestCtx{Path: "/v1/a", Method: "GET"})
	if len(got) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(got))
	}
}

func TestDefaultRouteClasses(t *testing.T) {
	matcher := NewMatcher(BuildRouteSnapshot(config.DefaultRoutes()))
	tests := []struct {
		method string
		path   string
		want   []string
	}{
		{"GET", "/api/locks/1", []string{config.ClassAPI}},
		{"POST", "/api/locks", []string{config.ClassBurst, config.ClassAPI}},
		{"DELETE", "/api/media/3", []string{config.ClassBurst, config.ClassAPI}},
		{"GET", "/api/admin/stats", []string{config.ClassAdmin}},
		{"POST", "/api/admin/blocklist/1.2.3.4", []string{config.ClassBurst, config.ClassAdmin}},
		{"GET", "/album/abc", nil},
		{"GET", "/healthz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := matcher.Classes(RequestCtx{Path: tt.path, Method: tt.method})
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Classes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatcherReplace(t *testing.T) {
	matcher := NewMatcher(nil)
	if got := matcher.Classes(RequestCtx{Path: "/api/x", Method: "GET"}); got != nil {
		t.Fatalf("empty matcher returned %v", got)
	}
	matcher.Replace(BuildRouteSnapshot([]config.RouteBinding{{Match: "/api/*", Class: "api"}}))
	if got := matcher.Classes(RequestCtx{Path: "/api/x", Method: "GET"}); len(got) != 1 {
		t.Fatalf("Classes after Replace = %v", got)
	}
}
