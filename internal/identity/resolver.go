package identity

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

const (
	KindUser = "user"
	KindIP   = "ip"
)

// ClientKey represents a normalized client identifier.
type ClientKey struct {
	Kind string
	ID   string
	Key  string
}

type userCtxKey struct{}

// WithUser marks ctx as belonging to an authenticated user.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, userID)
}

// UserFrom returns the authenticated user set by WithUser.
func UserFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userCtxKey{}).(string)
	return id, ok && id != ""
}

// Resolver resolves a client key from an HTTP request.
// Proxy headers are only honoured when TrustProxy is set.
type Resolver struct {
	TrustProxy bool
	IPHeaders  []string
}

func NewResolver(trustProxy bool) *Resolver {
	return &Resolver{
		TrustProxy: trustProxy,
		IPHeaders:  []string{"X-Forwarded-For", "X-Real-IP"},
	}
}

// Resolve resolves client identity in order: authenticated user -> ip.
func (r *Resolver) Resolve(req *http.Request) (ClientKey, error) {
	if req == nil {
		return ClientKey{}, errors.New("nil request")
	}
	if user, ok := UserFrom(req.Context()); ok {
		return newKey(KindUser, user), nil
	}
	if ip := r.ClientIP(req); ip != "" {
		return newKey(KindIP, ip), nil
	}
	return ClientKey{}, errors.New("no client identity found")
}

// ClientIP returns the caller address, or "" when none can be parsed.
func (r *Resolver) ClientIP(req *http.Request) string {
	if r.TrustProxy {
		for _, h := range r.IPHeaders {
			if ip := parseForwardedIP(req.Header.Get(h)); ip != "" {
				return ip
			}
		}
	}
	return parseRemoteIP(req.RemoteAddr)
}

func newKey(kind, id string) ClientKey {
	return ClientKey{
		Kind: kind,
		ID:   id,
		Key:  kind + ":" + id,
	}
}

func parseForwardedIP(value string) string {
	if value == "" {
		return ""
	}
	first, _, _ := strings.Cut(value, ",")
	return canonicalIP(strings.TrimSpace(first))
}

func parseRemoteIP(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err == nil && host != "" {
		return canonicalIP(host)
	}
	return canonicalIP(remoteAddr)
}

func canonicalIP(s string) string {
	ip := net.ParseIP(strings.Trim(s, "[]"))
	if ip == nil {
		return ""
	}
	return ip.String()
}
