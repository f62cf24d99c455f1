package api

import (
	"context"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"
)

import (
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

import (
	"github.com/nanjiek/lockgate/internal/auth"
	"github.com/nanjiek/lockgate/internal/identity"
	"github.com/nanjiek/lockgate/internal/metrics"
	"github.com/nanjiek/lockgate/internal/router"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	claimsKey
)

const headerRequestID = "X-Request-ID"

// requestIDMiddleware propagates or assigns a request id.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func claimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok && c != nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.status = http.StatusOK
		w.wrote = true
	}
	return w.ResponseWriter.Write(b)
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic in handler",
					"request_id", RequestID(r.Context()),
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				errResp(w, http.StatusInternalServerError, msgInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// accessLogMiddleware logs one line per request and records HTTP metrics
// labelled by route template.
func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		dur := time.Since(start)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.RecordHTTPRequest(r.Method, route, sw.status, dur.Seconds())
		s.logger.Info("http request",
			"request_id", RequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", sw.status,
			"duration_ms", dur.Milliseconds(),
		)
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && s.cfg.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware attaches the claims of a bearer token. Requests without a
// token continue anonymously; an invalid token is rejected.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || s.issuer == nil {
			next.ServeHTTP(w, r)
			return
		}
		token, err := auth.ExtractToken(header)
		if err != nil {
			errResp(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		claims, err := s.issuer.Validate(token)
		if err != nil {
			s.logger.Debug("token rejected", "request_id", RequestID(r.Context()), "err", err)
			errResp(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = identity.WithUser(ctx, strconv.FormatInt(claims.UserID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimitMiddleware charges every route class bound to the request. The
// caller is the authenticated user, else the client ip.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		classes := s.routes.Classes(router.RequestCtx{Path: r.URL.Path, Method: r.Method})
		if len(classes) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		caller := "unknown"
		if key, err := s.resolver.Resolve(r); err == nil {
			caller = key.Key
		}
		for _, class := range classes {
			dec := s.guard.Check(r.Context(), class, caller)
			if dec.Allowed {
				continue
			}
			if dec.Err != nil {
				errResp(w, http.StatusServiceUnavailable, "service unavailable")
				return
			}
			s.logger.Info("rate limited",
				"request_id", RequestID(r.Context()),
				"class", class,
				"caller", caller,
				"path", r.URL.Path,
			)
			setRetryAfter(w, dec.RetryAfterMs)
			errResp(w, http.StatusTooManyRequests, msgRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireUser wraps handlers that need a signed-in caller.
func requireUser(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := claimsFrom(r.Context()); !ok {
			errResp(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		h(w, r)
	}
}

func requireAdmin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := claimsFrom(r.Context())
		if !ok {
			errResp(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		if !c.IsAdmin {
			errResp(w, http.StatusForbidden, msgForbidden)
			return
		}
		h(w, r)
	}
}

// canAccess reports whether the caller owns userID or is an admin.
func canAccess(ctx context.Context, userID int64) bool {
	c, ok := claimsFrom(ctx)
	return ok && (c.IsAdmin || c.UserID == userID)
}
