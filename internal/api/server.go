package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

import (
	"github.com/gorilla/mux"
)

import (
	"github.com/nanjiek/lockgate/internal/admission"
	"github.com/nanjiek/lockgate/internal/auth"
	"github.com/nanjiek/lockgate/internal/botguard"
	"github.com/nanjiek/lockgate/internal/codec"
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/identity"
	"github.com/nanjiek/lockgate/internal/limiter"
	"github.com/nanjiek/lockgate/internal/metrics"
	"github.com/nanjiek/lockgate/internal/router"
	"github.com/nanjiek/lockgate/internal/store"
)

// Blocklist is the admin view of the ip blocklist.
type Blocklist interface {
	Block(ctx context.Context, ip string) error
	Unblock(ctx context.Context, ip string) error
}

// Deps are the components the HTTP surface is built from. Issuer and
// Blocklist may be nil; the endpoints that need them then answer 401/503.
type Deps struct {
	Store     *store.Store
	Pipeline  *admission.Pipeline
	Codec     *codec.Codec
	Issuer    *auth.Issuer
	Guard     *limiter.Guard
	Routes    *router.Matcher
	Resolver  *identity.Resolver
	Bots      *botguard.Classifier
	Blocklist Blocklist
	Logger    *slog.Logger
}

type Server struct {
	cfg       config.ServerCfg
	store     *store.Store
	pipeline  *admission.Pipeline
	codec     *codec.Codec
	issuer    *auth.Issuer
	guard     *limiter.Guard
	routes    *router.Matcher
	resolver  *identity.Resolver
	bots      *botguard.Classifier
	blocklist Blocklist
	logger    *slog.Logger
	srv       *http.Server
}

func NewServer(cfg config.ServerCfg, d Deps) *Server {
	s := &Server{
		cfg:       cfg,
		store:     d.Store,
		pipeline:  d.Pipeline,
		codec:     d.Codec,
		issuer:    d.Issuer,
		guard:     d.Guard,
		routes:    d.Routes,
		resolver:  d.Resolver,
		bots:      d.Bots,
		blocklist: d.Blocklist,
		logger:    d.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.resolver == nil {
		s.resolver = identity.NewResolver(cfg.TrustProxyHeaders)
	}
	if s.routes == nil {
		s.routes = router.NewMatcher(nil)
	}
	s.srv = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutMs) * time.Millisecond,
	}
	return s
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, s.recoverMiddleware, s.accessLogMiddleware, s.maxBodyMiddleware)
	s.RegisterRoutes(r)
	r.NotFoundHandler = requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		errResp(w, http.StatusNotFound, msgNotFound)
	}))
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		errResp(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/album/{token}", s.albumHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware, s.rateLimitMiddleware)

	api.HandleFunc("/auth/login", s.loginHandler).Methods(http.MethodPost)

	api.HandleFunc("/users", s.createUserHandler).Methods(http.MethodPost)
	api.HandleFunc("/users/{id:[0-9]+}", requireUser(s.getUserHandler)).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}", requireUser(s.updateUserHandler)).Methods(http.MethodPut)
	api.HandleFunc("/users/{id:[0-9]+}", requireUser(s.deleteUserHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/users/{id:[0-9]+}/locks", requireUser(s.userLocksHandler)).Methods(http.MethodGet)

	api.HandleFunc("/locks", requireUser(s.createLockHandler)).Methods(http.MethodPost)
	api.HandleFunc("/locks/{id:[0-9]+}", requireUser(s.getLockHandler)).Methods(http.MethodGet)
	api.HandleFunc("/locks/{id:[0-9]+}", requireUser(s.updateLockHandler)).Methods(http.MethodPut)
	api.HandleFunc("/locks/{id:[0-9]+}", requireUser(s.deleteLockHandler)).Methods(http.MethodDelete)

	api.HandleFunc("/locks/{id:[0-9]+}/media", requireUser(s.listMediaHandler)).Methods(http.MethodGet)
	api.HandleFunc("/locks/{id:[0-9]+}/media", requireUser(s.addMediaHandler)).Methods(http.MethodPost)
	api.HandleFunc("/locks/{id:[0-9]+}/media/order", requireUser(s.reorderMediaHandler)).Methods(http.MethodPut)
	api.HandleFunc("/media/{id:[0-9]+}", requireUser(s.deleteMediaHandler)).Methods(http.MethodDelete)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/locks", requireAdmin(s.adminLocksHandler)).Methods(http.MethodGet)
	admin.HandleFunc("/stats", requireAdmin(s.adminStatsHandler)).Methods(http.MethodGet)
	admin.HandleFunc("/blocklist/{ip}", requireAdmin(s.blockHandler)).Methods(http.MethodPost)
	admin.HandleFunc("/blocklist/{ip}", requireAdmin(s.unblockHandler)).Methods(http.MethodDelete)
	admin.HandleFunc("/bot/classify", requireAdmin(s.classifyHandler)).Methods(http.MethodPost)
}

func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", "err", err)
			errResp(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
