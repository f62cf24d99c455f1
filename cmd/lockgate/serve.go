package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

import (
	"github.com/spf13/cobra"
)

import (
	"github.com/nanjiek/lockgate/internal/admission"
	"github.com/nanjiek/lockgate/internal/api"
	"github.com/nanjiek/lockgate/internal/auth"
	"github.com/nanjiek/lockgate/internal/botguard"
	"github.com/nanjiek/lockgate/internal/codec"
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/identity"
	"github.com/nanjiek/lockgate/internal/limiter"
	"github.com/nanjiek/lockgate/internal/repo"
	"github.com/nanjiek/lockgate/internal/router"
	"github.com/nanjiek/lockgate/internal/rules"
	"github.com/nanjiek/lockgate/internal/rules/source"
	"github.com/nanjiek/lockgate/internal/store"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

// closers run in reverse order on shutdown.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var cleanup closers
	defer cleanup.run()

	st, err := store.Open(ctx, cfg.Database, store.WithLogger(logger))
	if err != nil {
		return err
	}
	cleanup.add(func() { _ = st.Close() })
	if cfg.Database.AutoMigrate {
		if err := st.Migrate(ctx); err != nil {
			return err
		}
	}

	cd, err := codec.New(cfg.Codec.Salt, cfg.Codec.MinLength)
	if err != nil {
		return err
	}
	bots, err := botguard.New(cfg.Bot, logger)
	if err != nil {
		return fmt.Errorf("bot policy: %w", err)
	}

	var rdb *repo.RedisRepo
	if cfg.Redis.Enabled() {
		rdb, err = repo.NewRedis(cfg.Redis, repo.WithLogger(logger))
		if err != nil {
			return err
		}
		cleanup.add(func() { _ = rdb.Close() })
	}

	lim, err := buildLimiter(cfg, rdb, cleanup.add)
	if err != nil {
		return err
	}

	var ipList *admission.IPListCache
	guardOpts := []limiter.GuardOption{limiter.WithGuardLogger(logger)}
	if cfg.IPList.Enabled {
		ipList = admission.NewIPListCache(rdb, cfg.IPList, logger)
		cleanup.add(ipList.Close)
		guardOpts = append(guardOpts, limiter.WithDenyHook(ipList.DenyHook()))
	}
	guard := limiter.NewGuard(cfg.RateLimit.Classes, lim, cfg.RateLimit.FailPolicy, guardOpts...)

	breaker, err := admission.NewBreaker(cfg.Breaker, admission.ResourceFetchAlbum, admission.ResourceIncrementView)
	if err != nil {
		return err
	}
	views := admission.NewViewCounter(
		admission.GuardedIncrement(breaker, st.IncrementViewCounter),
		cfg.ViewCounter,
		admission.WithViewLogger(logger),
	)
	cleanup.add(views.Close)

	pipeline := admission.New(cd, bots, guard, st,
		admission.WithIPList(ipList),
		admission.WithViewCounter(views),
		admission.WithBreaker(breaker),
		admission.WithFailPolicy(cfg.RateLimit.FailPolicy),
		admission.WithLogger(logger),
	)

	if cfg.Nacos.Enabled() {
		if err := startPolicyPoller(ctx, cfg.Nacos, bots, logger); err != nil {
			return err
		}
	}

	var issuer *auth.Issuer
	if cfg.Auth.JWTSecret != "" {
		issuer, err = auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, time.Duration(cfg.Auth.TokenTTLMin)*time.Minute)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("auth.jwtSecret not set, authenticated endpoints are disabled")
	}

	deps := api.Deps{
		Store:    st,
		Pipeline: pipeline,
		Codec:    cd,
		Issuer:   issuer,
		Guard:    guard,
		Routes:   router.NewMatcher(router.BuildRouteSnapshot(cfg.RateLimit.Routes)),
		Resolver: identity.NewResolver(cfg.Server.TrustProxyHeaders),
		Bots:     bots,
		Logger:   logger,
	}
	if ipList != nil {
		deps.Blocklist = ipList
	}
	server := api.NewServer(cfg.Server, deps)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.HTTPAddr, "pid", os.Getpid())
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutMs)*time.Millisecond)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("server exited properly")
	return nil
}

// buildLimiter picks the counter backend. Classes choose their algorithm;
// the in-process backend only offers the fixed window.
func buildLimiter(cfg *config.Config, rdb *repo.RedisRepo, onClose func(func())) (limiter.Limiter, error) {
	switch cfg.RateLimit.Backend {
	case "redis":
		if rdb == nil {
			return nil, errors.New("rateLimit.backend=redis requires redis")
		}
		return limiter.NewMux(limiter.AlgoFixedWindow, map[string]limiter.Limiter{
			limiter.AlgoFixedWindow:   limiter.NewRedisFixedWindow(rdb),
			limiter.AlgoSlidingWindow: limiter.NewRedisSlidingWindow(rdb),
		}), nil
	default:
		fw := limiter.NewFixedWindow(limiter.WithSweepInterval(time.Duration(cfg.RateLimit.SweepIntervalMs) * time.Millisecond))
		onClose(func() { _ = fw.Close() })
		return limiter.NewMux(limiter.AlgoFixedWindow, map[string]limiter.Limiter{
			limiter.AlgoFixedWindow: fw,
		}), nil
	}
}

func startPolicyPoller(ctx context.Context, cfg config.NacosCfg, bots *botguard.Classifier, logger *slog.Logger) error {
	poller := rules.NewPoller(source.NewNacosSource(cfg), bots, rules.PollerConfig{
		Interval:   time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		FailPolicy: cfg.FailPolicy,
	})
	if err := poller.SyncOnce(ctx); err != nil {
		if strings.EqualFold(cfg.FailPolicy, limiter.FailClosed) {
			return fmt.Errorf("load bot policy from nacos: %w", err)
		}
		logger.Warn("nacos pull failed, using configured bot policy", "err", err)
	}
	go poller.Start(ctx)
	return nil
}
