package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/rackbook/pkg/api"
	"github.com/platinummonkey/rackbook/pkg/audit"
	"github.com/platinummonkey/rackbook/pkg/auth"
	"github.com/platinummonkey/rackbook/pkg/config"
	"github.com/platinummonkey/rackbook/pkg/database"
	"github.com/platinummonkey/rackbook/pkg/inventory"
	"github.com/platinummonkey/rackbook/pkg/middleware"
	"github.com/platinummonkey/rackbook/pkg/mutation"
	"github.com/platinummonkey/rackbook/pkg/observability"
	"github.com/platinummonkey/rackbook/pkg/rbac"
	"github.com/platinummonkey/rackbook/pkg/revalidate"
	"github.com/platinummonkey/rackbook/pkg/sso"
	"github.com/platinummonkey/rackbook/pkg/users"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("rackbook exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := observability.InitTracing(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, cfg.Database.Connection())
	if err != nil {
		return err
	}
	if err := database.RunMigrations(ctx, db, logger.Logrus()); err != nil {
		db.Close()
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	var (
		redisClient *redis.Client
		invalidator revalidate.Invalidator = revalidate.Noop{}
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			db.Close()
			return err
		}
		redisClient = redis.NewClient(opts)
		invalidator = revalidate.NewRedisPublisher(redisClient, cfg.Redis.Channel)
		logger.WithField("channel", cfg.Redis.Channel).Info("View invalidation publishing to Redis")
	}

	authenticator, err := sso.NewOIDCProvider(ctx, cfg.OIDC)
	if err != nil {
		db.Close()
		return err
	}

	guard := rbac.NewGuard(auth.ContextAccessor{}).WithMetrics(metrics)
	recorder := audit.NewDBRecorder().WithMetrics(metrics)
	pipeline := mutation.NewPipeline(db, guard, recorder, invalidator).WithMetrics(metrics)

	userStore := users.NewStore()
	sessions := sso.NewSessionManager(db, cfg.Auth.SessionTTL).WithMetrics(metrics)
	resolver := sso.NewIdentityResolver(db, userStore, cfg.Auth.PrivilegedGroupID).WithMetrics(metrics)

	authLimiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.RequestsPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.RateLimit.Burst,
	})
	authLimiter.StartCleanup(ctx)

	apiServer := api.NewServer(api.Dependencies{
		Logger:      logger,
		Metrics:     metrics,
		Sessions:    sessions,
		AuthLimiter: authLimiter,
		Inventory:   inventory.NewHandlers(inventory.NewService(inventory.NewStore(), pipeline)),
		Audit:       audit.NewHandlers(audit.NewService(audit.NewDBStore(db), guard)),
		Users:       users.NewHandlers(users.NewService(userStore, pipeline)),
		SSO: sso.NewHandlers(authenticator, resolver, sessions, guard).
			WithSecureCookies(cfg.Auth.SecureCookies),
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient, version).
		WithMetrics(metrics).
		WithSchemaVersion(database.LatestVersion()))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Auth.SessionCleanup, func() {
		defer observability.RecoverPanic(logger, "session cleanup")
		n, err := sessions.CleanupExpired(context.Background())
		if err != nil {
			logger.WithError(err).Error("Session cleanup failed")
			return
		}
		metrics.ObserveDBStats(db.Stats())
		logger.WithField("removed", n).Debug("Expired sessions removed")
	}); err != nil {
		db.Close()
		return err
	}
	scheduler.Start()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, httpServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		stopped := scheduler.Stop()
		select {
		case <-stopped.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownTracing(ctx, tp, logger)
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error { return redisClient.Close() })
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error { return db.Close() })

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", httpServer.Addr).WithField("version", version).Info("Starting rackbook API server")
		return listen(httpServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		return listen(healthServer)
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})

	return g.Wait()
}

func listen(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
