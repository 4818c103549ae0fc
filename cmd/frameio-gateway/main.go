package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/frameio/frameio-gateway/pkg/adminsession"
	"github.com/frameio/frameio-gateway/pkg/api"
	"github.com/frameio/frameio-gateway/pkg/audit"
	"github.com/frameio/frameio-gateway/pkg/config"
	"github.com/frameio/frameio-gateway/pkg/events"
	"github.com/frameio/frameio-gateway/pkg/guard"
	"github.com/frameio/frameio-gateway/pkg/identity"
	"github.com/frameio/frameio-gateway/pkg/middleware"
	"github.com/frameio/frameio-gateway/pkg/observability"
	"github.com/frameio/frameio-gateway/pkg/principal"
	"github.com/frameio/frameio-gateway/pkg/profile"
	"github.com/frameio/frameio-gateway/pkg/upstream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "frameio-gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("environment", cfg.Environment).Info("starting frameio-gateway")

	handlerLog := logrus.New()
	handlerLog.SetFormatter(&logrus.JSONFormatter{})

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	ctx := context.Background()

	var otelProviders *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		otelProviders, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			return fmt.Errorf("otel init failed: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable at startup, continuing degraded")
		}
	}

	// The gateway runs without an audit database, it just discards events.
	var auditLogger audit.Logger = audit.NopLogger{}
	var auditPG *audit.PostgresLogger
	cronRunner := cron.New()
	if cfg.Audit.PostgresURL != "" {
		auditPG, err = audit.NewPostgresLogger(cfg.Audit.PostgresURL, logger)
		if err != nil {
			return fmt.Errorf("audit store init failed: %w", err)
		}
		auditLogger = auditPG
		if err := auditPG.ScheduleRetention(cronRunner, cfg.Audit.SweepSchedule, cfg.Audit.RetentionDays); err != nil {
			return err
		}
		cronRunner.Start()
	} else {
		logger.Warn("no audit database configured, audit events will be discarded")
	}

	bus := events.NewBus(64)
	unsub := logAPIErrors(bus, logger)

	client := upstream.NewClient(upstream.Config{
		BaseURL:    cfg.Upstream.BaseURL,
		Timeout:    cfg.Upstream.Timeout,
		Production: cfg.IsProduction(),
		DevUserID:  cfg.Identity.DevUserID,
		DevOrgID:   cfg.Identity.DevOrgID,
	}, upstream.NewStaticTokenSource(""), bus, metrics, handlerLog)

	cache, err := profile.NewCache(cfg.Profile.CacheSize, cfg.Profile.CacheTTL, redisClient, metrics)
	if err != nil {
		return fmt.Errorf("profile cache init failed: %w", err)
	}

	roleMap := profile.DefaultRoleMap()
	if cfg.Profile.RoleMapPath != "" {
		roleMap, err = profile.LoadRoleMap(cfg.Profile.RoleMapPath)
		if err != nil {
			return fmt.Errorf("role map load failed: %w", err)
		}
		if err := roleMap.Watch(cfg.Profile.RoleMapPath, logger); err != nil {
			logger.WithError(err).Warn("role map hot reload unavailable")
		}
	}
	resolver := profile.NewResolver(client.Users(), cache, roleMap, logger)

	store, err := adminsession.NewStore(
		cfg.Admin.Username, cfg.Admin.Password, cfg.Admin.Secret,
		cfg.Admin.SessionTTL, logger,
		sessionOpts(cfg)...,
	)
	if err != nil {
		return fmt.Errorf("admin session store init failed: %w", err)
	}

	var idp *identity.Provider
	if cfg.Identity.IssuerURL != "" {
		idp, err = identity.NewProvider(ctx, identity.Config{
			IssuerURL:    cfg.Identity.IssuerURL,
			ClientID:     cfg.Identity.ClientID,
			ClientSecret: cfg.Identity.ClientSecret,
			RedirectURL:  cfg.Identity.RedirectURL,
			Scopes:       cfg.Identity.Scopes,
			Production:   cfg.IsProduction(),
			DevUserID:    cfg.Identity.DevUserID,
			DevOrgID:     cfg.Identity.DevOrgID,
		}, logger)
		if err != nil {
			return fmt.Errorf("identity provider init failed: %w", err)
		}
	} else {
		logger.Warn("no OIDC issuer configured, product authentication disabled")
	}

	var posterLimit *middleware.RateLimiter
	if redisClient != nil {
		posterLimit = middleware.NewRateLimiter(
			redisClient, "poster",
			cfg.RateLimit.PosterLimit, cfg.RateLimit.PosterWindow,
			logger, metrics,
		)
	}

	server := api.NewServer(api.Deps{
		Admin: api.NewAdminHandlers(store, client, auditLogger, handlerLog, metrics),
		Dashboard: api.NewDashboardHandlers(client, resolver, auditLogger, handlerLog, upstream.PosterTimeouts{
			Generate:  cfg.Upstream.PosterGenerateTimeout,
			Edit:      cfg.Upstream.PosterEditTimeout,
			Composite: cfg.Upstream.PosterCompositeTimeout,
			Status:    cfg.Upstream.PosterStatusTimeout,
		}),
		IDP:         idp,
		AdminGuard:  guard.NewAdminGuard(store, logger, metrics),
		UserRoutes:  guard.RequireRoles(resolver, logger, metrics, "/", principal.RoleAdmin, principal.RoleManager),
		OrgRoutes:   guard.RequireRoles(resolver, logger, metrics, "/", principal.RoleAdmin),
		PermGuard:   guard.NewPermissionGuard(resolver, logger, metrics),
		Logger:      logger,
		Metrics:     metrics,
		PosterLimit: posterLimit,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Probes and metrics live on their own port so they stay reachable
	// when the public listener is saturated.
	health := observability.NewHealthChecker(auditDBHandle(auditPG), redisClient, client)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", health.Liveness)
	healthMux.HandleFunc("/readyz", health.Readiness)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	sm := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		unsub()
		roleMap.Close()
		if redisClient != nil {
			redisClient.Close()
		}
		if auditPG != nil {
			cronCtx := cronRunner.Stop()
			select {
			case <-cronCtx.Done():
			case <-time.After(10 * time.Second):
			}
			return auditPG.Close()
		}
		return nil
	})
	if otelProviders != nil {
		sm.RegisterShutdownFunc(otelProviders.Shutdown)
	}

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("gateway listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server failed")
		}
	}()

	return sm.WaitForShutdown()
}

func auditDBHandle(pg *audit.PostgresLogger) *sql.DB {
	if pg == nil {
		return nil
	}
	return pg.DB()
}

func sessionOpts(cfg *config.Config) []adminsession.Option {
	if cfg.Admin.AllowInsecureCookie {
		return []adminsession.Option{adminsession.WithInsecureCookie()}
	}
	return nil
}

// logAPIErrors drains the event bus into the structured log so backend
// failures are visible even when no other subscriber cares.
func logAPIErrors(bus *events.Bus, logger *observability.Logger) func() {
	ch, cancel := bus.Subscribe()
	go func() {
		for ev := range ch {
			logger.WithFields(map[string]interface{}{
				"type":     string(ev.Type),
				"endpoint": ev.Endpoint,
				"status":   ev.Status,
				"message":  ev.Message,
			}).Warn("backend api error")
		}
	}()
	return cancel
}
