package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/helios-erp/helios/internal/app"
	"github.com/helios-erp/helios/internal/extensions"
	"github.com/helios-erp/helios/internal/observability"
	"github.com/helios-erp/helios/internal/permissions"
	"github.com/helios-erp/helios/internal/platform/cache"
	"github.com/helios-erp/helios/internal/platform/db"
	"github.com/helios-erp/helios/internal/subscription"
	"github.com/helios-erp/helios/internal/users"
	"github.com/helios-erp/helios/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	states, err := extensions.NewStateManager(cfg.ExtensionsRoot)
	if err != nil {
		logger.Error("extensions root", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	registry := extensions.NewRegistry()
	extRepo := extensions.NewRepository(dbpool)
	migrator := extensions.NewMigrator(dbpool, logger)
	permRepo := permissions.NewRepository(dbpool)
	permService := permissions.NewService(permRepo)

	// Blocking startup phase: every active extension is registered before
	// the host accepts traffic. A single extension failing load is logged
	// and skipped inside LoadAll.
	loader := extensions.NewLoader(extensions.LoaderConfig{
		States:      states,
		Registry:    registry,
		Repo:        extRepo,
		Migrator:    migrator,
		Permissions: permService,
		Logger:      logger,
	})
	loadReport, err := loader.LoadAll(ctx)
	if err != nil {
		logger.Error("extension load pass", slog.Any("error", err))
		os.Exit(1)
	}
	for _, id := range loadReport.Loaded {
		metrics.ObserveExtensionLoad(id, true)
	}
	for _, le := range loadReport.Skipped {
		metrics.ObserveExtensionLoad(le.ExtensionID, false)
	}
	logger.Info("extensions loaded",
		slog.Int("loaded", len(loadReport.Loaded)),
		slog.Int("skipped", len(loadReport.Skipped)),
		slog.Int("restart_pending", len(loadReport.Pending)))

	validator := extensions.NewValidator(cfg.HostVersion)
	// Namespace ownership comes from the manifests on disk, so inactive
	// but installed extensions still block a colliding install.
	detector := extensions.NewConflictDetector(extensions.NewPgIntrospector(dbpool), extensions.NewDiskNamespaces(states))
	installer := extensions.NewInstaller(extensions.InstallerConfig{
		States:    states,
		Validator: validator,
		Conflicts: detector,
		Migrator:  migrator,
		Repo:      extRepo,
		Bundled:   extensions.DefaultBundled(),
		Logger:    logger,
		Observe:   metrics.ObserveInstall,
	})

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	userService := users.NewService(users.NewRepository(dbpool))
	sessions := users.NewSessionStore(redisClient, 0)
	usersHandler := users.NewHandler(logger, userService, sessions)

	entitlementClient := subscription.NewHTTPClient(cfg.EntitlementURL, cfg.EntitlementTimeout)
	checker := subscription.NewChecker(entitlementClient, subscription.NewCache(redisClient), cfg.SubscriptionTTL, logger)
	checker.Observe = metrics.ObserveSubscriptionCheck

	var paid []string
	for _, id := range registry.IDs() {
		if ext, ok := registry.Get(id); ok && ext.Manifest.Kind != extensions.KindFree {
			paid = append(paid, id)
		}
	}
	if len(paid) > 0 {
		if err := jobClient.EnqueueEntitlementWarm(ctx, paid); err != nil {
			logger.Warn("enqueue entitlement warm", slog.Any("error", err))
		}
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Registry:           registry,
		ExtensionsHandler:  extensions.NewHandler(logger, states, registry, extRepo, installer, validator, jobClient),
		PermissionsHandler: permissions.NewHandler(logger, permService),
		PermissionsMW:      permissions.Middleware{Service: permService, Logger: logger},
		Sessions:           sessions,
		UsersHandler:       usersHandler,
		SubscriptionHdlr:   subscription.NewHandler(logger, checker, registry),
		Subscriptions:      checker,
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
