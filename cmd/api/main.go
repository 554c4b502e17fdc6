package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/stockledger/api/routes"
	"github.com/angelmondragon/stockledger/internal/inventory"
	"github.com/angelmondragon/stockledger/internal/lowstock"
	"github.com/angelmondragon/stockledger/internal/memberships"
	"github.com/angelmondragon/stockledger/internal/notifications"
	"github.com/angelmondragon/stockledger/pkg/config"
	"github.com/angelmondragon/stockledger/pkg/db"
	"github.com/angelmondragon/stockledger/pkg/enums"
	"github.com/angelmondragon/stockledger/pkg/instance"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/metrics"
	"github.com/angelmondragon/stockledger/pkg/migrate"
	"github.com/angelmondragon/stockledger/pkg/outbox"
	"github.com/angelmondragon/stockledger/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "api stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry := prometheus.DefaultRegisterer
	lowStockMetrics := metrics.NewLowStockMetrics(registry)
	monitor := lowstock.NewMonitor(lowstock.MonitorOptions{
		QueueSize: cfg.Inventory.LowStockQueueSize,
		Metrics:   lowStockMetrics,
		Logger:    logg,
	})

	outboxRepo := outbox.NewRepository(dbClient.DB())
	membershipsRepo := memberships.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())

	params := inventory.ServiceParams{
		DB:         dbClient.DB(),
		Tx:         dbClient,
		Store:      inventory.NewRepository(dbClient.DB()),
		Ledger:     inventory.NewLedgerRepository(dbClient.DB()),
		Events:     outbox.NewService(outboxRepo, logg),
		Metrics:    metrics.NewInventoryMetrics(registry),
		Logger:     logg,
		MaxRetries: cfg.Inventory.MutationMaxRetries,
	}
	if cfg.FeatureFlags.LowStockAlerts {
		params.Alerts = monitor
	}
	inventoryService, err := inventory.NewService(params)
	if err != nil {
		return err
	}

	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		return err
	}

	dispatcher, err := notifications.NewDispatcher(notificationsRepo, enums.NotificationTypeLowStock)
	if err != nil {
		return err
	}
	alertWorker, err := lowstock.NewWorker(lowstock.WorkerParams{
		Monitor:         monitor,
		Actors:          membershipsRepo,
		Dispatcher:      dispatcher,
		Cooldown:        redisClient,
		CooldownTTL:     cfg.Inventory.LowStockAlertCooldown,
		Workers:         cfg.Inventory.LowStockWorkers,
		DispatchTimeout: cfg.Inventory.DispatchTimeout,
		Metrics:         lowStockMetrics,
		Logger:          logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Outbox:        outboxRepo,
			Permissions:   membershipsRepo,
			Inventory:     inventoryService,
			Notifications: notificationsService,
			Gatherer:      prometheus.DefaultGatherer,
		}),
	}

	ctx, stop := signal.NotifyContext(bootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"instance":       instance.ID(),
		"addr":           addr,
		"lowStockAlerts": cfg.FeatureFlags.LowStockAlerts,
	})
	logg.Info(ctx, "starting api server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return alertWorker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(ctx, "api shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGracePeriod)
		defer cancel()
		shutdownErr := server.Shutdown(shutdownCtx)
		// in-flight requests are done; stop accepting alerts so workers drain and exit
		monitor.Close()
		return shutdownErr
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
