package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alera-fm/alera-backend/api/routes"
	"github.com/alera-fm/alera-backend/internal/emails"
	"github.com/alera-fm/alera-backend/internal/releases"
	"github.com/alera-fm/alera-backend/internal/scans"
	"github.com/alera-fm/alera-backend/internal/subscriptions"
	"github.com/alera-fm/alera-backend/pkg/config"
	"github.com/alera-fm/alera-backend/pkg/db"
	"github.com/alera-fm/alera-backend/pkg/detection"
	"github.com/alera-fm/alera-backend/pkg/logger"
	"github.com/alera-fm/alera-backend/pkg/metrics"
	"github.com/alera-fm/alera-backend/pkg/migrate"
	"github.com/alera-fm/alera-backend/pkg/outbox"
	"github.com/alera-fm/alera-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:   subscriptions.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	scanRepo := scans.NewRepository(dbClient.DB())
	scanParams := scans.ServiceParams{
		Repo:              scanRepo,
		TransactionRunner: dbClient,
		Outbox:            outboxService,
		Logger:            logg,
		Metrics:           metrics.NewScanMetrics(prometheus.DefaultRegisterer),
	}
	if vendor := detectionClient(cfg, logg); vendor != nil {
		scanParams.Vendor = vendor
	}
	scanService, err := scans.NewService(scanParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create scan service", err)
		os.Exit(1)
	}

	releaseService, err := releases.NewService(releases.ServiceParams{
		Repo:              releases.NewRepository(dbClient.DB()),
		Scans:             scanRepo,
		Entitlements:      subscriptionService,
		TransactionRunner: dbClient,
		Outbox:            outboxService,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create release service", err)
		os.Exit(1)
	}

	emailService, err := emails.NewService(emails.ServiceParams{
		Repo:   emails.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create email service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:            dbClient,
			Redis:         redisClient,
			Gatherer:      prometheus.DefaultGatherer,
			Releases:      releaseService,
			Scans:         scanService,
			Subscriptions: subscriptionService,
			Emails:        emailService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func detectionClient(cfg *config.Config, logg *logger.Logger) *detection.Client {
	if !cfg.FeatureFlags.AudioScan {
		logg.Warn(context.Background(), "audio scanning disabled; submitted scans stay pending")
		return nil
	}
	client, err := detection.NewClient(cfg.Detection.APIKey, cfg.Detection.BaseURL, detection.WithTimeout(cfg.Detection.Timeout))
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "reason", err.Error()), "detection vendor not configured; submitted scans stay pending")
		return nil
	}
	return client
}
