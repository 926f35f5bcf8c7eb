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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alera-fm/alera-backend/internal/cron"
	"github.com/alera-fm/alera-backend/internal/emails"
	"github.com/alera-fm/alera-backend/internal/scans"
	"github.com/alera-fm/alera-backend/pkg/config"
	"github.com/alera-fm/alera-backend/pkg/db"
	"github.com/alera-fm/alera-backend/pkg/detection"
	"github.com/alera-fm/alera-backend/pkg/logger"
	"github.com/alera-fm/alera-backend/pkg/mailer"
	"github.com/alera-fm/alera-backend/pkg/metrics"
	"github.com/alera-fm/alera-backend/pkg/migrate"
	"github.com/alera-fm/alera-backend/pkg/outbox"
	"github.com/alera-fm/alera-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	scanMetrics := metrics.NewScanMetrics(prometheus.DefaultRegisterer)

	scanPoller, err := buildScanPoller(cfg, logg, dbClient, redisClient, cronMetrics, scanMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build scan poller", err)
		os.Exit(1)
	}
	emailScheduler, err := buildEmailScheduler(cfg, logg, dbClient, redisClient, cronMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build email scheduler", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	service, err := NewService(ServiceParams{
		Logger: logg,
		DB:     dbClient,
		Redis:  redisClient,
		Schedulers: map[string]scheduler{
			"scan-poll": scanPoller,
			"email":     emailScheduler,
		},
		MetricsServer: &http.Server{
			Addr:              ":" + cfg.App.MetricsPort,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}

func buildScanPoller(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	cronMetrics *metrics.CronJobMetrics,
	scanMetrics *metrics.ScanMetrics,
) (*cron.Service, error) {
	scanRepo := scans.NewRepository(dbClient.DB())
	scanService, err := scans.NewService(scans.ServiceParams{
		Repo:              scanRepo,
		TransactionRunner: dbClient,
		Outbox:            outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Logger:            logg,
		Metrics:           scanMetrics,
	})
	if err != nil {
		return nil, err
	}

	params := cron.ScanPollJobParams{
		Logger:     logg,
		Repo:       scanRepo,
		Scans:      scanService,
		Metrics:    scanMetrics,
		Timeout:    cfg.Scan.Timeout,
		BatchSize:  cfg.Scan.BatchSize,
		ClaimLease: cfg.Scan.ClaimLease,
	}
	if vendor := detectionClient(cfg, logg); vendor != nil {
		params.Vendor = vendor
	}
	job, err := cron.NewScanPollJob(params)
	if err != nil {
		return nil, err
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(job.Name()), 0)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Name:     "scan-poll",
		Logger:   logg,
		Registry: cron.NewRegistry(job),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Scan.PollInterval,
	})
}

func buildEmailScheduler(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	cronMetrics *metrics.CronJobMetrics,
) (*cron.Service, error) {
	params := cron.EmailDispatchJobParams{
		Logger:      logg,
		Queue:       emails.NewRepository(dbClient.DB()),
		BatchSize:   cfg.Email.BatchSize,
		MaxAttempts: cfg.Email.MaxAttempts,
	}
	if sender := sendgridSender(cfg, logg); sender != nil {
		params.Sender = sender
	}
	dispatch, err := cron.NewEmailDispatchJob(params)
	if err != nil {
		return nil, err
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, err
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("email-scheduler"), 0)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Name:     "email",
		Logger:   logg,
		Registry: cron.NewRegistry(dispatch, retention),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Email.DispatchInterval,
	})
}

// detectionClient returns nil when scanning is disabled or unconfigured; the
// poller then skips every cycle and outstanding scans stay in scanning.
func detectionClient(cfg *config.Config, logg *logger.Logger) *detection.Client {
	if !cfg.FeatureFlags.AudioScan {
		logg.Warn(context.Background(), "audio scanning disabled; scan polling is a no-op")
		return nil
	}
	client, err := detection.NewClient(cfg.Detection.APIKey, cfg.Detection.BaseURL, detection.WithTimeout(cfg.Detection.Timeout))
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "reason", err.Error()), "detection vendor not configured; scan polling is a no-op")
		return nil
	}
	return client
}

func sendgridSender(cfg *config.Config, logg *logger.Logger) *mailer.SendGrid {
	sender, err := mailer.NewSendGrid(cfg.Sendgrid.APIKey, cfg.Sendgrid.DefaultFrom)
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "reason", err.Error()), "sendgrid not configured; email dispatch disabled")
		return nil
	}
	return sender
}
