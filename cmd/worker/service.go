package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/alera-fm/alera-backend/pkg/logger"
)

const metricsShutdownTimeout = 5 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type scheduler interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger     *logger.Logger
	DB         pinger
	Redis      pinger
	Schedulers map[string]scheduler
	// MetricsServer is optional; when set it is served for the life of the worker.
	MetricsServer *http.Server
}

// Service runs every scheduler side by side and stops them all when one fails
// or the context ends.
type Service struct {
	logg       *logger.Logger
	db         pinger
	redis      pinger
	schedulers map[string]scheduler
	metrics    *http.Server
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if len(params.Schedulers) == 0 {
		return nil, errors.New("at least one scheduler is required")
	}
	return &Service{
		logg:       params.Logger,
		db:         params.DB,
		redis:      params.Redis,
		schedulers: params.Schedulers,
		metrics:    params.MetricsServer,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(s.schedulers)+1)
	for name, sched := range s.schedulers {
		wg.Add(1)
		go func(name string, sched scheduler) {
			defer wg.Done()
			if err := sched.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s scheduler: %w", name, err)
				return
			}
			errCh <- nil
		}(name, sched)
	}
	if s.metrics != nil {
		go func() {
			s.logg.Info(s.logg.WithField(ctx, "addr", s.metrics.Addr), "serving worker metrics")
			if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
	case runErr = <-errCh:
		if runErr != nil {
			s.logg.Error(ctx, "scheduler stopped unexpectedly", runErr)
		}
	}
	cancel()
	s.shutdownMetrics(ctx)
	wg.Wait()

	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}

func (s *Service) shutdownMetrics(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
	defer cancel()
	if err := s.metrics.Shutdown(shutdownCtx); err != nil {
		s.logg.Error(ctx, "metrics server shutdown failed", err)
	}
}
