package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alera-fm/alera-backend/pkg/logger"
	"github.com/alera-fm/alera-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

var errAlreadyStarted = errors.New("scheduler already started")

// Ticker is the subset of time.Ticker the scheduler consumes.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func NewStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// ServiceParams configure the cron service.
type ServiceParams struct {
	Name      string
	Logger    *logger.Logger
	Registry  *Registry
	Lock      Lock
	Metrics   *metrics.CronJobMetrics
	Interval  time.Duration
	NewTicker TickerFactory
}

// Service runs its registered jobs once at start and then on every tick. Each cycle
// runs on its own goroutine; a tick that arrives while the previous cycle is still
// going is skipped, and a cycle only runs while this process holds the lock.
type Service struct {
	name      string
	logg      *logger.Logger
	registry  *Registry
	lock      Lock
	metrics   *metrics.CronJobMetrics
	interval  time.Duration
	newTicker TickerFactory
	now       func() time.Time

	inFlight atomic.Bool
	cycles   sync.WaitGroup

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	newTicker := params.NewTicker
	if newTicker == nil {
		newTicker = NewStdTicker
	}
	name := params.Name
	if name == "" {
		name = "cron"
	}
	return &Service{
		name:      name,
		logg:      params.Logger,
		registry:  registry,
		lock:      params.Lock,
		metrics:   params.Metrics,
		interval:  interval,
		newTicker: newTicker,
		now:       time.Now,
	}, nil
}

// Run blocks until ctx is canceled, then waits for the cycle in flight to finish.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = s.logg.WithField(ctx, "scheduler", s.name)

	ticker := s.newTicker(s.interval)
	defer ticker.Stop()
	defer s.cycles.Wait()

	s.trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "scheduler stopping")
			return ctx.Err()
		case <-ticker.C():
			s.trigger(ctx)
		}
	}
}

// Start runs the scheduler in the background until Stop is called or ctx ends.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go func() {
		defer close(done)
		_ = s.Run(runCtx)
	}()
	return nil
}

// Stop cancels the scheduler and waits for the running cycle to return.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Service) trigger(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logg.Warn(ctx, "previous cycle still running; skipping tick")
		s.metrics.IncSkipped("in_flight")
		return
	}
	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		defer s.inFlight.Store(false)
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "scheduled run failed", err)
		}
	}()
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another worker holds the lock; skipping this cycle")
		s.metrics.IncSkipped("locked")
		return nil
	}
	defer func() {
		// Release on a fresh context so a shutdown does not strand the lock until its TTL.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if relErr := s.lock.Release(relCtx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	s.logg.Debug(jobCtx, "job start")
	start := s.now()
	err := job.Run(jobCtx)
	duration := s.now().Sub(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
}
