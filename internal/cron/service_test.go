package cron

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alera-fm/alera-backend/pkg/logger"
	"github.com/alera-fm/alera-backend/pkg/metrics"
)

type fakeLock struct {
	mu       sync.Mutex
	held     bool
	denied   bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied || f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error

	mu   sync.Mutex
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.mu.Lock()
	t.runs++
	t.mu.Unlock()
	return t.err
}

func (t *testJob) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

// blockingJob parks each run until the test releases it.
type blockingJob struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingJob) Name() string { return "blocking" }

func (b *blockingJob) Run(ctx context.Context) error {
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

type manualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { close(m.stopped) }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func newTestService(t *testing.T, lock Lock, ticker *manualTicker, reg prometheus.Registerer, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Name:      "test",
		Logger:    testLogger(),
		Registry:  NewRegistry(jobs...),
		Lock:      lock,
		Metrics:   metrics.NewCronJobMetrics(reg),
		Interval:  time.Minute,
		NewTicker: func(time.Duration) Ticker { return ticker },
	})
	require.NoError(t, err)
	return svc
}

func TestRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "success"}
	failing := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	svc := newTestService(t, lock, newManualTicker(), nil, failing, ok)

	require.NoError(t, svc.runCycle(context.Background()))
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, lock.releases)
}

func TestRunCycleSkipsWhenLockHeldElsewhere(t *testing.T) {
	job := &testJob{name: "job"}
	reg := prometheus.NewRegistry()
	svc := newTestService(t, &fakeLock{denied: true}, newManualTicker(), reg, job)

	require.NoError(t, svc.runCycle(context.Background()))
	assert.Zero(t, job.count())
	assert.Equal(t, 1.0, skippedCount(t, reg, "locked"))
}

func TestStartRunsImmediatelyAndOnEachTick(t *testing.T) {
	job := &testJob{name: "job"}
	ticker := newManualTicker()
	svc := newTestService(t, &fakeLock{}, ticker, nil, job)

	require.NoError(t, svc.Start(context.Background()))
	require.Eventually(t, func() bool { return job.count() == 1 }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return !svc.inFlight.Load() }, time.Second, 5*time.Millisecond)
	ticker.ch <- time.Now()
	require.Eventually(t, func() bool { return job.count() == 2 }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, svc.Start(context.Background()), errAlreadyStarted)
	svc.Stop()
	<-ticker.stopped
	svc.Stop()
}

func TestTickSkippedWhileCycleInFlight(t *testing.T) {
	job := &blockingJob{started: make(chan struct{}, 2), release: make(chan struct{})}
	ticker := newManualTicker()
	reg := prometheus.NewRegistry()
	svc := newTestService(t, &fakeLock{}, ticker, reg, job)

	require.NoError(t, svc.Start(context.Background()))
	<-job.started

	ticker.ch <- time.Now()
	require.Eventually(t, func() bool { return skippedCount(t, reg, "in_flight") == 1 }, time.Second, 5*time.Millisecond)

	close(job.release)
	svc.Stop()
	assert.Len(t, job.started, 0)
}

func skippedCount(t *testing.T, reg *prometheus.Registry, reason string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "alera_job_cycles_skipped_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "reason" && lp.GetValue() == reason {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
