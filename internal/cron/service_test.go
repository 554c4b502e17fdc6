package cron

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/metrics"
)

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
	err      error
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]bool{}} }

func (f *fakeLocker) TryLock(_ context.Context, job string) (func(context.Context) error, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held[job] {
		return nil, false, nil
	}
	f.held[job] = true
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, job)
		f.released = append(f.released, job)
		return nil
	}, true, nil
}

type testJob struct {
	mu     sync.Mutex
	name   string
	every  time.Duration
	err    error
	panics bool
	items  int64
	runs   int
}

func (t *testJob) Name() string         { return t.name }
func (t *testJob) Every() time.Duration { return t.every }

func (t *testJob) Run(context.Context) (Report, error) {
	t.mu.Lock()
	t.runs++
	t.mu.Unlock()
	if t.panics {
		panic("nil map write")
	}
	return Report{Items: t.items}, t.err
}

func (t *testJob) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

func newTestService(t *testing.T, locker Locker, m *metrics.CronJobMetrics, jobs ...Job) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: NewRegistry(jobs...),
		Locker:   locker,
		Metrics:  m,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestServiceTickRecordsOutcomePerJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCronJobMetrics(reg)
	locker := newFakeLocker()
	ok := &testJob{name: "outbox_retention", items: 12}
	failing := &testJob{name: "ledger_reconcile", err: errors.New("statement timeout")}
	service := newTestService(t, locker, m, ok, failing)

	ctx := context.Background()
	service.tick(ctx, ok)
	service.tick(ctx, failing)

	if ok.count() != 1 || failing.count() != 1 {
		t.Fatalf("expected each job to run once, got %d and %d", ok.count(), failing.count())
	}
	if len(locker.released) != 2 {
		t.Fatalf("expected both leases released, got %v", locker.released)
	}
	if got := itemsFor(t, reg, ok.name); got != 12 {
		t.Fatalf("expected 12 items recorded, got %f", got)
	}
	if got := itemsFor(t, reg, failing.name); got != 0 {
		t.Fatalf("failed runs must not report items, got %f", got)
	}
}

func itemsFor(t *testing.T, reg *prometheus.Registry, job string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "stockledger_cron_job_items_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == job {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestServiceTickSkipsWhenJobLeasedElsewhere(t *testing.T) {
	locker := newFakeLocker()
	locker.held["ledger_reconcile"] = true
	job := &testJob{name: "ledger_reconcile"}
	other := &testJob{name: "notification_cleanup"}
	service := newTestService(t, locker, nil, job, other)

	service.tick(context.Background(), job)
	service.tick(context.Background(), other)

	if job.count() != 0 {
		t.Fatalf("expected leased job to be skipped, ran %d", job.count())
	}
	if other.count() != 1 {
		t.Fatalf("a lease on one job must not block another, ran %d", other.count())
	}
}

func TestServiceTickSurvivesPanicAndReleases(t *testing.T) {
	locker := newFakeLocker()
	job := &testJob{name: "ledger_reconcile", panics: true}
	service := newTestService(t, locker, nil, job)

	service.tick(context.Background(), job)

	if len(locker.released) != 1 {
		t.Fatalf("expected lease released after panic, got %v", locker.released)
	}
}

func TestServiceTickSkipsOnLockError(t *testing.T) {
	locker := newFakeLocker()
	locker.err = errors.New("connection refused")
	job := &testJob{name: "ledger_reconcile"}
	service := newTestService(t, locker, nil, job)

	service.tick(context.Background(), job)
	if job.count() != 0 {
		t.Fatalf("job must not run without a lease, ran %d", job.count())
	}
}

func TestServiceRunsJobsOnOwnCadence(t *testing.T) {
	fast := &testJob{name: "fast", every: 10 * time.Millisecond}
	slow := &testJob{name: "slow", every: time.Hour}
	service := newTestService(t, newFakeLocker(), nil, fast, slow)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	err := service.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context error, got %v", err)
	}
	if fast.count() < 3 {
		t.Fatalf("expected fast job to tick repeatedly, ran %d", fast.count())
	}
	if slow.count() != 1 {
		t.Fatalf("expected slow job to run only at start, ran %d", slow.count())
	}
}

func TestNewServiceRequiresLocker(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})}); err == nil {
		t.Fatal("expected missing locker to fail")
	}
}
