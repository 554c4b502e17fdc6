package cron

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/metrics"
)

const (
	defaultInterval = time.Hour
	releaseTimeout  = 5 * time.Second
)

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locker   Locker
	Metrics  *metrics.CronJobMetrics
	// Interval applies to jobs that do not declare their own cadence.
	Interval time.Duration
}

// Service runs every registered job in its own loop. A job runs once at start
// and then every cadence tick, but only on the replica that wins its lease.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locker   Locker
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locker:   params.Locker,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run blocks until ctx is canceled and returns ctx.Err().
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range s.registry.Jobs() {
		g.Go(func() error {
			s.loop(gctx, job)
			return nil
		})
	}
	<-ctx.Done()
	_ = g.Wait()
	s.logg.Info(ctx, "cron service context canceled")
	return ctx.Err()
}

func (s *Service) loop(ctx context.Context, job Job) {
	every := cadence(job, s.interval)
	jobCtx := s.logg.WithFields(ctx, map[string]any{
		"job":   job.Name(),
		"every": every.String(),
	})
	s.tick(jobCtx, job)

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(jobCtx, job)
		}
	}
}

// tick runs job once if this replica wins the lease.
func (s *Service) tick(ctx context.Context, job Job) {
	release, ok, err := s.locker.TryLock(ctx, job.Name())
	if err != nil {
		s.logg.Error(ctx, "cron lock acquire failed", err)
		s.metrics.IncFailure(job.Name())
		return
	}
	if !ok {
		s.logg.Info(ctx, "job leased by another instance; skipping")
		s.metrics.IncSkipped(job.Name())
		return
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if relErr := release(relCtx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()
	s.runJob(ctx, job)
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "event", "cron.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	report, err := s.invoke(jobCtx, job)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms": duration.Milliseconds(),
		"items":       report.Items,
	})
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
	s.metrics.AddItems(job.Name(), report.Items)
	s.metrics.MarkSuccess(job.Name(), time.Now())
}

// invoke turns a job panic into a failed run so the other loops keep going.
func (s *Service) invoke(ctx context.Context, job Job) (report Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	return job.Run(ctx)
}
