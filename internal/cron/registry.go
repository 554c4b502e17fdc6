package cron

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Job is one maintenance task. Jobs that also implement Scheduled run on their
// own cadence; the rest use the service default.
type Job interface {
	Name() string
	Run(ctx context.Context) (Report, error)
}

type Scheduled interface {
	Every() time.Duration
}

// Report summarizes one run. Items is whatever the job counts: rows purged,
// records found drifting.
type Report struct {
	Items int64
}

// txRunner is satisfied by *db.Client.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Registry holds jobs by name; registering a name twice replaces the first.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	for i, existing := range r.jobs {
		if existing.Name() == job.Name() {
			r.jobs[i] = job
			return
		}
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

func cadence(job Job, fallback time.Duration) time.Duration {
	if s, ok := job.(Scheduled); ok && s.Every() > 0 {
		return s.Every()
	}
	return fallback
}
