package cron

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Job is one unit of scheduled maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduled struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Registry holds jobs in registration order. A job registered with a period
// runs at most once per period; otherwise it runs every cycle.
type Registry struct {
	mu      sync.Mutex
	entries []*scheduled
}

// NewRegistry registers jobs to run every cycle. Duplicate names panic.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(job Job) error {
	return r.Every(job, 0)
}

// Every registers job with a minimum spacing between runs.
func (r *Registry) Every(job Job, every time.Duration) error {
	if job == nil {
		return nil
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("cron job name required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.job.Name() == name {
			return fmt.Errorf("cron job %q already registered", name)
		}
	}
	r.entries = append(r.entries, &scheduled{job: job, every: every})
	return nil
}

// Jobs returns a copy of every registered job.
func (r *Registry) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]Job, 0, len(r.entries))
	for _, e := range r.entries {
		jobs = append(jobs, e.job)
	}
	return jobs
}

// Due returns the jobs whose period has elapsed at now.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Job
	for _, e := range r.entries {
		if e.every <= 0 || e.lastRun.IsZero() || now.Sub(e.lastRun) >= e.every {
			due = append(due, e.job)
		}
	}
	return due
}

// MarkRun records that the named job was attempted at at.
func (r *Registry) MarkRun(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.job.Name() == name {
			e.lastRun = at
			return
		}
	}
}
