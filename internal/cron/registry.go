package cron

import (
	"context"
	"fmt"
)

// Job is one unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs by unique name, in registration order.
type Registry struct {
	jobs  []Job
	index map[string]Job
}

// NewRegistry registers jobs, skipping nils. It fails on duplicate names.
func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{index: map[string]Job{}}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if r.index == nil {
		r.index = map[string]Job{}
	}
	if _, exists := r.index[job.Name()]; exists {
		return fmt.Errorf("cron job %q already registered", job.Name())
	}
	r.index[job.Name()] = job
	r.jobs = append(r.jobs, job)
	return nil
}

// Lookup returns the job registered under name.
func (r *Registry) Lookup(name string) (Job, bool) {
	job, ok := r.index[name]
	return job, ok
}

func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
