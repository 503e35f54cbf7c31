// Package cron runs the core's background maintenance loops: decay
// sweeps, ephemeral cleanup, and any other fixed-interval job.
package cron

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one fixed-interval background task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	running atomic.Bool
}

// Runner drives a set of jobs on their intervals. A run that overruns
// its interval does not stack: the next tick is skipped.
type Runner struct {
	mu      sync.Mutex
	jobs    []*Job
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates an empty runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Add registers a job. Must be called before Start.
func (r *Runner) Add(name string, interval time.Duration, run func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, &Job{Name: name, Interval: interval, Run: run})
}

// Start launches every job loop. Idempotent.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.loop(runCtx, job)
	}
}

func (r *Runner) loop(ctx context.Context, job *Job) {
	defer r.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	slog.Info("cron job started", "job", job.Name, "interval", job.Interval.String())

	for {
		select {
		case <-ctx.Done():
			slog.Info("cron job stopped", "job", job.Name)
			return
		case <-ticker.C:
			if !job.running.CompareAndSwap(false, true) {
				slog.Warn("cron job still running, skipping tick", "job", job.Name)
				continue
			}
			go func() {
				defer job.running.Store(false)
				if err := job.Run(ctx); err != nil {
					slog.Error("cron job failed", "job", job.Name, "error", err)
				}
			}()
		}
	}
}

// Stop cancels the loops and waits for them to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}
