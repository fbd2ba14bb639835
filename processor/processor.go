package processor

import (
	"context"
	"fmt"
	"time"

	"dbcopy/internal"
)

const defaultPollInterval = 10 * time.Millisecond

// Processor runs queued jobs with at most threads of them alive at once.
// Jobs start in submission order; Run reports them in the order they finish.
type Processor struct {
	threads      int
	queued       []Job
	running      []Process
	launcher     Launcher
	pollInterval time.Duration
	onComplete   func(Result)
}

type Option func(*Processor)

func WithLauncher(l Launcher) Option {
	return func(p *Processor) {
		p.launcher = l
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithOnComplete registers a callback invoked for every job that finishes successfully.
func WithOnComplete(fn func(Result)) Option {
	return func(p *Processor) {
		p.onComplete = fn
	}
}

func New(threads int, opts ...Option) *Processor {
	p := &Processor{
		launcher:     ShellLauncher{},
		pollInterval: defaultPollInterval,
	}
	p.SetThreads(threads)

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// SetThreads changes the concurrency cap used by the next Run.
func (p *Processor) SetThreads(threads int) *Processor {
	if threads < 1 {
		threads = 1
	}
	p.threads = threads
	return p
}

func (p *Processor) Threads() int {
	return p.threads
}

// Submit appends a job to the queue. Nothing is started until Run.
func (p *Processor) Submit(job Job) {
	p.queued = append(p.queued, job)
}

func (p *Processor) Queued() []Job {
	queued := make([]Job, len(p.queued))
	copy(queued, p.queued)
	return queued
}

// Run drains the queue. The first failing job aborts the run with a
// *ProcessFailedError; jobs still running at that point are killed.
// Cancelling ctx kills every running job and returns the context error.
func (p *Processor) Run(ctx context.Context) ([]Result, error) {
	if len(p.queued) == 0 {
		return nil, ErrEmptyQueue
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer p.reset()

	threads := p.threads
	completed := make([]Result, 0, len(p.queued))

	for len(p.queued) > 0 || len(p.running) > 0 {
		for len(p.queued) > 0 && len(p.running) < threads {
			job := p.queued[0]
			p.queued = p.queued[1:]

			internal.Logger.Debug("Starting job", "job", job.String())
			proc, err := p.launcher.Launch(runCtx, job)
			if err != nil {
				return nil, fmt.Errorf("failed to start job %s: %w", job, err)
			}
			p.running = append(p.running, proc)
		}

		progressed := false
		stillRunning := p.running[:0]
		for _, proc := range p.running {
			if proc.Running() {
				stillRunning = append(stillRunning, proc)
				continue
			}

			res := proc.Result()
			if !res.Success {
				if ctx.Err() != nil {
					return nil, fmt.Errorf("run interrupted: %w", ctx.Err())
				}
				internal.Logger.Debug("Job failed", "job", res.Job.String(), "exitCode", res.ExitCode)
				return nil, newProcessFailedError(res)
			}

			internal.Logger.Debug("Job completed", "job", res.Job.String(), "duration", res.Duration)
			completed = append(completed, res)
			progressed = true
			if p.onComplete != nil {
				p.onComplete(res)
			}
		}
		p.running = stillRunning

		if progressed {
			continue
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("run interrupted: %w", ctx.Err())
		case <-time.After(p.pollInterval):
		}
	}

	return completed, nil
}

func (p *Processor) reset() {
	p.queued = nil
	p.running = nil
}
