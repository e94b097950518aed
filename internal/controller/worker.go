package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/manetbench/internal/ctxlog"
)

var (
	// ErrBusy is returned by Submit while a job is in flight.
	ErrBusy = errors.New("a batch is already running")
	// ErrStopped is delivered on Done for jobs the worker will never run.
	ErrStopped = errors.New("worker stopped")
)

// Job is one unit of background work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Done reports that a job has fully finished.
type Done struct {
	Name string
	Err  error
}

// Worker runs one job at a time on a single goroutine. While a job is in
// flight every further Submit is refused, which is how the operator surface
// stays disabled until the batch completes.
type Worker struct {
	jobs chan submission
	busy atomic.Bool

	mu      sync.Mutex
	gen     int
	stopped error
}

type submission struct {
	ctx  context.Context
	job  Job
	done chan Done
}

// NewWorker creates a Worker. Start must be called before Submit.
func NewWorker() *Worker {
	return &Worker{jobs: make(chan submission, 1)}
}

// Start runs the worker loop until ctx is cancelled. Jobs still queued at
// that point are answered with the cancellation error instead of being run.
// A stopped worker may be started again.
func (w *Worker) Start(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.")
	w.mu.Lock()
	w.gen++
	gen := w.gen
	w.stopped = nil
	w.mu.Unlock()
	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Debug("Worker shutting down.")
				w.stop(gen, ctx.Err())
				return
			case s := <-w.jobs:
				w.run(s)
			}
		}
	}()
}

// stop marks the worker stopped and answers every queued job with err. A
// loop from an earlier Start leaves a restarted worker alone.
func (w *Worker) stop(gen int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return
	}
	w.stopped = err
	for {
		select {
		case s := <-w.jobs:
			w.finish(s, fmt.Errorf("job %s not run: %w", s.job.Name, err))
		default:
			return
		}
	}
}

// Busy reports whether a job is queued or running.
func (w *Worker) Busy() bool { return w.busy.Load() }

// Submit queues job. The returned channel receives exactly one Done after the
// job returns, errors or panics, and is then closed. A job submitted to a
// stopped worker gets its Done right away, carrying ErrStopped.
func (w *Worker) Submit(ctx context.Context, job Job) (<-chan Done, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	done := make(chan Done, 1)
	if w.stopped != nil {
		done <- Done{Name: job.Name, Err: fmt.Errorf("job %s not run: %w: %w", job.Name, ErrStopped, w.stopped)}
		close(done)
		return done, nil
	}
	if !w.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	// busy guarantees the single slot is free.
	w.jobs <- submission{ctx: ctx, job: job, done: done}
	return done, nil
}

func (w *Worker) run(s submission) {
	logger := ctxlog.FromContext(s.ctx)
	if err := s.ctx.Err(); err != nil {
		logger.Debug("Job cancelled before start.", "job", s.job.Name, "error", err)
		w.finish(s, fmt.Errorf("job %s not run: %w", s.job.Name, err))
		return
	}

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", s.job.Name, r)
			logger.Error("Job panicked.", "job", s.job.Name, "panic", r)
		}
		w.finish(s, err)
	}()

	logger.Debug("Job started.", "job", s.job.Name)
	err = s.job.Run(s.ctx)
	logger.Debug("Job finished.", "job", s.job.Name, "error", err)
}

func (w *Worker) finish(s submission, err error) {
	w.busy.Store(false)
	s.done <- Done{Name: s.job.Name, Err: err}
	close(s.done)
}
