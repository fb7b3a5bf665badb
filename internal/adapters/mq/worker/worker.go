// Package worker runs queued batch jobs.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	"github.com/kasakmasrani/CampusSync-AI/pkg/logger"
	"github.com/kasakmasrani/CampusSync-AI/pkg/metrics"
)

const (
	defaultWorkerCount  = 1
	poolShutdownTimeout = 30 * time.Second
)

// Runner executes one job kind and returns its diagnostic lines.
type Runner interface {
	Run(ctx context.Context, kind model.JobKind) ([]string, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Job
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in hand, if any.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	runner  Runner
	name    string
	timeout time.Duration

	inFlight *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(queue Queue, runner Runner, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		runner:   runner,
		name:     "worker",
		inFlight: new(atomic.Int64),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if l, ok := w.queue.(interface{ Len() int }); ok {
				l.Len()
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown signals the worker to stop and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one job and always replies, even when the runner panics.
func (w *InMemoryWorker) process(ctx context.Context, job model.Job) {
	res := model.JobResult{JobID: job.ID, Kind: job.Kind, Started: time.Now()}
	metrics.UpdateJobsInFlight(w.inFlight.Add(1))
	defer func() {
		metrics.UpdateJobsInFlight(w.inFlight.Add(-1))
	}()

	runCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	w.logger.Info(ctx, "job started",
		logger.String("job_id", job.ID),
		logger.String("kind", string(job.Kind)),
		logger.Duration("queued_for", res.Started.Sub(job.Enqueued)))

	res.Output, res.Err = w.run(runCtx, job.Kind)
	res.Finished = time.Now()
	metrics.RecordJobRun(string(job.Kind), res.OK(), float64(res.Finished.Sub(res.Started).Milliseconds()))

	if res.Err != nil {
		metrics.RecordErrorByType("job_failure", "high")
		w.logger.Error(ctx, "job failed",
			logger.String("job_id", job.ID),
			logger.String("kind", string(job.Kind)),
			logger.Error(res.Err))
	} else {
		w.logger.Info(ctx, "job finished",
			logger.String("job_id", job.ID),
			logger.String("kind", string(job.Kind)),
			logger.Duration("took", res.Finished.Sub(res.Started)))
	}

	if job.Reply != nil {
		select {
		case job.Reply <- res:
		default:
			w.logger.Warn(ctx, "job reply dropped", logger.String("job_id", job.ID))
		}
	}
}

func (w *InMemoryWorker) run(ctx context.Context, kind model.JobKind) (out []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", kind, r)
			w.logger.Error(ctx, "job panic", logger.String("stack", string(debug.Stack())))
		}
	}()
	return w.runner.Run(ctx, kind)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	inFlight atomic.Int64
	logger   logger.Logger
}

// NewPool creates a pool of workerCount workers. Options apply to every worker.
func NewPool(workerCount int, queue Queue, runner Runner, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		w := NewInMemoryWorker(queue, runner, append(opts, WithName("worker-"+strconv.Itoa(i)))...)
		w.inFlight = &p.inFlight
		p.workers[i] = w
	}
	metrics.UpdateJobWorkers(workerCount)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// InFlight returns the number of jobs being run right now.
func (p *Pool) InFlight() int64 { return p.inFlight.Load() }

// Shutdown closes the queue and waits for workers to finish their current job.
// Jobs still queued are answered with ErrStopped instead of being run.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		} else {
			defer p.drain(ctx)
		}
	}
	for _, w := range p.workers {
		select {
		case <-w.shutdown:
		default:
			close(w.shutdown)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker %d: %w", i, shutdownCtx.Err())
		}
	}
	return nil
}

// drain replies to every job left in the closed queue so callers are not kept
// waiting for a run that will never happen.
func (p *Pool) drain(ctx context.Context) {
	for job := range p.queue.Dequeue(ctx) {
		p.logger.Warn(ctx, "job dropped at shutdown",
			logger.String("job_id", job.ID),
			logger.String("kind", string(job.Kind)))
		metrics.RecordJobEnqueueError("shutdown")
		if job.Reply == nil {
			continue
		}
		select {
		case job.Reply <- model.JobResult{JobID: job.ID, Kind: job.Kind, Err: ErrStopped}:
		default:
		}
	}
}
