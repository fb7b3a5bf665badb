// Package queue holds batch jobs waiting for a worker.
//
// The queue is a bounded in-memory channel: a full queue rejects instead of
// blocking so callers can report backpressure.
package queue

import (
	"context"
	"sync"

	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	"github.com/kasakmasrani/CampusSync-AI/pkg/metrics"
)

const defaultQueueCapacity = 16

// Job is the payload type flowing through the queue.
type Job = model.Job

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. It returns ErrFull or ErrClosed when the job was not queued.
	Enqueue(ctx context.Context, j Job) error

	// Dequeue returns a channel that receives jobs as they become available.
	// The channel is closed when the queue is closed. Consumers share it, so a
	// job is delivered to exactly one of them.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the number of queued jobs.
	Len() int

	// Close stops accepting jobs. Queued jobs are still delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateJobQueueCapacity(q.capacity)
	metrics.UpdateJobQueueSize(0)
	return q
}

// Enqueue adds a job to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordJobEnqueueError("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordJobEnqueueError("context_cancelled")
		return err
	}

	select {
	case q.jobs <- j:
		metrics.UpdateJobQueueSize(len(q.jobs))
		return nil
	default:
		metrics.RecordJobEnqueueError("queue_full")
		return ErrFull
	}
}

// Dequeue returns the queue's own channel. Workers receive from it directly, so
// a job is either counted by Len or held by a worker that is running it. The
// channel is closed by Close.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Job {
	return q.jobs
}

// Len returns the number of queued jobs.
func (q *InMemoryQueue) Len() int {
	size := len(q.jobs)
	metrics.UpdateJobQueueSize(size)
	return size
}

// Close stops the queue. Closing twice is a no-op.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
