package jobs

import "errors"

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrNoInput    = errors.New("job input missing")

	// ErrJobInFlight rejects a job whose kind is already queued or running.
	ErrJobInFlight = errors.New("job already in flight")
	// ErrBackpressure rejects a job because the queue is full.
	ErrBackpressure = errors.New("job queue backpressure")
)
