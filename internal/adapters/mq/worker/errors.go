package worker

import "errors"

// ErrStopped is the result of a job that was still queued when the pool shut down.
var ErrStopped = errors.New("worker pool stopped")
