package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/types"
)

// JobDependencies defines the interface for triggering batch jobs.
type JobDependencies interface {
	// RunJob queues kind and waits for its result. Scheduling problems are
	// returned as the error; a failed run comes back in the result.
	RunJob(ctx context.Context, kind model.JobKind) (model.JobResult, error)
}

// JobError is a failed job run together with its diagnostic output.
type JobError struct {
	Kind   model.JobKind
	Output []string
	Err    error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *JobError) Unwrap() []error { return []error{ErrJobFailed, e.Err} }

// JobsHandler handles job trigger requests.
type JobsHandler struct {
	deps JobDependencies
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(deps JobDependencies) *JobsHandler {
	return &JobsHandler{deps: deps}
}

// Handle returns the handler that runs kind.
func (h *JobsHandler) Handle(kind model.JobKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op := "api.job." + string(kind)
		res, err := h.deps.RunJob(r.Context(), kind)
		if err != nil {
			writeError(w, r, Wrap(op, err))
			return
		}
		if !res.OK() {
			writeError(w, r, &JobError{Kind: kind, Output: nonNil(res.Output), Err: res.Err})
			return
		}
		writeJSON(w, http.StatusOK, types.JobResponse{
			JobID:      res.JobID,
			Kind:       string(kind),
			Detail:     fmt.Sprintf("%s completed successfully.", kind),
			Output:     nonNil(res.Output),
			DurationMs: res.Finished.Sub(res.Started).Milliseconds(),
		})
	}
}

func nonNil(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}
