package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kasakmasrani/CampusSync-AI/internal/adapters/mq/worker"
	"github.com/kasakmasrani/CampusSync-AI/internal/adapters/repository"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/scoring"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/similarity"
	"github.com/kasakmasrani/CampusSync-AI/internal/jobs"
	"github.com/kasakmasrani/CampusSync-AI/internal/ml/artifact"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrJobFailed    = errors.New("job failed")
)

// Wrap prefixes err with the operation name.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// WrapKind tags err with a sentinel kind so callers can match either.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return NewKind(op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// NewKind reports kind for op without an underlying cause.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrJobFailed):
		return http.StatusInternalServerError, "job_failed"
	case errors.Is(err, ErrBadRequest), errors.Is(err, scoring.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotRegistered):
		return http.StatusBadRequest, "not_registered"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, jobs.ErrJobInFlight):
		return http.StatusConflict, "job_in_flight"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, jobs.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, scoring.ErrModelUnavailable),
		errors.Is(err, similarity.ErrModelUnavailable),
		errors.Is(err, artifact.ErrArtifactMissing),
		errors.Is(err, artifact.ErrArtifactCorrupt),
		errors.Is(err, artifact.ErrSchemaMismatch):
		return http.StatusServiceUnavailable, "model_unavailable"
	case errors.Is(err, worker.ErrStopped):
		return http.StatusServiceUnavailable, "shutting_down"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
