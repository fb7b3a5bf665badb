package service

import (
	"time"

	"github.com/kasakmasrani/CampusSync-AI/internal/adapters/mq/worker"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/scoring"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/similarity"
	"github.com/kasakmasrani/CampusSync-AI/internal/jobs"
	"github.com/kasakmasrani/CampusSync-AI/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of job workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithJobTimeout bounds a single job run. 0 leaves runs unbounded.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.jobTimeout = d
		}
	}
}

// WithClusterFreshness sets how long the similarity engine may reuse a cluster assignment.
func WithClusterFreshness(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.clusterFreshness = d
		}
	}
}

// WithJobOptions passes options to the default job runner.
func WithJobOptions(opts ...jobs.Option) Option {
	return func(s *Service) {
		s.jobOpts = append(s.jobOpts, opts...)
	}
}

// WithPredictor replaces the artifact backed predictor.
func WithPredictor(p scoring.Predictor) Option {
	return func(s *Service) {
		s.predictor = p
	}
}

// WithFinder replaces the artifact backed similarity engine.
func WithFinder(f similarity.Finder) Option {
	return func(s *Service) {
		s.finder = f
	}
}

// WithRunner replaces the job runner.
func WithRunner(r worker.Runner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
