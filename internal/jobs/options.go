package jobs

import (
	"time"

	"github.com/kasakmasrani/CampusSync-AI/internal/ml/cluster"
	"github.com/kasakmasrani/CampusSync-AI/internal/ml/forest"
	"github.com/kasakmasrani/CampusSync-AI/pkg/logger"
)

// Option configures a Runner.
type Option func(*Runner)

// WithClock overrides the time source used for staleness checks and metadata.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the runner logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithForestOptions passes extra options to the random-forest fit.
func WithForestOptions(opts ...forest.Option) Option {
	return func(r *Runner) {
		r.forestOpts = append(r.forestOpts, opts...)
	}
}

// WithClusterParams overrides the clustering hyper-parameters.
func WithClusterParams(p cluster.Params) Option {
	return func(r *Runner) {
		r.clusterParams = p
	}
}
