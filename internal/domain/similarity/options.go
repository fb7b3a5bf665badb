package similarity

import "time"

// Option configures an Engine.
type Option func(*Engine)

// WithFreshness lets the engine reuse a population assignment for up to d. A
// changed artifact or feature file invalidates it sooner. 0 recomputes on every query.
func WithFreshness(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.freshness = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
