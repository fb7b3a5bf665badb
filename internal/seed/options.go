package seed

import (
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/scoring"
	"github.com/kasakmasrani/CampusSync-AI/pkg/logger"
)

// Option configures a Seeder.
type Option func(*Seeder)

// WithPredictor fills the predicted fields of generated events.
func WithPredictor(p scoring.Predictor) Option {
	return func(s *Seeder) {
		s.predictor = p
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Seeder) {
		if l != nil {
			s.log = l
		}
	}
}
