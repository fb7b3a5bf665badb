package repository

import (
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/backfill"
	"github.com/kasakmasrani/CampusSync-AI/pkg/logger"
	gormLogger "gorm.io/gorm/logger"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithBackfiller sets the backfiller run on every event save.
func WithBackfiller(b *backfill.Backfiller) Option {
	return func(s *Store) {
		if b != nil {
			s.backfill = b
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithGormLogLevel sets the verbosity of gorm's own SQL logging. Only used by Open.
func WithGormLogLevel(level gormLogger.LogLevel) Option {
	return func(s *Store) {
		s.gormLevel = level
	}
}
