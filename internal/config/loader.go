package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "CAMPUS_"
	configFileEnv = "CAMPUS_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CAMPUS_CONFIG is set
//  3. env (prefix CAMPUS_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(configFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// CAMPUS_JOB_QUEUE_SIZE -> job_queue_size. Underscores are kept to match the flat koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// The file path variable is not a config key.
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBDriver != "sqlite" && c.DBDriver != "postgres":
		return fmt.Errorf("%w: db_driver must be sqlite or postgres, got %q", ErrInvalidConfig, c.DBDriver)
	case c.DBDSN == "":
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	case c.MLDir == "" || c.DataDir == "":
		return fmt.Errorf("%w: ml_dir and data_dir must not be empty", ErrInvalidConfig)
	case c.JobQueueSize <= 0:
		return fmt.Errorf("%w: job_queue_size must be positive", ErrInvalidConfig)
	case c.JobWorkerCount <= 0:
		return fmt.Errorf("%w: job_worker_count must be positive", ErrInvalidConfig)
	case c.JobTimeoutMS <= 0:
		return fmt.Errorf("%w: job_timeout_ms must be positive", ErrInvalidConfig)
	case c.ClusterFreshnessMS < 0:
		return fmt.Errorf("%w: cluster_freshness_ms must not be negative", ErrInvalidConfig)
	case c.SimilarTopN <= 0 || c.MaxSimilarTopN < c.SimilarTopN:
		return fmt.Errorf("%w: need 0 < similar_top_n <= max_similar_top_n", ErrInvalidConfig)
	case c.RateLimitPerMinute < 0:
		return fmt.Errorf("%w: rate_limit_per_minute must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: timezone: %w", ErrInvalidConfig, err)
	}
	return nil
}
