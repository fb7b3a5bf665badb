// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env on top.
// - Durations are configured in milliseconds and exposed through typed accessors.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBDriver selects the database backend: sqlite or postgres.
	DBDriver string `koanf:"db_driver"`

	// DBDSN is the driver specific connection string.
	DBDSN string `koanf:"db_dsn"`

	// MLDir holds the model artifacts (event_model.json, student_cluster_model.json, ...).
	MLDir string `koanf:"ml_dir"`

	// DataDir holds the CSV datasets produced and consumed by the jobs.
	DataDir string `koanf:"data_dir"`

	// JWTSecret is the HS256 key used to verify bearer tokens.
	JWTSecret string `koanf:"jwt_secret"`

	// JWTIssuer, when set, must match the iss claim.
	JWTIssuer string `koanf:"jwt_issuer"`

	// JobQueueSize bounds the in-memory job queue.
	JobQueueSize int `koanf:"job_queue_size"`

	// JobWorkerCount sets the number of job workers.
	JobWorkerCount int `koanf:"job_worker_count"`

	// JobTimeoutMS caps a single job run.
	JobTimeoutMS int `koanf:"job_timeout_ms"`

	// ClusterFreshnessMS bounds how long a cluster assignment may be reused. 0 recomputes per query.
	ClusterFreshnessMS int `koanf:"cluster_freshness_ms"`

	// SimilarTopN is the default result size of /api/students/similar.
	SimilarTopN int `koanf:"similar_top_n"`

	// MaxSimilarTopN caps ?top on /api/students/similar.
	MaxSimilarTopN int `koanf:"max_similar_top_n"`

	// RateLimitPerMinute is the per-IP request budget. 0 disables limiting.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`

	// CORSOrigins lists allowed browser origins.
	CORSOrigins []string `koanf:"cors_origins"`

	// Timezone is the IANA zone event dates and times are interpreted in.
	Timezone string `koanf:"timezone"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		DBDriver:           "sqlite",
		DBDSN:              "campussync.db",
		MLDir:              "ml",
		DataDir:            "data",
		JWTSecret:          "",
		JobQueueSize:       16,
		JobWorkerCount:     1,
		JobTimeoutMS:       10 * 60 * 1000,
		ClusterFreshnessMS: 0,
		SimilarTopN:        5,
		MaxSimilarTopN:     50,
		RateLimitPerMinute: 600,
		CORSOrigins:        []string{"http://localhost:3000"},
		Timezone:           "UTC",
	}
}

// JobTimeout returns the job run cap as a duration.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutMS) * time.Millisecond
}

// ClusterFreshness returns the cluster reuse bound as a duration.
func (c *Config) ClusterFreshness() time.Duration {
	return time.Duration(c.ClusterFreshnessMS) * time.Millisecond
}

// Location resolves Timezone, falling back to UTC when it is empty.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}
