package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kasakmasrani/CampusSync-AI/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.JobQueueSize, convey.ShouldEqual, 16)
				convey.So(cfg.MLDir, convey.ShouldEqual, "ml")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("CAMPUS_ADDR", ":8080")
			t.Setenv("CAMPUS_JOB_QUEUE_SIZE", "4")
			t.Setenv("CAMPUS_CLUSTER_FRESHNESS_MS", "30000")
			t.Setenv("CAMPUS_JWT_SECRET", "s3cret")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.JobQueueSize, convey.ShouldEqual, 4)
				convey.So(cfg.ClusterFreshnessMS, convey.ShouldEqual, 30000)
				convey.So(cfg.JWTSecret, convey.ShouldEqual, "s3cret")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeConfigFile(t, `
addr: ":9090"
db_driver: postgres
db_dsn: "host=localhost user=campus dbname=campus"
job_worker_count: 2
cors_origins:
  - https://campus.example.edu
`)
			t.Setenv("CAMPUS_CONFIG", path)
			t.Setenv("CAMPUS_JOB_WORKER_COUNT", "3")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.DBDriver, convey.ShouldEqual, "postgres")
				convey.So(cfg.JobWorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"https://campus.example.edu"})
				convey.So(cfg.SimilarTopN, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			t.Setenv("CAMPUS_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			t.Setenv("CAMPUS_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with empty addr", func() {
			t.Setenv("CAMPUS_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			t.Setenv("CAMPUS_JOB_QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "campus.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				if key := kv[:i]; len(key) > len("CAMPUS_") && key[:len("CAMPUS_")] == "CAMPUS_" {
					_ = os.Unsetenv(key)
				}
				break
			}
		}
	}
}
