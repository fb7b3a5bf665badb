package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/kasakmasrani/CampusSync-AI/internal/adapters/http/api"
	"github.com/kasakmasrani/CampusSync-AI/internal/adapters/repository"
	app "github.com/kasakmasrani/CampusSync-AI/internal/app"
	"github.com/kasakmasrani/CampusSync-AI/internal/config"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/backfill"
	"github.com/kasakmasrani/CampusSync-AI/internal/jobs"
	"github.com/kasakmasrani/CampusSync-AI/pkg/logger"
	"github.com/kasakmasrani/CampusSync-AI/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second

	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "campussync exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		return err
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, store, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "closing store failed", logger.Error(err))
		}
	}()

	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service shutdown failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)

	handler, err := buildHandler(ctx, cfg, svc, log)
	if err != nil {
		return err
	}

	// Job endpoints block until the job finishes, so writes are bounded by the
	// job timeout rather than a fixed constant.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.JobTimeout() + readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// buildService opens the store and wires the campus service from cfg.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, *repository.Store, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	store, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN,
		repository.WithBackfiller(backfill.New(backfill.WithLocation(loc))),
		repository.WithLogger(log.Named("repository")),
	)
	if err != nil {
		return nil, nil, err
	}
	svc := app.New(store, jobs.DefaultPaths(cfg.MLDir, cfg.DataDir),
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.JobWorkerCount),
		app.WithQueueSize(cfg.JobQueueSize),
		app.WithJobTimeout(cfg.JobTimeout()),
		app.WithClusterFreshness(cfg.ClusterFreshness()),
	)
	return svc, store, nil
}

// buildHandler creates the API router. A missing JWT secret leaves every
// authenticated route closed.
func buildHandler(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) (http.Handler, error) {
	opts := []api.Option{
		api.WithLogger(log.Named("http")),
		api.WithCORSOrigins(cfg.CORSOrigins...),
		api.WithRateLimit(cfg.RateLimitPerMinute),
		api.WithSimilarTopN(cfg.SimilarTopN, cfg.MaxSimilarTopN),
	}
	if cfg.JWTSecret != "" {
		auth, err := api.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			return nil, err
		}
		opts = append(opts, api.WithAuthenticator(auth))
	}
	return api.NewServer(svc, svc, opts...).Routes(ctx), nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
