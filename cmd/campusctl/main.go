// Command campusctl runs the CampusSync batch jobs and seeds demo data.
//
//	campusctl jobs                 list runnable jobs and pipelines
//	campusctl run <job>            run one job or pipeline and print its output
//	campusctl seed [flags]         generate a synthetic campus
//
// Database and file locations come from the same CAMPUS_* configuration as
// the server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kasakmasrani/CampusSync-AI/internal/adapters/repository"
	"github.com/kasakmasrani/CampusSync-AI/internal/config"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/backfill"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/scoring"
	"github.com/kasakmasrani/CampusSync-AI/internal/jobs"
	"github.com/kasakmasrani/CampusSync-AI/internal/seed"
	"github.com/kasakmasrani/CampusSync-AI/pkg/logger"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if err := logger.InitWith(stderr, "text"); err != nil {
		fmt.Fprintln(stderr, "failed to initialize logging:", err)
		return exitFailed
	}
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	var err error
	switch args[0] {
	case "jobs":
		for _, k := range jobs.Kinds() {
			steps, _ := jobs.Steps(k)
			if len(steps) > 1 {
				fmt.Fprintf(stdout, "%s\t%v\n", k, steps)
			} else {
				fmt.Fprintln(stdout, k)
			}
		}
	case "run":
		err = runJob(ctx, args[1:], stdout)
	case "seed":
		err = runSeed(ctx, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return exitUsage
	}
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, jobs.ErrUnknownJob):
		fmt.Fprintln(stderr, err)
		return exitUsage
	default:
		fmt.Fprintln(stderr, "error:", err)
		return exitFailed
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `campusctl - CampusSync batch tool

Usage:
  campusctl jobs
  campusctl run <job>
  campusctl seed [-organizers N] [-students N] [-events N] [-from YYYY-MM-DD]
                 [-span DAYS] [-max-registrations N] [-feedback-rate R]
                 [-seed N] [-prefix P] [-predict]

Configuration is read from CAMPUS_CONFIG and CAMPUS_* variables.
`)
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config, opts ...backfill.Option) (*repository.Store, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts = append([]backfill.Option{backfill.WithLocation(loc)}, opts...)
	return repository.Open(ctx, cfg.DBDriver, cfg.DBDSN,
		repository.WithBackfiller(backfill.New(opts...)),
		repository.WithLogger(logger.Named("repository")),
	)
}

func runJob(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: campusctl run <job>", errUsage)
	}
	kind := model.JobKind(args[0])
	if _, err := jobs.Steps(kind); err != nil {
		return err
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if t := cfg.JobTimeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	runner := jobs.New(store, jobs.DefaultPaths(cfg.MLDir, cfg.DataDir), jobs.WithLogger(logger.Named("jobs")))
	start := time.Now()
	lines, err := runner.Run(ctx, kind)
	for _, l := range lines {
		fmt.Fprintln(stdout, l)
	}
	if err != nil {
		return fmt.Errorf("%s failed after %s: %w", kind, time.Since(start).Round(time.Millisecond), err)
	}
	fmt.Fprintf(stdout, "%s completed in %s\n", kind, time.Since(start).Round(time.Millisecond))
	return nil
}

func runSeed(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	def := seed.DefaultConfig()
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		organizers   = fs.Int("organizers", def.Organizers, "Number of organizers")
		students     = fs.Int("students", def.Students, "Number of students")
		events       = fs.Int("events", def.Events, "Number of events")
		from         = fs.String("from", def.From.Format(model.DateLayout), "First possible event date")
		span         = fs.Int("span", def.SpanDays, "Days after -from that events spread over")
		maxRegs      = fs.Int("max-registrations", def.MaxRegistrations, "Most events one student registers for")
		feedbackRate = fs.Float64("feedback-rate", def.FeedbackRate, "Share of registrations that leave feedback")
		seedValue    = fs.Uint64("seed", def.Seed, "Random seed")
		prefix       = fs.String("prefix", "", "Username prefix")
		predict      = fs.Bool("predict", false, "Fill predictions from the trained event model")
	)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	start, err := time.ParseInLocation(model.DateLayout, *from, loc)
	if err != nil {
		return fmt.Errorf("%w: -from: %w", errUsage, err)
	}

	// Seeded events are stored as upcoming relative to -from, so a later
	// autofill-actuals sees the generated registrations and feedback.
	store, err := openStore(ctx, cfg, backfill.WithClock(func() time.Time { return start }))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	opts := []seed.Option{seed.WithLogger(logger.Named("seed"))}
	if *predict {
		paths := jobs.DefaultPaths(cfg.MLDir, cfg.DataDir)
		opts = append(opts, seed.WithPredictor(scoring.NewArtifactPredictor(paths.EventModel)))
	}
	stats, err := seed.New(store, opts...).Run(ctx, seed.Config{
		Organizers:       *organizers,
		Students:         *students,
		Events:           *events,
		From:             start,
		SpanDays:         *span,
		MaxRegistrations: *maxRegs,
		FeedbackRate:     *feedbackRate,
		Seed:             *seedValue,
		Prefix:           *prefix,
	})
	fmt.Fprintf(stdout, "organizers=%d students=%d events=%d schedule_items=%d registrations=%d feedback=%d predicted=%d took=%s\n",
		stats.Organizers, stats.Students, stats.Events, stats.ScheduleItems,
		stats.Registrations, stats.Feedback, stats.Predicted, stats.Duration.Round(time.Millisecond))
	return err
}
