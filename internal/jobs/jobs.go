// Package jobs implements the offline batch jobs that keep the models current:
// backfilling and exporting finished events, cleaning the event dataset,
// retraining the success predictor, and rebuilding the student clustering.
//
// Every job returns human-readable diagnostic lines. Files are replaced
// atomically so a concurrent reader sees either the old or the new version.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/scoring"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/similarity"
	"github.com/kasakmasrani/CampusSync-AI/internal/ml/artifact"
	"github.com/kasakmasrani/CampusSync-AI/internal/ml/cluster"
	"github.com/kasakmasrani/CampusSync-AI/internal/ml/dataset"
	"github.com/kasakmasrani/CampusSync-AI/internal/ml/forest"
	"github.com/kasakmasrani/CampusSync-AI/pkg/logger"
	"github.com/kasakmasrani/CampusSync-AI/pkg/metrics"
)

const dirPermission = 0o750

// Store is the persistence the jobs read from.
type Store interface {
	PendingEvents(ctx context.Context) ([]model.Event, error)
	SaveEvent(ctx context.Context, ev *model.Event) ([]string, error)
	FinalizedEvents(ctx context.Context) ([]model.Event, error)
	StudentRecords(ctx context.Context) ([]dataset.StudentRecord, error)
}

var pipelines = map[model.JobKind][]model.JobKind{
	model.JobRetrainEvents: {
		model.JobAutofillActuals, model.JobExportEvents, model.JobMergeEvents,
		model.JobCleanEvents, model.JobTrainEvents,
	},
	model.JobExportFeatures:  {model.JobExportStudents, model.JobBuildFeatures},
	model.JobRetrainClusters: {model.JobTrainClusters},
}

var algorithms = []cluster.Algorithm{cluster.KMeansAlgorithm, cluster.DBSCANAlgorithm, cluster.AgglomerativeAlgorithm}

// Kinds lists every runnable job and pipeline.
func Kinds() []model.JobKind {
	return []model.JobKind{
		model.JobAutofillActuals, model.JobExportEvents, model.JobMergeEvents, model.JobCleanEvents,
		model.JobTrainEvents, model.JobExportStudents, model.JobBuildFeatures, model.JobTrainClusters,
		model.JobRetrainEvents, model.JobExportFeatures, model.JobRetrainClusters,
	}
}

// Steps expands kind into the single jobs it runs.
func Steps(kind model.JobKind) ([]model.JobKind, error) {
	if steps, ok := pipelines[kind]; ok {
		return steps, nil
	}
	for _, k := range Kinds() {
		if k == kind {
			return []model.JobKind{kind}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownJob, kind)
}

// Runner executes jobs against a store and a set of files.
type Runner struct {
	store         Store
	paths         Paths
	now           func() time.Time
	log           logger.Logger
	forestOpts    []forest.Option
	clusterParams cluster.Params
}

// New creates a Runner.
func New(store Store, paths Paths, opts ...Option) *Runner {
	r := &Runner{
		store:         store,
		paths:         paths,
		now:           time.Now,
		clusterParams: cluster.DefaultParams(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get().Named("jobs")
	}
	return r
}

// output collects the diagnostic lines of one run.
type output struct {
	step  model.JobKind
	lines []string
}

func (o *output) printf(format string, args ...any) {
	o.lines = append(o.lines, string(o.step)+": "+fmt.Sprintf(format, args...))
}

// Run executes kind, a single job or a pipeline. A pipeline stops at the first
// failing step; the lines produced so far are returned with the error.
func (r *Runner) Run(ctx context.Context, kind model.JobKind) ([]string, error) {
	steps, err := Steps(kind)
	if err != nil {
		return nil, err
	}
	for _, d := range r.paths.dirs() {
		if err := os.MkdirAll(d, dirPermission); err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
	}

	out := &output{}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return out.lines, err
		}
		out.step = step
		start := time.Now()
		if err := r.runStep(ctx, step, out); err != nil {
			out.printf("failed: %v", err)
			r.log.Error(ctx, "job step failed", logger.String("step", string(step)), logger.Error(err))
			return out.lines, fmt.Errorf("%s: %w", step, err)
		}
		r.log.Info(ctx, "job step done", logger.String("step", string(step)), logger.Duration("took", time.Since(start)))
	}
	return out.lines, nil
}

func (r *Runner) runStep(ctx context.Context, step model.JobKind, out *output) error {
	switch step {
	case model.JobAutofillActuals:
		return r.autofillActuals(ctx, out)
	case model.JobExportEvents:
		return r.exportEvents(ctx, out)
	case model.JobMergeEvents:
		return r.mergeEvents(out)
	case model.JobCleanEvents:
		return r.cleanEvents(out)
	case model.JobTrainEvents:
		return r.trainEvents(ctx, out)
	case model.JobExportStudents:
		return r.exportStudents(ctx, out)
	case model.JobBuildFeatures:
		return r.buildFeatures(out)
	case model.JobTrainClusters:
		return r.trainClusters(ctx, out)
	}
	return fmt.Errorf("%w: %q", ErrUnknownJob, step)
}

// autofillActuals re-saves every pending event so the backfill runs for past
// events nobody touched since they happened.
func (r *Runner) autofillActuals(ctx context.Context, out *output) error {
	pending, err := r.store.PendingEvents(ctx)
	if err != nil {
		return err
	}
	filled, finalized := 0, 0
	var errs []error
	for i := range pending {
		ev := &pending[i]
		fields, err := r.store.SaveEvent(ctx, ev)
		if err != nil {
			errs = append(errs, fmt.Errorf("event %d: %w", ev.ID, err))
			continue
		}
		if len(fields) > 0 {
			filled++
			out.printf("event %d %q: filled %s", ev.ID, ev.Title, strings.Join(fields, ", "))
		}
		if ev.ActualsComplete() {
			finalized++
		}
	}
	out.printf("%d pending events, %d updated, %d now finalized", len(pending), filled, finalized)
	return errors.Join(errs...)
}

// exportEvents writes finalized events to the update CSV. success_rate holds the
// actual success rate.
func (r *Runner) exportEvents(ctx context.Context, out *output) error {
	events, err := r.store.FinalizedEvents(ctx)
	if err != nil {
		return err
	}
	t := dataset.NewTable(dataset.EventColumns...)
	for _, ev := range events {
		t.AppendRecord(map[string]string{
			"event_title":       ev.Title,
			"category":          ev.Category,
			"department":        ev.Department,
			"target_year":       ev.TargetYear,
			"capacity":          strconv.Itoa(ev.MaxCapacity),
			"location":          ev.Location,
			"date":              ev.Date,
			"time":              ev.Time,
			"event_tags":        strings.Join(ev.Tags, ","),
			"success_rate":      formatFloat(ev.ActualSuccessRate),
			"actual_attendees":  formatInt(ev.ActualAttendees),
			"actual_engagement": formatFloat(ev.ActualEngagement),
			"actual_sentiment":  formatString(ev.ActualSentiment),
		})
	}
	if err := t.WriteCSV(r.paths.EventUpdates); err != nil {
		return err
	}
	out.printf("exported %d finalized events to %s", len(t.Rows), r.paths.EventUpdates)
	return nil
}

// mergeEvents appends the update CSV to the dataset, keeping the last row per
// (event_title, date, time), then truncates the update file to its header.
func (r *Runner) mergeEvents(out *output) error {
	update, err := dataset.ReadCSV(r.paths.EventUpdates)
	if errors.Is(err, fs.ErrNotExist) {
		out.printf("no update file at %s, nothing to merge", r.paths.EventUpdates)
		return nil
	}
	if err != nil {
		return err
	}
	base, err := dataset.ReadCSV(r.paths.EventDataset)
	if errors.Is(err, fs.ErrNotExist) {
		base = dataset.NewTable(dataset.EventColumns...)
	} else if err != nil {
		return err
	}

	merged := dataset.Merge(base, update)
	if err := merged.WriteCSV(r.paths.EventDataset); err != nil {
		return err
	}
	if err := dataset.NewTable(update.Header...).WriteCSV(r.paths.EventUpdates); err != nil {
		return err
	}
	out.printf("merged %d update rows into %d existing rows: %d rows in %s",
		len(update.Rows), len(base.Rows), len(merged.Rows), r.paths.EventDataset)
	return nil
}

func (r *Runner) cleanEvents(out *output) error {
	raw, err := dataset.ReadCSV(r.paths.EventDataset)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNoInput, r.paths.EventDataset)
	}
	if err != nil {
		return err
	}
	cleaned, meta, lines, err := dataset.Clean(raw, r.now())
	for _, l := range lines {
		out.printf("%s", l)
	}
	if err != nil {
		return err
	}
	if err := cleaned.WriteCSV(r.paths.CleanedEvents); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := artifact.WriteFileAtomic(r.paths.CleanedMetadata, data); err != nil {
		return err
	}
	out.printf("wrote %d cleaned rows to %s", meta.RowCount, r.paths.CleanedEvents)
	return nil
}

// trainEvents fits the success-rate forest on the cleaned dataset and swaps in
// the new artifact.
func (r *Runner) trainEvents(ctx context.Context, out *output) error {
	t, err := dataset.ReadCSV(r.paths.CleanedEvents)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNoInput, r.paths.CleanedEvents)
	}
	if err != nil {
		return err
	}
	if err := t.Require("category", "department", "target_year", "capacity", "num_tags", "success_rate"); err != nil {
		return err
	}

	enc := scoring.DefaultEncoding()
	X := make([][]float64, 0, len(t.Rows))
	y := make([]float64, 0, len(t.Rows))
	for n, row := range t.Rows {
		nums, err := parseFloats(t.Value(row, "capacity"), t.Value(row, "num_tags"), t.Value(row, "success_rate"))
		if err != nil {
			return fmt.Errorf("row %d: %w", n+1, err)
		}
		X = append(X, enc.Features(t.Value(row, "category"), t.Value(row, "department"), t.Value(row, "target_year"), nums[0], nums[1]))
		y = append(y, nums[2])
	}
	if len(X) == 0 {
		return dataset.ErrEmpty
	}

	f, err := forest.Fit(ctx, X, y, r.forestOpts...)
	if err != nil {
		return err
	}
	r2, err := f.Score(X, y)
	if err != nil {
		return err
	}
	m := &scoring.Model{
		Encoding:    enc,
		Features:    append([]string(nil), scoring.FeatureNames...),
		Forest:      f,
		TrainedRows: len(X),
		R2:          r2,
	}
	if err := scoring.SaveModel(r.paths.EventModel, m); err != nil {
		return err
	}
	metrics.RecordTraining("events", len(X), r.now())
	out.printf("trained %d trees on %d rows, training r2=%.4f", len(f.Trees), len(X), r2)
	out.printf("saved model to %s", r.paths.EventModel)
	return nil
}

func (r *Runner) exportStudents(ctx context.Context, out *output) error {
	recs, err := r.store.StudentRecords(ctx)
	if err != nil {
		return err
	}
	if err := dataset.StudentTable(recs).WriteCSV(r.paths.StudentExport); err != nil {
		return err
	}
	out.printf("exported %d students to %s", len(recs), r.paths.StudentExport)
	return nil
}

func (r *Runner) buildFeatures(out *output) error {
	students, err := dataset.ReadCSV(r.paths.StudentExport)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNoInput, r.paths.StudentExport)
	}
	if err != nil {
		return err
	}
	features, cols, err := dataset.BuildFeatures(students)
	if err != nil {
		return err
	}
	if err := features.WriteCSV(r.paths.StudentFeatures); err != nil {
		return err
	}
	list := strings.Join(cols, "\n")
	if len(cols) > 0 {
		list += "\n"
	}
	if err := artifact.WriteFileAtomic(r.paths.FeatureList, []byte(list)); err != nil {
		return err
	}
	out.printf("built %d features for %d students", len(cols), len(features.Rows))
	return nil
}

// trainClusters fits every clustering algorithm on the feature table and keeps
// the one with the best silhouette score.
func (r *Runner) trainClusters(ctx context.Context, out *output) error {
	ft, err := dataset.LoadFeatureTable(r.paths.StudentFeatures)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNoInput, r.paths.StudentFeatures)
	}
	if err != nil {
		return err
	}
	if len(ft.Columns) == 0 {
		return fmt.Errorf("%w: no feature columns in %s", dataset.ErrEmpty, r.paths.StudentFeatures)
	}

	X := ft.Align(ft.Columns)
	m, report, err := cluster.Train(ctx, X, ft.Columns, r.clusterParams)
	if err != nil {
		return err
	}
	for _, a := range algorithms {
		score := report.Scores[a]
		metrics.RecordSilhouette(string(a), score)
		out.printf("silhouette %s=%.4f", a, score)
	}
	a := &similarity.Artifact{Model: m, Scores: report.Scores, TrainedRows: len(X)}
	if err := similarity.SaveArtifact(r.paths.ClusterModel, a); err != nil {
		return err
	}
	metrics.RecordTraining("clusters", len(X), r.now())
	out.printf("selected %s on %d students", report.Chosen, len(X))
	return nil
}

func parseFloats(cells ...string) ([]float64, error) {
	out := make([]float64, len(cells))
	for i, c := range cells {
		v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", c)
		}
		out[i] = v
	}
	return out, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
