package model

import "time"

// JobKind names a batch job or pipeline.
type JobKind string

const (
	JobAutofillActuals JobKind = "autofill-actuals"
	JobExportEvents    JobKind = "export-events"
	JobMergeEvents     JobKind = "merge-events"
	JobCleanEvents     JobKind = "clean-events"
	JobTrainEvents     JobKind = "train-events"
	JobExportStudents  JobKind = "export-students"
	JobBuildFeatures   JobKind = "build-features"
	JobTrainClusters   JobKind = "train-clusters"

	JobRetrainEvents   JobKind = "retrain-events"
	JobExportFeatures  JobKind = "export-features"
	JobRetrainClusters JobKind = "retrain-clusters"
)

// Job is a unit of work travelling through the job queue.
type Job struct {
	ID       string
	Kind     JobKind
	Enqueued time.Time
	// Reply receives exactly one result. It must be buffered.
	Reply chan JobResult
}

// JobResult is the outcome of a job run. Output holds its diagnostic lines.
type JobResult struct {
	JobID    string
	Kind     JobKind
	Output   []string
	Err      error
	Started  time.Time
	Finished time.Time
}

// OK reports whether the job succeeded.
func (r JobResult) OK() bool { return r.Err == nil }
