package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should register its collectors there", func() {
				So(manager, ShouldNotBeNil)
				manager.eventsCreated.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithJobBuckets([]float64{1000, 60000}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names and labels should follow the options", func() {
				manager.feedbackSubmitted.Inc()
				expected := `
# HELP test_namespace_test_subsystem_feedback_submitted_total Feedback entries stored
# TYPE test_namespace_test_subsystem_feedback_submitted_total counter
test_namespace_test_subsystem_feedback_submitted_total{env="test"} 1
`
				err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_namespace_test_subsystem_feedback_submitted_total")
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording predictions", func() {
			before := testutil.ToFloat64(globalManager.predictionsTotal.WithLabelValues("Positive"))
			RecordPrediction("Positive", 3.5)
			RecordPredictionError("model_unavailable")

			Convey("Then the labelled counter increases", func() {
				So(testutil.ToFloat64(globalManager.predictionsTotal.WithLabelValues("Positive")), ShouldEqual, before+1)
			})
		})

		Convey("When recording a backfill", func() {
			before := testutil.ToFloat64(globalManager.backfillsFinalized)
			RecordBackfill([]string{"actual_attendees", "actual_sentiment"}, true)
			RecordBackfill(nil, false)

			Convey("Then only finalized passes count as finalized", func() {
				So(testutil.ToFloat64(globalManager.backfillsFinalized), ShouldEqual, before+1)
			})
		})

		Convey("When recording jobs", func() {
			before := testutil.ToFloat64(globalManager.jobRuns.WithLabelValues("retrain-clusters", "failure"))
			RecordJobRun("retrain-clusters", false, 120)
			RecordJobRun("retrain-clusters", true, 80)
			UpdateJobQueueSize(2)
			UpdateJobQueueCapacity(16)
			UpdateJobsInFlight(1)
			RecordJobEnqueueError("in_flight")
			RecordTraining("clusters", 40, time.Unix(1700000000, 0))
			RecordSilhouette("kmeans", 0.41)

			Convey("Then failures are counted separately", func() {
				So(testutil.ToFloat64(globalManager.jobRuns.WithLabelValues("retrain-clusters", "failure")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.jobQueueSize), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.modelLastTrainedS.WithLabelValues("clusters")), ShouldEqual, 1700000000)
			})
		})

		Convey("When recording HTTP and system metrics", func() {
			So(func() {
				RecordHTTPRequest("/api/predict", "POST", "200")
				RecordHTTPRequestDuration("/api/predict", "POST", "200", 12)
				RecordErrorByEndpoint("/api/predict", "POST", "client_error")
				RecordErrorByType("client_error", "medium")
				RecordRepositoryQuery("save_event", 1.2)
				RecordSimilarityQuery("empty", 2)
				RecordClusterRecompute()
				RecordSentiment("positive")
				RecordArtifactLoad("event_model", 0.7)
				RecordEventCreated()
				RecordRegistration("register")
				RecordFeedback()
				UpdateJobWorkers(1)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("When asking for the registry", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})

		Convey("When measuring elapsed time", func() {
			So(SinceMs(time.Now().Add(-5*time.Millisecond)), ShouldBeGreaterThanOrEqualTo, 5)
		})
	})
}
