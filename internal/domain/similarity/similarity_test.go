package similarity_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kasakmasrani/CampusSync-AI/internal/domain/similarity"
	"github.com/kasakmasrani/CampusSync-AI/internal/ml/cluster"
	. "github.com/smartystreets/goconvey/convey"
)

const features = `user_id,username,tag_ai,tag_music,x,events
1,alice,1,0,0,3
2,bob,1,0,1,2
3,cara,0,1,0,1
4,dan,1,0,0,4
5,eve,0,1,1,0
6,,1,0,0,1
`

var columns = []string{"tag_ai", "tag_music", "x"}

func identityScaler() *cluster.Scaler {
	return &cluster.Scaler{Mean: []float64{0, 0, 0}, Scale: []float64{1, 1, 1}}
}

func kmeansArtifact() *similarity.Artifact {
	return &similarity.Artifact{
		Model: &cluster.Model{
			Algorithm: cluster.KMeansAlgorithm,
			Columns:   columns,
			Scaler:    identityScaler(),
			KMeans:    &cluster.KMeans{Centroids: [][]float64{{1, 0, 0}, {0, 1, 0}}},
		},
		Scores:      map[cluster.Algorithm]float64{cluster.KMeansAlgorithm: 0.5},
		TrainedRows: 6,
	}
}

func setup(t *testing.T, a *similarity.Artifact) (string, string) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "student_cluster_model.json")
	featuresPath := filepath.Join(dir, "student_features.csv")
	if err := similarity.SaveArtifact(modelPath, a); err != nil {
		t.Fatalf("save artifact: %v", err)
	}
	if err := os.WriteFile(featuresPath, []byte(features), 0o644); err != nil {
		t.Fatalf("write features: %v", err)
	}
	return modelPath, featuresPath
}

func ids(peers []similarity.Peer) []uint {
	out := make([]uint, len(peers))
	for i, p := range peers {
		out[i] = p.UserID
	}
	return out
}

func TestSimilar(t *testing.T) {
	Convey("Given a k-means model and a feature table", t, func() {
		modelPath, featuresPath := setup(t, kmeansArtifact())
		engine := similarity.NewEngine(modelPath, featuresPath)
		ctx := context.Background()

		Convey("When asking for alice's peers", func() {
			peers, err := engine.Similar(ctx, 1, 5)
			So(err, ShouldBeNil)

			Convey("Then only same-cluster students other than alice come back, nearest first, ties by id", func() {
				So(ids(peers), ShouldResemble, []uint{4, 6, 2})
			})

			Convey("Then scores and descriptive fields are filled", func() {
				So(peers[0].Similarity, ShouldEqual, 100)
				So(peers[0].Name, ShouldEqual, "dan")
				So(peers[0].Events, ShouldEqual, 4)
				So(peers[0].Interests, ShouldResemble, []string{"ai"})
				So(peers[1].Name, ShouldEqual, "Student 6")
				So(peers[2].Similarity, ShouldEqual, 99)
			})
		})

		Convey("When topN is smaller than the cluster", func() {
			peers, err := engine.Similar(ctx, 1, 1)
			So(err, ShouldBeNil)
			So(ids(peers), ShouldResemble, []uint{4})
		})

		Convey("When the student is unknown", func() {
			peers, err := engine.Similar(ctx, 99, 5)
			So(err, ShouldBeNil)
			So(peers, ShouldNotBeNil)
			So(peers, ShouldBeEmpty)
		})

		Convey("When the artifact is missing", func() {
			So(os.Remove(modelPath), ShouldBeNil)
			_, err := engine.Similar(ctx, 1, 5)
			So(errors.Is(err, similarity.ErrModelUnavailable), ShouldBeTrue)
		})

		Convey("When the feature table is missing", func() {
			So(os.Remove(featuresPath), ShouldBeNil)
			_, err := engine.Similar(ctx, 1, 5)
			So(errors.Is(err, similarity.ErrModelUnavailable), ShouldBeTrue)
		})
	})
}

func TestSimilarNoise(t *testing.T) {
	Convey("Given a DBSCAN model whose only core sample is alice", t, func() {
		a := kmeansArtifact()
		a.Model.Algorithm = cluster.DBSCANAlgorithm
		a.Model.KMeans = nil
		a.Model.DBSCAN = &cluster.DBSCAN{Eps: 0.5, MinSamples: 2, Core: [][]float64{{1, 0, 0}}, CoreLabels: []int{0}}
		modelPath, featuresPath := setup(t, a)
		engine := similarity.NewEngine(modelPath, featuresPath)

		Convey("Then a noise student gets no peers", func() {
			peers, err := engine.Similar(context.Background(), 3, 5)
			So(err, ShouldBeNil)
			So(peers, ShouldBeEmpty)
		})

		Convey("Then a clustered student only sees other clustered students", func() {
			peers, err := engine.Similar(context.Background(), 1, 5)
			So(err, ShouldBeNil)
			So(ids(peers), ShouldResemble, []uint{4, 6})
		})
	})
}

func TestFreshness(t *testing.T) {
	Convey("Given an engine with a freshness window", t, func() {
		modelPath, featuresPath := setup(t, kmeansArtifact())
		stamp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		So(os.Chtimes(featuresPath, stamp, stamp), ShouldBeNil)

		now := stamp
		engine := similarity.NewEngine(modelPath, featuresPath,
			similarity.WithFreshness(time.Hour),
			similarity.WithClock(func() time.Time { return now }),
		)
		ctx := context.Background()
		first, err := engine.Similar(ctx, 1, 5)
		So(err, ShouldBeNil)
		So(len(first), ShouldEqual, 3)

		reduced := "user_id,username,tag_ai,tag_music,x,events\n1,alice,1,0,0,3\n4,dan,1,0,0,4\n"
		So(os.WriteFile(featuresPath, []byte(reduced), 0o644), ShouldBeNil)

		Convey("When the feature file keeps its modification time", func() {
			So(os.Chtimes(featuresPath, stamp, stamp), ShouldBeNil)
			peers, err := engine.Similar(ctx, 1, 5)

			Convey("Then the cached assignment is reused", func() {
				So(err, ShouldBeNil)
				So(len(peers), ShouldEqual, 3)
			})
		})

		Convey("When the feature file changes", func() {
			later := stamp.Add(time.Minute)
			So(os.Chtimes(featuresPath, later, later), ShouldBeNil)
			peers, err := engine.Similar(ctx, 1, 5)

			Convey("Then the population is recomputed", func() {
				So(err, ShouldBeNil)
				So(ids(peers), ShouldResemble, []uint{4})
			})
		})

		Convey("When the window has passed", func() {
			So(os.Chtimes(featuresPath, stamp, stamp), ShouldBeNil)
			now = stamp.Add(2 * time.Hour)
			peers, err := engine.Similar(ctx, 1, 5)
			So(err, ShouldBeNil)
			So(ids(peers), ShouldResemble, []uint{4})
		})
	})
}

func TestScore(t *testing.T) {
	Convey("Scores truncate and floor at zero", t, func() {
		So(similarity.Score(0), ShouldEqual, 100)
		So(similarity.Score(1.7), ShouldEqual, 98)
		So(similarity.Score(100.5), ShouldEqual, 0)
		So(similarity.Score(250), ShouldEqual, 0)
	})
}
