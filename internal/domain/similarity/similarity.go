// Package similarity finds students with similar interests: the query student's
// cluster is predicted with the trained clustering model and same-cluster peers
// are ranked by Euclidean distance over their raw feature rows.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kasakmasrani/CampusSync-AI/internal/ml/artifact"
	"github.com/kasakmasrani/CampusSync-AI/internal/ml/cluster"
	"github.com/kasakmasrani/CampusSync-AI/internal/ml/dataset"
	"github.com/kasakmasrani/CampusSync-AI/pkg/metrics"
	"gonum.org/v1/gonum/floats"
)

const (
	// ArtifactKind tags clustering model envelopes.
	ArtifactKind = "student_cluster_model"
	// SchemaVersion is the clustering artifact layout this binary reads.
	SchemaVersion = 1
)

var ErrModelUnavailable = errors.New("clustering model unavailable")

// Artifact is the payload of the clustering artifact.
type Artifact struct {
	Model       *cluster.Model                `json:"model"`
	Scores      map[cluster.Algorithm]float64 `json:"scores"`
	TrainedRows int                           `json:"trained_rows"`
}

// SaveArtifact atomically writes a.
func SaveArtifact(path string, a *Artifact) error {
	return artifact.Save(path, ArtifactKind, SchemaVersion, a)
}

// LoadArtifact reads and checks the clustering artifact.
func LoadArtifact(path string) (*Artifact, time.Time, error) {
	start := time.Now()
	var a Artifact
	meta, err := artifact.Load(path, ArtifactKind, SchemaVersion, &a)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	metrics.RecordArtifactLoad(ArtifactKind, metrics.SinceMs(start))
	if a.Model == nil || a.Model.Scaler == nil || len(a.Model.Columns) != len(a.Model.Scaler.Mean) {
		return nil, time.Time{}, fmt.Errorf("%w: %w: model does not match its columns", ErrModelUnavailable, artifact.ErrArtifactCorrupt)
	}
	return &a, meta.ModTime, nil
}

// Peer is one similar student.
type Peer struct {
	UserID     uint     `json:"user_id"`
	Name       string   `json:"name"`
	Events     int      `json:"events"`
	Similarity int      `json:"similarity"`
	Interests  []string `json:"interests"`
	Distance   float64  `json:"-"`
}

// Finder returns the students most similar to a given one.
type Finder interface {
	Similar(ctx context.Context, userID uint, topN int) ([]Peer, error)
}

// assignment is the cluster label of every row of one feature table.
type assignment struct {
	table      *dataset.FeatureTable
	labels     []int
	modelMod   time.Time
	featureMod time.Time
	computed   time.Time
}

// Engine implements Finder over the artifact and feature files.
type Engine struct {
	modelPath    string
	featuresPath string
	freshness    time.Duration
	now          func() time.Time

	mu    sync.Mutex
	cache *assignment
}

// NewEngine creates an engine reading the clustering artifact at modelPath and
// the feature table at featuresPath.
func NewEngine(modelPath, featuresPath string, opts ...Option) *Engine {
	e := &Engine{modelPath: modelPath, featuresPath: featuresPath, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Similar ranks the query student's same-cluster peers by distance, nearest
// first, ties by user id. An unknown student, a student labelled as noise, or
// topN <= 0 yields an empty list.
func (e *Engine) Similar(ctx context.Context, userID uint, topN int) ([]Peer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := e.assignment()
	if err != nil {
		return nil, err
	}
	peers := []Peer{}
	q, ok := a.table.Find(userID)
	if !ok || topN <= 0 || a.labels[q] == cluster.Noise {
		return peers, nil
	}

	query := a.table.Rows[q]
	for i, row := range a.table.Rows {
		if i == q || row.UserID == userID || a.labels[i] != a.labels[q] {
			continue
		}
		d := floats.Distance(row.Values, query.Values, 2)
		peers = append(peers, Peer{
			UserID:     row.UserID,
			Name:       displayName(row),
			Events:     row.Events,
			Similarity: Score(d),
			Interests:  a.table.Interests(i),
			Distance:   d,
		})
	}
	sort.SliceStable(peers, func(i, j int) bool {
		if peers[i].Distance != peers[j].Distance {
			return peers[i].Distance < peers[j].Distance
		}
		return peers[i].UserID < peers[j].UserID
	})
	if len(peers) > topN {
		peers = peers[:topN]
	}
	return peers, nil
}

// Score converts a distance to a 0..100 similarity: 100 minus the distance,
// truncated, floored at 0.
func Score(distance float64) int {
	return max(0, int(math.Trunc(100-distance)))
}

func displayName(row dataset.StudentFeatures) string {
	if row.Username != "" {
		return row.Username
	}
	return fmt.Sprintf("Student %d", row.UserID)
}

// assignment returns the labelled population, reusing the cached one while it
// is within the freshness bound and neither input file has changed.
func (e *Engine) assignment() (*assignment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.freshness > 0 && e.cache != nil && e.now().Sub(e.cache.computed) < e.freshness {
		modelMod, errM := artifact.ModTime(e.modelPath)
		featureMod, errF := artifact.ModTime(e.featuresPath)
		if errM == nil && errF == nil && modelMod.Equal(e.cache.modelMod) && featureMod.Equal(e.cache.featureMod) {
			return e.cache, nil
		}
	}

	a, modelMod, err := LoadArtifact(e.modelPath)
	if err != nil {
		return nil, err
	}
	featureMod, err := artifact.ModTime(e.featuresPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	table, err := dataset.LoadFeatureTable(e.featuresPath)
	if err != nil {
		return nil, fmt.Errorf("%w: features: %w", ErrModelUnavailable, err)
	}

	labels := make([]int, len(table.Rows))
	for i, row := range table.Align(a.Model.Columns) {
		if labels[i], err = a.Model.Predict(row); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}
	}
	metrics.RecordClusterRecompute()

	next := &assignment{table: table, labels: labels, modelMod: modelMod, featureMod: featureMod, computed: e.now()}
	if e.freshness > 0 {
		e.cache = next
	}
	return next, nil
}
