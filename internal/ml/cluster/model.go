package cluster

import (
	"context"
	"fmt"
)

// Algorithm names a clustering method.
type Algorithm string

const (
	KMeansAlgorithm        Algorithm = "kmeans"
	DBSCANAlgorithm        Algorithm = "dbscan"
	AgglomerativeAlgorithm Algorithm = "agglomerative"
)

// candidates is the evaluation order; on equal silhouette the earlier one wins.
var candidates = []Algorithm{KMeansAlgorithm, DBSCANAlgorithm, AgglomerativeAlgorithm}

// Model is the selected, fitted clustering model together with the scaler and
// feature columns it was trained on.
type Model struct {
	Algorithm     Algorithm      `json:"algorithm"`
	Columns       []string       `json:"columns"`
	Scaler        *Scaler        `json:"scaler"`
	KMeans        *KMeans        `json:"kmeans,omitempty"`
	DBSCAN        *DBSCAN        `json:"dbscan,omitempty"`
	Agglomerative *Agglomerative `json:"agglomerative,omitempty"`
}

// Predict scales a raw row (ordered as Columns) and returns its cluster label.
// DBSCAN may return Noise.
func (m *Model) Predict(raw []float64) (int, error) {
	x, err := m.Scaler.Transform(raw)
	if err != nil {
		return 0, err
	}
	switch m.Algorithm {
	case KMeansAlgorithm:
		if m.KMeans != nil {
			return m.KMeans.Predict(x), nil
		}
	case DBSCANAlgorithm:
		if m.DBSCAN != nil {
			return m.DBSCAN.Predict(x), nil
		}
	case AgglomerativeAlgorithm:
		if m.Agglomerative != nil {
			return m.Agglomerative.Predict(x), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, m.Algorithm)
}

// Params are the hyper-parameters of Train.
type Params struct {
	K          int
	Seed       uint64
	Eps        float64
	MinSamples int
}

// DefaultParams returns k=3, seed 42, eps 1.5, min_samples 2.
func DefaultParams() Params {
	return Params{K: 3, Seed: 42, Eps: 1.5, MinSamples: 2}
}

// Report carries the per-algorithm silhouette scores of a Train run.
type Report struct {
	Scores map[Algorithm]float64
	Chosen Algorithm
}

// Train standard-scales X, fits every candidate algorithm, and keeps the one with
// the strictly highest silhouette. Undefined scores count as -1.
func Train(ctx context.Context, X [][]float64, columns []string, p Params) (*Model, Report, error) {
	report := Report{Scores: make(map[Algorithm]float64, len(candidates))}
	if len(X) < p.K || len(X) < 2 {
		return nil, report, fmt.Errorf("%w: %d rows for k=%d", ErrTooFewSamples, len(X), p.K)
	}
	if len(columns) != len(X[0]) {
		return nil, report, fmt.Errorf("%w: %d columns for %d features", ErrShapeMismatch, len(columns), len(X[0]))
	}
	scaler, err := FitScaler(X)
	if err != nil {
		return nil, report, err
	}
	scaled, err := scaler.TransformAll(X)
	if err != nil {
		return nil, report, err
	}

	fitted := &Model{Columns: columns, Scaler: scaler}
	labels := make(map[Algorithm][]int, len(candidates))

	km, kmLabels, err := FitKMeans(scaled, p.K, p.Seed)
	if err != nil {
		return nil, report, err
	}
	fitted.KMeans, labels[KMeansAlgorithm] = km, kmLabels
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	db, dbLabels := FitDBSCAN(scaled, p.Eps, p.MinSamples)
	fitted.DBSCAN, labels[DBSCANAlgorithm] = db, dbLabels
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	ag, agLabels, err := FitAgglomerative(scaled, p.K)
	if err != nil {
		return nil, report, err
	}
	fitted.Agglomerative, labels[AgglomerativeAlgorithm] = ag, agLabels

	for _, a := range candidates {
		report.Scores[a], _ = Silhouette(scaled, labels[a])
	}
	best := Choose(report.Scores)
	report.Chosen = best

	m := &Model{Algorithm: best, Columns: columns, Scaler: scaler}
	switch best {
	case KMeansAlgorithm:
		m.KMeans = fitted.KMeans
	case DBSCANAlgorithm:
		m.DBSCAN = fitted.DBSCAN
	case AgglomerativeAlgorithm:
		m.Agglomerative = fitted.Agglomerative
	}
	return m, report, nil
}

// Choose applies the selection rule to precomputed scores: the strictly highest
// score wins, ties going to the earlier of kmeans, dbscan, agglomerative.
func Choose(scores map[Algorithm]float64) Algorithm {
	best := Algorithm("")
	for _, a := range candidates {
		s, ok := scores[a]
		if !ok {
			s = Undefined
		}
		if best == "" {
			best = a
			continue
		}
		bestScore, ok := scores[best]
		if !ok {
			bestScore = Undefined
		}
		if s > bestScore {
			best = a
		}
	}
	return best
}
