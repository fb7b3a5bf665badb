package cluster

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Agglomerative is a Ward-linkage hierarchy cut at K clusters. New rows go to the
// cluster with the nearest centroid.
type Agglomerative struct {
	K         int         `json:"k"`
	Centroids [][]float64 `json:"centroids"`
}

// Predict returns the index of the nearest cluster centroid.
func (m *Agglomerative) Predict(x []float64) int {
	label, _ := nearest(m.Centroids, x)
	return label
}

// FitAgglomerative merges clusters bottom-up, always joining the pair whose merge
// increases the within-cluster variance least (Ward), until k remain. Distances are
// updated with the Lance-Williams recurrence. Labels are numbered by first
// appearance in X.
func FitAgglomerative(X [][]float64, k int) (*Agglomerative, []int, error) {
	n := len(X)
	if k <= 0 || n < k {
		return nil, nil, ErrTooFewSamples
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := 0; j < i; j++ {
			d := floats.Distance(X[i], X[j], 2)
			dist[i][j] = d * d
			dist[j][i] = dist[i][j]
		}
	}
	size := make([]int, n)
	active := make([]bool, n)
	owner := make([]int, n)
	for i := range size {
		size[i], active[i], owner[i] = 1, true, i
	}

	for remaining := n; remaining > k; remaining-- {
		a, b, best := -1, -1, math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && dist[i][j] < best {
					a, b, best = i, j, dist[i][j]
				}
			}
		}
		na, nb := float64(size[a]), float64(size[b])
		for c := 0; c < n; c++ {
			if !active[c] || c == a || c == b {
				continue
			}
			nc := float64(size[c])
			d := ((na+nc)*dist[a][c] + (nb+nc)*dist[b][c] - nc*dist[a][b]) / (na + nb + nc)
			dist[a][c], dist[c][a] = d, d
		}
		size[a] += size[b]
		active[b] = false
		for i := range owner {
			if owner[i] == b {
				owner[i] = a
			}
		}
	}

	labels := make([]int, n)
	renumber := make(map[int]int, k)
	for i, o := range owner {
		l, ok := renumber[o]
		if !ok {
			l = len(renumber)
			renumber[o] = l
		}
		labels[i] = l
	}

	d := len(X[0])
	centroids := make([][]float64, k)
	counts := make([]int, k)
	for c := range centroids {
		centroids[c] = make([]float64, d)
	}
	for i, x := range X {
		floats.Add(centroids[labels[i]], x)
		counts[labels[i]]++
	}
	for c := range centroids {
		floats.Scale(1/float64(counts[c]), centroids[c])
	}
	return &Agglomerative{K: k, Centroids: centroids}, labels, nil
}
