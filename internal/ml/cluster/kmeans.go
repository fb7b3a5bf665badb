package cluster

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

const (
	kmeansInits   = 10
	kmeansMaxIter = 300
	kmeansTol     = 1e-4
)

// KMeans holds fitted centroids.
type KMeans struct {
	Centroids [][]float64 `json:"centroids"`
	Inertia   float64     `json:"inertia"`
}

// Predict returns the index of the nearest centroid.
func (m *KMeans) Predict(x []float64) int {
	label, _ := nearest(m.Centroids, x)
	return label
}

// FitKMeans runs k-means++ seeded Lloyd iterations kmeansInits times and keeps the
// run with the lowest inertia. Runs are seeded from seed, so results are reproducible.
func FitKMeans(X [][]float64, k int, seed uint64) (*KMeans, []int, error) {
	if k <= 0 || len(X) < k {
		return nil, nil, ErrTooFewSamples
	}
	var best *KMeans
	var bestLabels []int
	for run := 0; run < kmeansInits; run++ {
		rng := rand.New(rand.NewPCG(seed, uint64(run)))
		m, labels := lloyd(X, initPlusPlus(X, k, rng))
		if best == nil || m.Inertia < best.Inertia {
			best, bestLabels = m, labels
		}
	}
	return best, bestLabels, nil
}

// initPlusPlus picks k initial centroids, each new one drawn with probability
// proportional to its squared distance from the nearest centroid so far.
func initPlusPlus(X [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(X[rng.IntN(len(X))]))
	d2 := make([]float64, len(X))
	for len(centroids) < k {
		var total float64
		for i, x := range X {
			_, d := nearest(centroids, x)
			d2[i] = d * d
			total += d2[i]
		}
		if total == 0 {
			// every point coincides with a centroid
			centroids = append(centroids, clone(X[rng.IntN(len(X))]))
			continue
		}
		r := rng.Float64() * total
		pick := len(X) - 1
		for i, w := range d2 {
			r -= w
			if r <= 0 {
				pick = i
				break
			}
		}
		centroids = append(centroids, clone(X[pick]))
	}
	return centroids
}

func lloyd(X [][]float64, centroids [][]float64) (*KMeans, []int) {
	k, d := len(centroids), len(X[0])
	labels := make([]int, len(X))
	for iter := 0; iter < kmeansMaxIter; iter++ {
		for i, x := range X {
			labels[i], _ = nearest(centroids, x)
		}
		next := make([][]float64, k)
		counts := make([]int, k)
		for c := range next {
			next[c] = make([]float64, d)
		}
		for i, x := range X {
			floats.Add(next[labels[i]], x)
			counts[labels[i]]++
		}
		var shift float64
		for c := range next {
			if counts[c] == 0 {
				// empty cluster keeps its centroid
				copy(next[c], centroids[c])
				continue
			}
			floats.Scale(1/float64(counts[c]), next[c])
			shift += floats.Distance(next[c], centroids[c], 2)
		}
		centroids = next
		if shift <= kmeansTol {
			break
		}
	}
	var inertia float64
	for i, x := range X {
		var dist float64
		labels[i], dist = nearest(centroids, x)
		inertia += dist * dist
	}
	return &KMeans{Centroids: centroids, Inertia: inertia}, labels
}

// nearest returns the index of and distance to the closest of points.
func nearest(points [][]float64, x []float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for i, p := range points {
		if d := floats.Distance(p, x, 2); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func clone(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	return out
}
