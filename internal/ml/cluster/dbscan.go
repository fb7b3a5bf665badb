package cluster

import (
	"gonum.org/v1/gonum/floats"
)

// Noise is the label of points that belong to no density cluster.
const Noise = -1

// DBSCAN keeps the fitted core samples so new rows can be assigned.
type DBSCAN struct {
	Eps        float64     `json:"eps"`
	MinSamples int         `json:"min_samples"`
	Core       [][]float64 `json:"core"`
	CoreLabels []int       `json:"core_labels"`
}

// Predict assigns x the label of the nearest core sample within Eps, or Noise.
func (m *DBSCAN) Predict(x []float64) int {
	if len(m.Core) == 0 {
		return Noise
	}
	i, d := nearest(m.Core, x)
	if d > m.Eps {
		return Noise
	}
	return m.CoreLabels[i]
}

// FitDBSCAN labels X by density. A point is core when at least minSamples points,
// itself included, lie within eps. Clusters are numbered in discovery order.
func FitDBSCAN(X [][]float64, eps float64, minSamples int) (*DBSCAN, []int) {
	n := len(X)
	neighbours := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if floats.Distance(X[i], X[j], 2) <= eps {
				neighbours[i] = append(neighbours[i], j)
			}
		}
	}
	core := make([]bool, n)
	for i := range X {
		core[i] = len(neighbours[i]) >= minSamples
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != Noise || !core[i] {
			continue
		}
		labels[i] = next
		stack := []int{i}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, q := range neighbours[p] {
				if labels[q] != Noise {
					continue
				}
				labels[q] = next
				if core[q] {
					stack = append(stack, q)
				}
			}
		}
		next++
	}

	m := &DBSCAN{Eps: eps, MinSamples: minSamples}
	for i := range X {
		if core[i] {
			m.Core = append(m.Core, clone(X[i]))
			m.CoreLabels = append(m.CoreLabels, labels[i])
		}
	}
	return m, labels
}
