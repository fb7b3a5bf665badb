package cluster

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Undefined is reported when the silhouette cannot be computed.
const Undefined = -1.0

// Silhouette returns the mean silhouette coefficient of labels over X. Every
// distinct label, Noise included, counts as a cluster. The score is defined only
// for 2 <= clusters <= len(X)-1; otherwise Undefined is returned with ok=false.
// Members of singleton clusters contribute 0.
func Silhouette(X [][]float64, labels []int) (score float64, ok bool) {
	n := len(X)
	if n != len(labels) || n < 3 {
		return Undefined, false
	}
	members := make(map[int][]int)
	for i, l := range labels {
		members[l] = append(members[l], i)
	}
	if len(members) < 2 || len(members) > n-1 {
		return Undefined, false
	}

	var total float64
	for i, x := range X {
		own := members[labels[i]]
		if len(own) == 1 {
			continue
		}
		var a float64
		for _, j := range own {
			if j != i {
				a += floats.Distance(x, X[j], 2)
			}
		}
		a /= float64(len(own) - 1)

		b := math.Inf(1)
		for l, idx := range members {
			if l == labels[i] {
				continue
			}
			var sum float64
			for _, j := range idx {
				sum += floats.Distance(x, X[j], 2)
			}
			b = math.Min(b, sum/float64(len(idx)))
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n), true
}
