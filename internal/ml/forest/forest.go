// Package forest implements a random-forest regressor: bootstrap-sampled CART
// trees grown on mean-squared-error splits and averaged at prediction time.
package forest

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrEmptyTrainingSet = errors.New("forest: empty training set")
	ErrShapeMismatch    = errors.New("forest: shape mismatch")
	ErrNotFitted        = errors.New("forest: model not fitted")
)

// leaf marks a node without children.
const leaf = -1

// Node is one tree node. Internal nodes route x[Feature] <= Threshold to Left.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
}

// Tree is a flattened regression tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks the tree for x.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left == leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest is a fitted ensemble.
type Forest struct {
	NFeatures int    `json:"n_features"`
	Trees     []Tree `json:"trees"`
}

// Predict averages the trees' outputs for x.
func (f *Forest) Predict(x []float64) (float64, error) {
	if f == nil || len(f.Trees) == 0 {
		return 0, ErrNotFitted
	}
	if len(x) != f.NFeatures {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrShapeMismatch, len(x), f.NFeatures)
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees)), nil
}

// Score returns the coefficient of determination R^2 on (X, y). A constant y
// scores 1 when predicted exactly and 0 otherwise, so the result is always finite.
func (f *Forest) Score(X [][]float64, y []float64) (float64, error) {
	if len(X) != len(y) || len(y) == 0 {
		return 0, ErrShapeMismatch
	}
	pred := make([]float64, len(y))
	for i, x := range X {
		p, err := f.Predict(x)
		if err != nil {
			return 0, err
		}
		pred[i] = p
	}
	if stat.Variance(y, nil) == 0 || len(y) == 1 {
		for i := range y {
			if pred[i] != y[i] {
				return 0, nil
			}
		}
		return 1, nil
	}
	return stat.RSquaredFrom(pred, y, nil), nil
}

// Fit grows the forest on X (rows) and y. Trees are fitted in parallel; tree i
// draws its bootstrap sample from a generator seeded with (seed, i), so the result
// does not depend on scheduling.
func Fit(ctx context.Context, X [][]float64, y []float64, opts ...Option) (*Forest, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(X) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d targets", ErrShapeMismatch, len(X), len(y))
	}
	nFeatures := len(X[0])
	for i, row := range X {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrShapeMismatch, i, len(row), nFeatures)
		}
	}

	f := &Forest{NFeatures: nFeatures, Trees: make([]Tree, cfg.nTrees)}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.parallelism)
	for i := 0; i < cfg.nTrees; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(cfg.seed, uint64(i)))
			idx := sampleIndices(rng, len(X), cfg.bootstrap)
			b := &builder{X: X, y: y, cfg: cfg, rng: rng}
			b.grow(idx, 0)
			f.Trees[i] = Tree{Nodes: b.nodes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

func sampleIndices(rng *rand.Rand, n int, bootstrap bool) []int {
	idx := make([]int, n)
	for i := range idx {
		if bootstrap {
			idx[i] = rng.IntN(n)
		} else {
			idx[i] = i
		}
	}
	return idx
}

type builder struct {
	X     [][]float64
	y     []float64
	cfg   config
	rng   *rand.Rand
	nodes []Node
}

// grow appends the subtree for idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Left: leaf, Right: leaf, Value: b.mean(idx)})

	if len(idx) < b.cfg.minSamplesSplit || (b.cfg.maxDepth > 0 && depth >= b.cfg.maxDepth) || b.pure(idx) {
		return self
	}
	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return self
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self].Feature = feature
	b.nodes[self].Threshold = threshold
	b.nodes[self].Left = l
	b.nodes[self].Right = r
	return self
}

func (b *builder) mean(idx []int) float64 {
	vals := make([]float64, len(idx))
	for k, i := range idx {
		vals[k] = b.y[i]
	}
	return stat.Mean(vals, nil)
}

func (b *builder) pure(idx []int) bool {
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return false
		}
	}
	return true
}

// bestSplit scans every candidate threshold of the considered features and keeps
// the one with the lowest summed squared error of the two children.
func (b *builder) bestSplit(idx []int) (int, float64, bool) {
	features := b.candidateFeatures()
	n := len(idx)
	order := make([]int, n)

	bestFeature, bestThreshold, bestSSE, found := 0, 0.0, 0.0, false
	for _, f := range features {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool { return b.X[order[a]][f] < b.X[order[c]][f] })

		var totalSum, totalSq float64
		for _, i := range order {
			totalSum += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			v := b.y[order[k]]
			leftSum += v
			leftSq += v * v
			lo, hi := b.X[order[k]][f], b.X[order[k+1]][f]
			if lo == hi {
				continue
			}
			nl, nr := float64(k+1), float64(n-k-1)
			if int(nl) < b.cfg.minSamplesLeaf || int(nr) < b.cfg.minSamplesLeaf {
				continue
			}
			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if !found || sse < bestSSE {
				bestFeature, bestThreshold, bestSSE, found = f, lo+(hi-lo)/2, sse, true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func (b *builder) candidateFeatures() []int {
	n := len(b.X[0])
	all := b.rng.Perm(n)
	if b.cfg.maxFeatures <= 0 || b.cfg.maxFeatures >= n {
		return all
	}
	return all[:b.cfg.maxFeatures]
}

type config struct {
	nTrees          int
	seed            uint64
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	bootstrap       bool
	parallelism     int
}

func defaultConfig() config {
	return config{
		nTrees:          100,
		seed:            42,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		bootstrap:       true,
		parallelism:     runtime.GOMAXPROCS(0),
	}
}
