package forest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kasakmasrani/CampusSync-AI/internal/ml/forest"
	. "github.com/smartystreets/goconvey/convey"
)

func linearData(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a, b := float64(i%8), float64(50+i*3)
		X[i] = []float64{a, b}
		y[i] = 30 + 2*a + b/10
	}
	return X, y
}

func TestFit(t *testing.T) {
	ctx := context.Background()

	Convey("Given a small regression problem", t, func() {
		X, y := linearData(60)

		Convey("When a single unbootstrapped tree is grown", func() {
			f, err := forest.Fit(ctx, X, y, forest.WithTrees(1), forest.WithBootstrap(false))

			Convey("Then it reproduces every training target", func() {
				So(err, ShouldBeNil)
				for i, x := range X {
					p, err := f.Predict(x)
					So(err, ShouldBeNil)
					So(p, ShouldAlmostEqual, y[i], 1e-9)
				}
			})
		})

		Convey("When the default forest is fitted", func() {
			f, err := forest.Fit(ctx, X, y)

			Convey("Then it has 100 trees and explains most of the variance", func() {
				So(err, ShouldBeNil)
				So(len(f.Trees), ShouldEqual, 100)
				r2, err := f.Score(X, y)
				So(err, ShouldBeNil)
				So(r2, ShouldBeGreaterThan, 0.9)
			})
		})

		Convey("When fitted twice with the same seed but different parallelism", func() {
			a, errA := forest.Fit(ctx, X, y, forest.WithTrees(10), forest.WithParallelism(1))
			b, errB := forest.Fit(ctx, X, y, forest.WithTrees(10), forest.WithParallelism(8))
			So(errA, ShouldBeNil)
			So(errB, ShouldBeNil)

			Convey("Then predictions are identical", func() {
				q := []float64{3, 101}
				pa, _ := a.Predict(q)
				pb, _ := b.Predict(q)
				So(pa, ShouldEqual, pb)
			})
		})

		Convey("When a depth limit of one is set", func() {
			f, err := forest.Fit(ctx, X, y, forest.WithTrees(1), forest.WithMaxDepth(1))
			So(err, ShouldBeNil)
			So(len(f.Trees[0].Nodes), ShouldBeLessThanOrEqualTo, 3)
		})
	})

	Convey("Given invalid input", t, func() {
		_, err := forest.Fit(ctx, nil, nil)
		So(errors.Is(err, forest.ErrEmptyTrainingSet), ShouldBeTrue)

		_, err = forest.Fit(ctx, [][]float64{{1}, {2}}, []float64{1})
		So(errors.Is(err, forest.ErrShapeMismatch), ShouldBeTrue)

		_, err = forest.Fit(ctx, [][]float64{{1, 2}, {2}}, []float64{1, 2})
		So(errors.Is(err, forest.ErrShapeMismatch), ShouldBeTrue)

		Convey("A cancelled context stops fitting", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			X, y := linearData(10)
			_, err := forest.Fit(cctx, X, y)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Given an unfitted forest", t, func() {
		var f *forest.Forest
		_, err := f.Predict([]float64{1})
		So(errors.Is(err, forest.ErrNotFitted), ShouldBeTrue)

		fitted, _ := forest.Fit(ctx, [][]float64{{1}, {2}}, []float64{1, 2}, forest.WithTrees(2))
		_, err = fitted.Predict([]float64{1, 2})
		So(errors.Is(err, forest.ErrShapeMismatch), ShouldBeTrue)
	})
}
