// Package model_selection provides train/test splitting.
package model_selection

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

// Split holds the two partitions of a dataset together with the original row
// indices of each partition.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.VecDense
	TrainIdx      []int
	TestIdx       []int
}

// TestCount returns the number of test rows for n samples: ceil(testSize*n),
// the same rounding scikit-learn applies to a fractional test size.
func TestCount(n int, testSize float64) int {
	return int(math.Ceil(testSize * float64(n)))
}

// ShuffleIndices returns a permutation of [0, n) that depends only on seed.
func ShuffleIndices(n int, seed uint64) []int {
	rng := rand.New(rand.NewPCG(seed, seed))
	return rng.Perm(n)
}

// TrainTestSplit shuffles the rows of X and y with a seeded permutation and
// takes the first TestCount(n, testSize) of them as the test partition.
func TrainTestSplit(X mat.Matrix, y *mat.VecDense, testSize float64, seed uint64) (*Split, error) {
	rows, cols := X.Dims()
	if rows == 0 {
		return nil, mlErrors.NewModelError("TrainTestSplit", "empty data", mlErrors.ErrEmptyData)
	}
	if y.Len() != rows {
		return nil, mlErrors.NewDimensionError("TrainTestSplit", rows, y.Len(), 0)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, mlErrors.NewValueErrorf("TrainTestSplit", "test_size must be in (0, 1), got %g", testSize)
	}

	nTest := TestCount(rows, testSize)
	nTrain := rows - nTest
	if nTrain < 1 {
		return nil, mlErrors.NewValueErrorf("TrainTestSplit",
			"with n_samples=%d and test_size=%g the training set would be empty", rows, testSize)
	}

	perm := ShuffleIndices(rows, seed)
	s := &Split{
		TestIdx:  append([]int(nil), perm[:nTest]...),
		TrainIdx: append([]int(nil), perm[nTest:]...),
	}
	s.XTrain, s.YTrain = takeRows(X, y, s.TrainIdx, cols)
	s.XTest, s.YTest = takeRows(X, y, s.TestIdx, cols)
	return s, nil
}

func takeRows(X mat.Matrix, y *mat.VecDense, idx []int, cols int) (*mat.Dense, *mat.VecDense) {
	xOut := mat.NewDense(len(idx), cols, nil)
	yOut := mat.NewVecDense(len(idx), nil)
	for i, r := range idx {
		for j := 0; j < cols; j++ {
			xOut.Set(i, j, X.At(r, j))
		}
		yOut.SetVec(i, y.AtVec(r))
	}
	return xOut, yOut
}
