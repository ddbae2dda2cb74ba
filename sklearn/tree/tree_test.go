package tree

import (
	"bytes"
	"encoding/gob"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

func stepData() (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(6, 2, []float64{
		1, 0,
		2, 1,
		3, 0,
		10, 1,
		11, 0,
		12, 1,
	})
	y := mat.NewVecDense(6, []float64{5, 5, 5, 20, 20, 20})
	return X, y
}

func TestRegressionTreeFindsStep(t *testing.T) {
	X, y := stepData()
	tr := NewRegressionTree(WithMaxDepth(3), WithLambda(0))
	require.NoError(t, tr.Fit(X, y))

	root := tr.Nodes[0]
	require.False(t, root.IsLeaf)
	assert.Equal(t, 0, root.SplitFeature)
	assert.InDelta(t, 6.5, root.Threshold, 1e-12)

	// both sides are pure after the first split
	assert.Equal(t, 2, tr.GetNLeaves())
	assert.Equal(t, 1, tr.GetDepth())

	pred, err := tr.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, y.RawVector().Data, pred.RawVector().Data, 1e-12)

	assert.Zero(t, tr.FeatureGain[1])
	assert.Greater(t, tr.FeatureGain[0], 0.0)
}

func TestRegressionTreeLambdaShrinksLeaves(t *testing.T) {
	X, y := stepData()
	tr := NewRegressionTree(WithMaxDepth(1))
	require.NoError(t, tr.Fit(X, y))

	// leaf = sum(y) / (n + lambda)
	assert.InDelta(t, 15.0/4.0, tr.PredictRow([]float64{0, 0}), 1e-12)
	assert.InDelta(t, 60.0/4.0, tr.PredictRow([]float64{100, 0}), 1e-12)
}

func TestRegressionTreeMaxDepthZeroIsStump(t *testing.T) {
	X, y := stepData()
	tr := NewRegressionTree(WithMaxDepth(0), WithLambda(0))
	require.NoError(t, tr.Fit(X, y))

	assert.Len(t, tr.Nodes, 1)
	assert.InDelta(t, 12.5, tr.PredictRow([]float64{1, 1}), 1e-12)
}

func TestRegressionTreeMinChildWeight(t *testing.T) {
	X, y := stepData()
	tr := NewRegressionTree(WithMaxDepth(3), WithMinChildWeight(4))
	require.NoError(t, tr.Fit(X, y))

	// no split leaves at least 4 samples on both sides
	assert.Len(t, tr.Nodes, 1)
}

func TestRegressionTreeGradientSubset(t *testing.T) {
	X, y := stepData()
	grad := make([]float64, 6)
	hess := make([]float64, 6)
	for i := range grad {
		grad[i] = -y.AtVec(i)
		hess[i] = 1
	}

	tr := NewRegressionTree(WithMaxDepth(2), WithLambda(0))
	require.NoError(t, tr.FitGradients(X, grad, hess, []int{0, 1, 2}))

	assert.Len(t, tr.Nodes, 1)
	assert.InDelta(t, 5.0, tr.PredictRow([]float64{11, 0}), 1e-12)
	assert.Equal(t, 3, tr.State.NSamples)
}

func TestRegressionTreeErrors(t *testing.T) {
	tr := NewRegressionTree()

	_, err := tr.Predict(mat.NewDense(1, 2, nil))
	assert.True(t, errors.Is(err, mlErrors.ErrNotFitted))

	X, y := stepData()
	err = tr.Fit(X, mat.NewVecDense(2, nil))
	assert.True(t, errors.Is(err, mlErrors.ErrDimensionMismatch))

	require.NoError(t, tr.Fit(X, y))
	_, err = tr.Predict(mat.NewDense(1, 3, nil))
	assert.True(t, errors.Is(err, mlErrors.ErrDimensionMismatch))

	err = tr.FitGradients(X, make([]float64, 6), make([]float64, 6), []int{})
	assert.True(t, errors.Is(err, mlErrors.ErrEmptyData))
}

func TestRegressionTreeGobRoundTrip(t *testing.T) {
	X, y := stepData()
	tr := NewRegressionTree(WithMaxDepth(3))
	require.NoError(t, tr.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(tr))

	var loaded RegressionTree
	require.NoError(t, gob.NewDecoder(&buf).Decode(&loaded))

	want, err := tr.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, want.RawVector().Data, got.RawVector().Data)
}
