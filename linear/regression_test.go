package linear

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

func TestLinearRegressionRecoversPlane(t *testing.T) {
	// y = 3 + 2*x1 - x2
	X := mat.NewDense(5, 2, []float64{
		1, 0,
		2, 1,
		3, 5,
		4, 2,
		5, 3,
	})
	y := mat.NewVecDense(5, nil)
	for i := 0; i < 5; i++ {
		y.SetVec(i, 3+2*X.At(i, 0)-X.At(i, 1))
	}

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	assert.True(t, lr.IsFitted())
	assert.InDelta(t, 3.0, lr.Intercept, 1e-9)
	assert.InDelta(t, 2.0, lr.Weights.AtVec(0), 1e-9)
	assert.InDelta(t, -1.0, lr.Weights.AtVec(1), 1e-9)

	pred, err := lr.Predict(mat.NewDense(1, 2, []float64{10, 4}))
	require.NoError(t, err)
	assert.InDelta(t, 19.0, pred.AtVec(0), 1e-9)

	r2, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r2, 1e-12)
}

func TestLinearRegressionCollinearColumns(t *testing.T) {
	// complementary one-hot columns
	X := mat.NewDense(4, 2, []float64{
		1, 0,
		0, 1,
		1, 0,
		0, 1,
	})
	y := mat.NewVecDense(4, []float64{10, 4, 12, 6})

	err := NewLinearRegression().Fit(X, y)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mlErrors.ErrSingularMatrix))

	lr := NewLinearRegression().WithAlpha(1e-6)
	require.NoError(t, lr.Fit(X, y))
	pred, err := lr.Predict(X)
	require.NoError(t, err)
	assert.InDelta(t, 11.0, pred.AtVec(0), 1e-4)
	assert.InDelta(t, 5.0, pred.AtVec(1), 1e-4)
}

func TestLinearRegressionErrors(t *testing.T) {
	lr := NewLinearRegression()
	_, err := lr.Predict(mat.NewDense(1, 2, nil))
	assert.True(t, errors.Is(err, mlErrors.ErrNotFitted))

	err = lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewVecDense(2, nil))
	assert.True(t, errors.Is(err, mlErrors.ErrDimensionMismatch))

	err = NewLinearRegression().WithAlpha(-1).Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewVecDense(2, nil))
	assert.True(t, errors.Is(err, mlErrors.ErrInvalidInput))

	require.NoError(t, lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 4}), mat.NewVecDense(3, []float64{1, 2, 3})))
	_, err = lr.Predict(mat.NewDense(1, 2, nil))
	assert.True(t, errors.Is(err, mlErrors.ErrDimensionMismatch))
}
